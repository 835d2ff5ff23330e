// Package did talks to the D-ID Talks API, which renders a script as a
// talking-avatar video asynchronously.
package did

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Lllllllleong/innerharmony/internal/models"
)

const (
	DefaultBaseURL   = "https://api.d-id.com"
	DefaultVoiceID   = "en-US-JennyNeural"
	DefaultAvatarURL = "https://storage.googleapis.com/d-id-avatars/avatar.jpg"
	defaultTimeout   = 30 * time.Second
	maxErrorBodySize = 4 << 10
)

// Config is the static configuration of the client. The API key is sent
// verbatim as a Basic credential on every call.
type Config struct {
	APIKey    string
	BaseURL   string
	VoiceID   string
	AvatarURL string
}

// Client implements the talk submission and status calls.
type Client struct {
	apiKey     string
	baseURL    string
	voiceID    string
	avatarURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates cfg and fills in defaults.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("d-id API key must be provided")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	voiceID := cfg.VoiceID
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}
	avatarURL := cfg.AvatarURL
	if avatarURL == "" {
		avatarURL = DefaultAvatarURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		voiceID:    voiceID,
		avatarURL:  avatarURL,
		httpClient: httpClient,
		logger:     slog.Default().With("component", "d-id"),
	}, nil
}

type talkRequest struct {
	Script    talkScript `json:"script"`
	SourceURL string     `json:"source_url"`
	Config    talkConfig `json:"config"`
}

type talkScript struct {
	Type     string       `json:"type"`
	Input    string       `json:"input"`
	Provider talkProvider `json:"provider"`
}

type talkProvider struct {
	Type    string `json:"type"`
	VoiceID string `json:"voice_id"`
}

type talkConfig struct {
	Fluent   bool    `json:"fluent"`
	PadAudio float64 `json:"pad_audio"`
}

type talkResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	ResultURL string `json:"result_url"`
}

// SubmitTalk starts a render of script and returns the pending job.
func (c *Client) SubmitTalk(ctx context.Context, script string) (*models.RenderJob, error) {
	body, err := json.Marshal(talkRequest{
		Script: talkScript{
			Type:  "text",
			Input: script,
			Provider: talkProvider{
				Type:    "microsoft",
				VoiceID: c.voiceID,
			},
		},
		SourceURL: c.avatarURL,
		Config:    talkConfig{Fluent: true, PadAudio: 0.0},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal talk request: %w", err)
	}

	var talk talkResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/talks", body, &talk); err != nil {
		return nil, fmt.Errorf("submit talk: %w", err)
	}
	if talk.ID == "" {
		return nil, fmt.Errorf("submit talk: response carried no talk id")
	}

	c.logger.InfoContext(ctx, "Talk submitted", "talkId", talk.ID, "char_count", len([]rune(script)))

	status := models.RenderStatus(talk.Status)
	if status == "" {
		status = models.RenderCreated
	}
	return &models.RenderJob{ID: talk.ID, Status: status}, nil
}

// TalkStatus fetches the current state of a talk.
func (c *Client) TalkStatus(ctx context.Context, talkID string) (*models.RenderJob, error) {
	var talk talkResponse
	endpoint := c.baseURL + "/talks/" + url.PathEscape(talkID)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &talk); err != nil {
		return nil, fmt.Errorf("talk status %s: %w", talkID, err)
	}

	job := &models.RenderJob{
		ID:     talkID,
		Status: models.RenderStatus(talk.Status),
	}
	if job.Status.IsDone() {
		job.ResultURL = talk.ResultURL
	}
	return job, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// APIError is a non-2xx answer from D-ID.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("d-id API error: %d - %s", e.StatusCode, e.Body)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Lllllllleong/innerharmony/internal/did"
	"github.com/Lllllllleong/innerharmony/internal/gcp"
	"github.com/Lllllllleong/innerharmony/internal/models"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxAttempts  = 10
)

// Renderer is the talking-avatar backend. *did.Client implements it.
type Renderer interface {
	SubmitTalk(ctx context.Context, script string) (*models.RenderJob, error)
	TalkStatus(ctx context.Context, talkID string) (*models.RenderJob, error)
}

var _ Renderer = (*did.Client)(nil)

// VideoGeneratorConfig holds all configuration for the video generator.
type VideoGeneratorConfig struct {
	DID          did.Config
	PollInterval time.Duration
	MaxAttempts  int
}

// LoadVideoGeneratorConfig reads and validates the video generator's environment.
func LoadVideoGeneratorConfig() (*VideoGeneratorConfig, error) {
	apiKey := gcp.GetEnv("D_ID_API_KEY", "")
	if apiKey == "" {
		return nil, fmt.Errorf("D_ID_API_KEY environment variable must be set")
	}

	config := &VideoGeneratorConfig{
		DID: did.Config{
			APIKey:    apiKey,
			BaseURL:   gcp.GetEnv("D_ID_API_URL", did.DefaultBaseURL),
			VoiceID:   gcp.GetEnv("D_ID_VOICE_ID", did.DefaultVoiceID),
			AvatarURL: gcp.GetEnv("D_ID_AVATAR_URL", did.DefaultAvatarURL),
		},
		PollInterval: gcp.GetEnvDuration("RENDER_POLL_INTERVAL", DefaultPollInterval),
		MaxAttempts:  gcp.GetEnvInt("RENDER_MAX_ATTEMPTS", DefaultMaxAttempts),
	}
	if config.PollInterval <= 0 || config.MaxAttempts <= 0 {
		return nil, fmt.Errorf("RENDER_POLL_INTERVAL and RENDER_MAX_ATTEMPTS must be positive")
	}
	return config, nil
}

// VideoGenerator submits counseling prose for rendering and waits for the
// result URL.
type VideoGenerator struct {
	renderer     Renderer
	pollInterval time.Duration
	maxAttempts  int
}

// NewVideoGenerator builds a generator. Non-positive values select the defaults.
func NewVideoGenerator(renderer Renderer, pollInterval time.Duration, maxAttempts int) *VideoGenerator {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &VideoGenerator{
		renderer:     renderer,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
	}
}

// NewDIDVideoGenerator creates a VideoGenerator backed by the D-ID Talks API.
func NewDIDVideoGenerator() (*VideoGenerator, error) {
	config, err := LoadVideoGeneratorConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	client, err := did.NewClient(config.DID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create d-id client: %w", err)
	}

	slog.Info("Video generator initialized.", "pollInterval", config.PollInterval.String(), "maxAttempts", config.MaxAttempts)
	return NewVideoGenerator(client, config.PollInterval, config.MaxAttempts), nil
}

// Generate submits text and waits for the render to finish.
func (g *VideoGenerator) Generate(ctx context.Context, text string) (*models.RenderJob, error) {
	job, err := g.Submit(ctx, text)
	if err != nil {
		return nil, err
	}
	return g.WaitForRender(ctx, job)
}

// Submit starts a single render. Submission is never retried.
func (g *VideoGenerator) Submit(ctx context.Context, text string) (*models.RenderJob, error) {
	if strings.TrimSpace(text) == "" {
		return nil, newFailure(FailureInvalidInput, "script text is empty")
	}

	if err := ctx.Err(); err != nil {
		return nil, &Failure{Kind: FailureCanceled, Err: err}
	}

	job, err := g.renderer.SubmitTalk(ctx, text)
	if err != nil && ctx.Err() != nil {
		slog.Warn("Render submission cancelled.", "error", ctx.Err())
		return nil, &Failure{Kind: FailureCanceled, Err: ctx.Err()}
	}
	if err != nil {
		slog.Error("Render submission failed", "error", err)
		return nil, &Failure{Kind: FailureSubmission, Err: err}
	}
	return job, nil
}

// WaitForRender polls the job until it is done, the provider reports a
// failure, or the attempt budget runs out. At most maxAttempts status
// requests are made, each followed by one interval of waiting.
func (g *VideoGenerator) WaitForRender(ctx context.Context, job *models.RenderJob) (*models.RenderJob, error) {
	logCtx := slog.With("talkId", job.ID)
	logCtx.Info("Waiting for render.", "pollInterval", g.pollInterval.String(), "maxAttempts", g.maxAttempts)

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		current, err := g.renderer.TalkStatus(ctx, job.ID)
		switch {
		case err != nil && ctx.Err() != nil:
			logCtx.Warn("Render wait cancelled.", "attempt", attempt, "error", ctx.Err())
			return nil, &Failure{Kind: FailureCanceled, Err: ctx.Err()}
		case err != nil && isPermanent(err):
			logCtx.Error("Render status rejected", "attempt", attempt, "error", err)
			return nil, &Failure{Kind: FailureRender, Err: err}
		case err != nil:
			logCtx.Warn("Render status fetch failed, will retry.", "attempt", attempt, "error", err)
		case current.Status.IsDone():
			current.Attempts = attempt
			if current.ResultURL == "" {
				logCtx.Error("Render finished without a result URL", "attempt", attempt)
				return nil, newFailure(FailureRender, "talk %s is done but has no result url", job.ID)
			}
			logCtx.Info("Render complete.", "attempt", attempt)
			return current, nil
		case current.Status.IsFailed():
			logCtx.Error("Render failed at provider", "attempt", attempt, "status", current.Status)
			return nil, newFailure(FailureRender, "talk %s ended with status %q", job.ID, current.Status)
		default:
			logCtx.Info("Render still pending.", "attempt", attempt, "status", current.Status)
		}

		// A pending job is given one more interval even after the last
		// check, so a timeout spans the whole attempt budget.
		select {
		case <-ctx.Done():
			logCtx.Warn("Render wait cancelled.", "attempt", attempt, "error", ctx.Err())
			return nil, &Failure{Kind: FailureCanceled, Err: ctx.Err()}
		case <-time.After(g.pollInterval):
		}
	}

	logCtx.Error("Render did not complete within the attempt budget", "maxAttempts", g.maxAttempts)
	return nil, newFailure(FailureRenderTimeout, "talk %s not done after %d status checks", job.ID, g.maxAttempts)
}

// isPermanent reports whether a status fetch error will not go away on retry.
func isPermanent(err error) bool {
	var apiErr *did.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests
}

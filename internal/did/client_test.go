package did

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/innerharmony/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{APIKey: "secret-key", BaseURL: srv.URL + "/"}, srv.Client())
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	require.Error(t, err)
}

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient(Config{APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, DefaultVoiceID, c.voiceID)
	assert.Equal(t, DefaultAvatarURL, c.avatarURL)
}

func TestSubmitTalkSendsScript(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/talks", r.URL.Path)
		assert.Equal(t, "Basic secret-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"abc123","status":"created"}`))
	})

	job, err := c.SubmitTalk(context.Background(), "Take a deep breath.")
	require.NoError(t, err)
	assert.Equal(t, "abc123", job.ID)
	assert.Equal(t, models.RenderCreated, job.Status)

	script := got["script"].(map[string]any)
	assert.Equal(t, "text", script["type"])
	assert.Equal(t, "Take a deep breath.", script["input"])
	provider := script["provider"].(map[string]any)
	assert.Equal(t, "microsoft", provider["type"])
	assert.Equal(t, DefaultVoiceID, provider["voice_id"])
	assert.Equal(t, DefaultAvatarURL, got["source_url"])
	config := got["config"].(map[string]any)
	assert.Equal(t, true, config["fluent"])
	assert.Equal(t, 0.0, config["pad_audio"])
}

func TestSubmitTalkErrors(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"kind":"AuthorizationError"}`))
		})

		_, err := c.SubmitTalk(context.Background(), "hello")
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.Contains(t, apiErr.Body, "AuthorizationError")
	})

	t.Run("missing id", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"created"}`))
		})

		_, err := c.SubmitTalk(context.Background(), "hello")
		require.Error(t, err)
	})
}

func TestTalkStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Basic secret-key", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/talks/done-talk":
			_, _ = w.Write([]byte(`{"id":"done-talk","status":"done","result_url":"https://cdn.example.com/v.mp4"}`))
		case "/talks/busy-talk":
			_, _ = w.Write([]byte(`{"id":"busy-talk","status":"started","result_url":"ignored"}`))
		default:
			http.NotFound(w, r)
		}
	})

	done, err := c.TalkStatus(context.Background(), "done-talk")
	require.NoError(t, err)
	assert.True(t, done.Status.IsDone())
	assert.Equal(t, "https://cdn.example.com/v.mp4", done.ResultURL)

	busy, err := c.TalkStatus(context.Background(), "busy-talk")
	require.NoError(t, err)
	assert.Equal(t, models.RenderStarted, busy.Status)
	assert.Empty(t, busy.ResultURL)

	_, err = c.TalkStatus(context.Background(), "missing")
	require.Error(t, err)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/innerharmony/internal/gcp"
	"github.com/Lllllllleong/innerharmony/internal/models"
	"github.com/Lllllllleong/innerharmony/internal/services"
)

type stubVerifier struct{}

func (stubVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	if idToken != "good-token" {
		return nil, errors.New("invalid token")
	}
	return &auth.Token{UID: "user-42"}, nil
}

type stubText struct {
	text string
	err  error
}

func (s *stubText) Generate(_ context.Context, _ string) (string, error) {
	return s.text, s.err
}

type stubVideo struct {
	url   string
	err   error
	calls int
}

func (s *stubVideo) Generate(_ context.Context, _ string) (*models.RenderJob, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &models.RenderJob{ID: "talk-1", Status: models.RenderDone, ResultURL: s.url}, nil
}

func newTestHandler(text services.TextStage, video services.VideoStage) *counselingHandler {
	return &counselingHandler{
		pipeline: services.NewCounselingPipeline(text, video),
		auth:     gcp.NewAuthenticator(stubVerifier{}),
	}
}

func post(t *testing.T, h http.Handler, token, body string) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return rec, decoded
}

func TestCounselingHandlerSuccess(t *testing.T) {
	h := newTestHandler(&stubText{text: "You are doing your best."}, &stubVideo{url: "https://cdn.example.com/v.mp4"})

	rec, body := post(t, h, "good-token", `{"concern": "I feel anxious"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["runId"])
	assert.Equal(t, "You are doing your best.", body["text"])
	assert.Equal(t, "https://cdn.example.com/v.mp4", body["videoUrl"])
}

func TestCounselingHandlerFailures(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		text       *stubText
		video      *stubVideo
		wantStatus int
		wantError  string
		wantReason string
		wantText   string
	}{
		{
			name:       "empty concern",
			body:       `{"concern": "   "}`,
			text:       &stubText{text: "unused"},
			video:      &stubVideo{},
			wantStatus: http.StatusBadRequest,
			wantError:  "Concern is required",
			wantReason: "invalid_input",
		},
		{
			name:       "malformed body",
			body:       `{"concern":`,
			text:       &stubText{text: "unused"},
			video:      &stubVideo{},
			wantStatus: http.StatusBadRequest,
			wantError:  "Concern is required",
			wantReason: "invalid_input",
		},
		{
			name:       "text generation",
			body:       `{"concern": "I feel lonely"}`,
			text:       &stubText{err: &services.Failure{Kind: services.FailureGeneration, Err: errors.New("quota")}},
			video:      &stubVideo{},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Failed to generate text",
			wantReason: "generation_failure",
		},
		{
			name:       "submission",
			body:       `{"concern": "I feel lonely"}`,
			text:       &stubText{text: "Reach out to someone."},
			video:      &stubVideo{err: &services.Failure{Kind: services.FailureSubmission, Err: errors.New("401")}},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Failed to generate video",
			wantReason: "submission_failure",
			wantText:   "Reach out to someone.",
		},
		{
			name:       "render failure",
			body:       `{"concern": "I feel lonely"}`,
			text:       &stubText{text: "Reach out to someone."},
			video:      &stubVideo{err: &services.Failure{Kind: services.FailureRender, Err: errors.New("rejected")}},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Failed to generate video",
			wantReason: "render_failure",
			wantText:   "Reach out to someone.",
		},
		{
			name:       "render timeout",
			body:       `{"concern": "I feel lonely"}`,
			text:       &stubText{text: "Reach out to someone."},
			video:      &stubVideo{err: &services.Failure{Kind: services.FailureRenderTimeout, Err: errors.New("10 checks")}},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Failed to generate video",
			wantReason: "render_timeout",
			wantText:   "Reach out to someone.",
		},
		{
			name:       "canceled",
			body:       `{"concern": "I feel lonely"}`,
			text:       &stubText{text: "Reach out to someone."},
			video:      &stubVideo{err: &services.Failure{Kind: services.FailureCanceled, Err: context.Canceled}},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Failed to generate video",
			wantReason: "canceled",
			wantText:   "Reach out to someone.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(tt.text, tt.video)

			rec, body := post(t, h, "good-token", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, body["error"])
			assert.Equal(t, tt.wantReason, body["reason"])
			assert.Equal(t, tt.wantText, body["text"])
			assert.NotContains(t, body, "videoUrl")
		})
	}
}

func TestCounselingHandlerRequiresSession(t *testing.T) {
	video := &stubVideo{}
	h := newTestHandler(&stubText{text: "unused"}, video)

	for _, token := range []string{"", "forged-token"} {
		rec, body := post(t, h, token, `{"concern": "I feel anxious"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Unauthorized", body["error"])
	}
	assert.Zero(t, video.calls)
}

func TestCounselingHandlerRejectsGet(t *testing.T) {
	h := newTestHandler(&stubText{}, &stubVideo{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/innerharmony/internal/did"
	"github.com/Lllllllleong/innerharmony/internal/models"
)

const testInterval = time.Millisecond

// fakeRenderer replays a scripted sequence of status answers.
type fakeRenderer struct {
	mu          sync.Mutex
	submitErr   error
	submitted   []string
	statuses    []models.RenderStatus
	statusErrs  []error
	resultURL   string
	statusCalls int
	onStatus    func(call int)
	onSubmit    func()
}

func (f *fakeRenderer) SubmitTalk(_ context.Context, script string) (*models.RenderJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, script)
	if f.onSubmit != nil {
		f.onSubmit()
	}
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &models.RenderJob{ID: "abc123", Status: models.RenderCreated}, nil
}

func (f *fakeRenderer) TalkStatus(_ context.Context, talkID string) (*models.RenderJob, error) {
	f.mu.Lock()
	f.statusCalls++
	call := f.statusCalls
	f.mu.Unlock()

	if f.onStatus != nil {
		f.onStatus(call)
	}
	if call <= len(f.statusErrs) && f.statusErrs[call-1] != nil {
		return nil, f.statusErrs[call-1]
	}

	status := models.RenderStarted
	if call <= len(f.statuses) {
		status = f.statuses[call-1]
	}
	job := &models.RenderJob{ID: talkID, Status: status}
	if status.IsDone() {
		job.ResultURL = f.resultURL
	}
	return job, nil
}

func assertFailureKind(t *testing.T, err error, want FailureKind) {
	t.Helper()
	require.Error(t, err)
	kind, ok := FailureKindOf(err)
	require.True(t, ok, "error %v is not a Failure", err)
	assert.Equal(t, want, kind)
}

func TestVideoGeneratorDoneOnThirdAttempt(t *testing.T) {
	renderer := &fakeRenderer{
		statuses:  []models.RenderStatus{models.RenderCreated, models.RenderStarted, models.RenderDone},
		resultURL: "https://cdn.example.com/v.mp4",
	}
	g := NewVideoGenerator(renderer, testInterval, 10)

	job, err := g.Generate(context.Background(), "You are not alone.")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/v.mp4", job.ResultURL)
	assert.Equal(t, 3, job.Attempts)
	assert.Equal(t, 3, renderer.statusCalls)
	assert.Equal(t, []string{"You are not alone."}, renderer.submitted)
}

func TestVideoGeneratorTimesOutAfterBudget(t *testing.T) {
	renderer := &fakeRenderer{}
	g := NewVideoGenerator(renderer, testInterval, 10)

	_, err := g.Generate(context.Background(), "text")
	assertFailureKind(t, err, FailureRenderTimeout)
	assert.Equal(t, 10, renderer.statusCalls, "no 11th status request")
	assert.Len(t, renderer.submitted, 1, "a timeout never resubmits")
}

func TestVideoGeneratorTimeoutSpansFullBudget(t *testing.T) {
	renderer := &fakeRenderer{}
	interval := 5 * time.Millisecond
	g := NewVideoGenerator(renderer, interval, 4)

	start := time.Now()
	_, err := g.Generate(context.Background(), "text")
	assertFailureKind(t, err, FailureRenderTimeout)
	assert.Equal(t, 4, renderer.statusCalls)
	assert.GreaterOrEqual(t, time.Since(start), 4*interval, "every check is followed by a wait")
}

func TestVideoGeneratorCancelledBeforeSubmit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	renderer := &fakeRenderer{}
	g := NewVideoGenerator(renderer, testInterval, 10)

	_, err := g.Generate(ctx, "text")
	assertFailureKind(t, err, FailureCanceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, renderer.submitted)
	assert.Zero(t, renderer.statusCalls)
}

func TestVideoGeneratorCancelledDuringSubmit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	renderer := &fakeRenderer{submitErr: errors.New("Post \"https://api.d-id.com/talks\": context canceled")}
	renderer.onSubmit = cancel
	g := NewVideoGenerator(renderer, testInterval, 10)

	_, err := g.Generate(ctx, "text")
	assertFailureKind(t, err, FailureCanceled)
	assert.Len(t, renderer.submitted, 1)
	assert.Zero(t, renderer.statusCalls)
}

func TestVideoGeneratorProviderFailureStopsImmediately(t *testing.T) {
	for _, status := range []models.RenderStatus{models.RenderError, models.RenderRejected} {
		t.Run(string(status), func(t *testing.T) {
			renderer := &fakeRenderer{statuses: []models.RenderStatus{models.RenderStarted, status}}
			g := NewVideoGenerator(renderer, testInterval, 10)

			_, err := g.Generate(context.Background(), "text")
			assertFailureKind(t, err, FailureRender)
			assert.Equal(t, 2, renderer.statusCalls)
		})
	}
}

func TestVideoGeneratorDoneWithoutURL(t *testing.T) {
	renderer := &fakeRenderer{statuses: []models.RenderStatus{models.RenderDone}}
	g := NewVideoGenerator(renderer, testInterval, 10)

	_, err := g.Generate(context.Background(), "text")
	assertFailureKind(t, err, FailureRender)
	assert.Equal(t, 1, renderer.statusCalls)
}

func TestVideoGeneratorSubmissionFailure(t *testing.T) {
	renderer := &fakeRenderer{submitErr: &did.APIError{StatusCode: http.StatusUnauthorized}}
	g := NewVideoGenerator(renderer, testInterval, 10)

	_, err := g.Generate(context.Background(), "text")
	assertFailureKind(t, err, FailureSubmission)
	assert.Zero(t, renderer.statusCalls)
	assert.Len(t, renderer.submitted, 1)
}

func TestVideoGeneratorRejectsEmptyText(t *testing.T) {
	renderer := &fakeRenderer{}
	g := NewVideoGenerator(renderer, testInterval, 10)

	_, err := g.Generate(context.Background(), "  \n")
	assertFailureKind(t, err, FailureInvalidInput)
	assert.Empty(t, renderer.submitted)
}

func TestVideoGeneratorStatusErrors(t *testing.T) {
	t.Run("transient errors consume attempts", func(t *testing.T) {
		renderer := &fakeRenderer{
			statusErrs: []error{errors.New("connection reset"), &did.APIError{StatusCode: http.StatusBadGateway}},
			statuses:   []models.RenderStatus{"", "", models.RenderDone},
			resultURL:  "https://cdn.example.com/v.mp4",
		}
		g := NewVideoGenerator(renderer, testInterval, 10)

		job, err := g.Generate(context.Background(), "text")
		require.NoError(t, err)
		assert.Equal(t, 3, job.Attempts)
	})

	t.Run("client errors end the wait", func(t *testing.T) {
		renderer := &fakeRenderer{statusErrs: []error{&did.APIError{StatusCode: http.StatusNotFound}}}
		g := NewVideoGenerator(renderer, testInterval, 10)

		_, err := g.Generate(context.Background(), "text")
		assertFailureKind(t, err, FailureRender)
		assert.Equal(t, 1, renderer.statusCalls)
	})
}

func TestVideoGeneratorCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	polled := make(chan struct{})
	renderer := &fakeRenderer{onStatus: func(call int) {
		if call == 1 {
			close(polled)
		}
	}}
	g := NewVideoGenerator(renderer, time.Hour, 10)

	done := make(chan error, 1)
	go func() {
		_, err := g.Generate(ctx, "text")
		done <- err
	}()

	<-polled
	cancel()

	select {
	case err := <-done:
		assertFailureKind(t, err, FailureCanceled)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, renderer.statusCalls)
	case <-time.After(5 * time.Second):
		t.Fatal("render wait did not stop after cancellation")
	}
}

func TestNewVideoGeneratorDefaults(t *testing.T) {
	g := NewVideoGenerator(&fakeRenderer{}, 0, 0)
	assert.Equal(t, DefaultPollInterval, g.pollInterval)
	assert.Equal(t, DefaultMaxAttempts, g.maxAttempts)
}

func TestLoadVideoGeneratorConfig(t *testing.T) {
	t.Setenv("D_ID_API_KEY", "key")
	t.Setenv("RENDER_POLL_INTERVAL", "500ms")
	t.Setenv("RENDER_MAX_ATTEMPTS", "4")

	config, err := LoadVideoGeneratorConfig()
	require.NoError(t, err)
	assert.Equal(t, "key", config.DID.APIKey)
	assert.Equal(t, did.DefaultBaseURL, config.DID.BaseURL)
	assert.Equal(t, 500*time.Millisecond, config.PollInterval)
	assert.Equal(t, 4, config.MaxAttempts)

	t.Setenv("D_ID_API_KEY", "")
	_, err = LoadVideoGeneratorConfig()
	require.Error(t, err)
}

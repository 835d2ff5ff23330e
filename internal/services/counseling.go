package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Lllllllleong/innerharmony/internal/models"
)

// TextStage produces counseling prose. *TextGenerator implements it.
type TextStage interface {
	Generate(ctx context.Context, concern string) (string, error)
}

// VideoStage renders prose into a video. *VideoGenerator implements it.
type VideoStage interface {
	Generate(ctx context.Context, text string) (*models.RenderJob, error)
}

// CounselingPipeline chains the text stage into the video stage.
type CounselingPipeline struct {
	text     TextStage
	video    VideoStage
	newRunID func() string
}

// NewCounselingPipeline wires the two stages together.
func NewCounselingPipeline(text TextStage, video VideoStage) *CounselingPipeline {
	return &CounselingPipeline{
		text:     text,
		video:    video,
		newRunID: uuid.NewString,
	}
}

// NewCounselingPipelineFromEnv builds both stages from the environment.
func NewCounselingPipelineFromEnv(ctx context.Context) (*CounselingPipeline, error) {
	textGen, err := NewVertexTextGenerator(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create text generator: %w", err)
	}
	videoGen, err := NewDIDVideoGenerator()
	if err != nil {
		_ = textGen.Close()
		return nil, fmt.Errorf("failed to create video generator: %w", err)
	}
	return NewCounselingPipeline(textGen, videoGen), nil
}

// Run generates counseling text for concern and renders it as a video.
// The returned result is never nil; on a video failure it still carries the
// generated text.
func (p *CounselingPipeline) Run(ctx context.Context, concern string) (*models.CounselingResult, error) {
	result := &models.CounselingResult{RunID: p.newRunID()}
	logCtx := slog.With("runId", result.RunID)

	concern = strings.TrimSpace(concern)
	if concern == "" {
		logCtx.Warn("Rejected empty concern.")
		return result, newFailure(FailureInvalidInput, "concern is empty")
	}

	logCtx.Info("Starting counseling run.")
	text, err := p.text.Generate(ctx, concern)
	if err != nil {
		logCtx.Error("Text stage failed", "error", err)
		return result, err
	}
	result.Text = text

	job, err := p.video.Generate(ctx, text)
	if err != nil {
		logCtx.Error("Video stage failed", "error", err)
		return result, err
	}
	result.VideoURL = job.ResultURL

	logCtx.Info("Counseling run complete.", "talkId", job.ID, "attempts", job.Attempts)
	return result, nil
}

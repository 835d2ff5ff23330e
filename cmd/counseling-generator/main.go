package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/joho/godotenv"

	"github.com/Lllllllleong/innerharmony/internal/gcp"
	"github.com/Lllllllleong/innerharmony/internal/models"
	"github.com/Lllllllleong/innerharmony/internal/services"
)

var (
	handler *counselingHandler
	once    sync.Once
	initErr error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// "HandleGenerateCounseling" is the entry point name configured in GCP.
	functions.HTTP("HandleGenerateCounseling", handleGenerateCounseling)
}

// main runs the function locally. Deployed functions never call it.
func main() {
	_ = godotenv.Load()
	if err := funcframework.Start(gcp.GetEnv("PORT", "8080")); err != nil {
		slog.Error("Functions framework exited", "error", err)
		os.Exit(1)
	}
}

// CounselingRunner runs the full pipeline. *services.CounselingPipeline
// implements it.
type CounselingRunner interface {
	Run(ctx context.Context, concern string) (*models.CounselingResult, error)
}

type counselingHandler struct {
	pipeline CounselingRunner
	auth     *gcp.Authenticator
}

func newCounselingHandler(ctx context.Context) (*counselingHandler, error) {
	auth, err := gcp.NewFirebaseAuthenticator(ctx, gcp.GetEnv("PROJECT_ID", ""), gcp.GetEnv("FIREBASE_CREDENTIALS_FILE", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticator: %w", err)
	}
	pipeline, err := services.NewCounselingPipelineFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	return &counselingHandler{pipeline: pipeline, auth: auth}, nil
}

func handleGenerateCounseling(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		handler, initErr = newCounselingHandler(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: counseling pipeline initialization failed", "error", initErr)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: services.FailureGeneration.UserMessage()})
		return
	}
	handler.ServeHTTP(w, r)
}

// ServeHTTP runs the full text-then-video pipeline for a signed-in user.
func (h *counselingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, models.ErrorResponse{Error: "Method not allowed"})
		return
	}

	session, err := h.auth.Session(r)
	if err != nil {
		slog.Warn("Rejected unauthenticated request", "error", err)
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized"})
		return
	}

	var req models.CounselingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err, "uid", session.UID)
		writeFailure(w, services.FailureInvalidInput, "")
		return
	}

	result, err := h.pipeline.Run(r.Context(), req.Concern)
	if result == nil {
		result = &models.CounselingResult{}
	}
	if err != nil {
		kind, ok := services.FailureKindOf(err)
		if !ok {
			kind = services.FailureGeneration
		}
		slog.Info("Counseling run failed.", "runId", result.RunID, "uid", session.UID, "reason", string(kind))
		writeFailure(w, kind, result.Text)
		return
	}

	writeJSON(w, http.StatusOK, models.CounselingResponse{
		RunID:    result.RunID,
		Text:     result.Text,
		VideoURL: result.VideoURL,
	})
}

// writeFailure reports a pipeline failure. Text generated before a video
// failure is still returned to the caller.
func writeFailure(w http.ResponseWriter, kind services.FailureKind, text string) {
	status := http.StatusInternalServerError
	if kind == services.FailureInvalidInput {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, models.ErrorResponse{
		Error:  kind.UserMessage(),
		Reason: string(kind),
		Text:   text,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

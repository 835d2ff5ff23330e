package main

import (
	"context"
	"encoding/json"
	"errors"
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
	recorderInstance *services.FeedbackRecorder
	authenticator    *gcp.Authenticator
	once             sync.Once
	initErr          error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleRecordFeedback", handleRecordFeedback)
}

// main runs the function locally. Deployed functions never call it.
func main() {
	_ = godotenv.Load()
	if err := funcframework.Start(gcp.GetEnv("PORT", "8080")); err != nil {
		slog.Error("Functions framework exited", "error", err)
		os.Exit(1)
	}
}

func initialize(ctx context.Context) error {
	var err error
	authenticator, err = gcp.NewFirebaseAuthenticator(ctx, gcp.GetEnv("PROJECT_ID", ""), gcp.GetEnv("FIREBASE_CREDENTIALS_FILE", ""))
	if err != nil {
		return fmt.Errorf("failed to create authenticator: %w", err)
	}
	recorderInstance, err = services.NewFeedbackRecorder(ctx)
	return err
}

// handleRecordFeedback stores a mood check-in for the signed-in user.
func handleRecordFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	once.Do(func() {
		initErr = initialize(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: FeedbackRecorder initialization failed", "error", initErr)
		writeError(w, http.StatusInternalServerError, "Failed to initialize service")
		return
	}

	session, err := authenticator.Session(r)
	if err != nil {
		slog.Warn("Rejected unauthenticated request", "error", err)
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req models.FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		writeError(w, http.StatusBadRequest, "Bad Request: could not parse JSON")
		return
	}

	id, err := recorderInstance.Record(r.Context(), session.UID, &req)
	if errors.Is(err, services.ErrInvalidFeedback) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record feedback")
		return
	}

	writeJSON(w, http.StatusCreated, models.FeedbackResponse{ID: id})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

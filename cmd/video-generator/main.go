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
	handler *videoHandler
	once    sync.Once
	initErr error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// "HandleGenerateVideo" is the entry point name configured in GCP.
	functions.HTTP("HandleGenerateVideo", handleGenerateVideo)
}

// main runs the function locally. Deployed functions never call it.
func main() {
	_ = godotenv.Load()
	if err := funcframework.Start(gcp.GetEnv("PORT", "8080")); err != nil {
		slog.Error("Functions framework exited", "error", err)
		os.Exit(1)
	}
}

// textRequired is the 400 message when the script is missing.
const textRequired = "Text is required"

// videoHandler serves the video stage to signed-in users.
type videoHandler struct {
	stage services.VideoStage
	auth  *gcp.Authenticator
}

func newVideoHandler(ctx context.Context) (*videoHandler, error) {
	auth, err := gcp.NewFirebaseAuthenticator(ctx, gcp.GetEnv("PROJECT_ID", ""), gcp.GetEnv("FIREBASE_CREDENTIALS_FILE", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticator: %w", err)
	}
	generator, err := services.NewDIDVideoGenerator()
	if err != nil {
		return nil, err
	}
	return &videoHandler{stage: generator, auth: auth}, nil
}

func handleGenerateVideo(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		handler, initErr = newVideoHandler(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: VideoGenerator initialization failed", "error", initErr)
		writeError(w, http.StatusInternalServerError, services.FailureSubmission.UserMessage())
		return
	}
	handler.ServeHTTP(w, r)
}

// ServeHTTP renders counseling prose and blocks until the video URL is
// available or the render gives up.
func (h *videoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if _, err := h.auth.Session(r); err != nil {
		slog.Warn("Rejected unauthenticated request", "error", err)
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req models.GenerateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		writeError(w, http.StatusBadRequest, textRequired)
		return
	}

	job, err := h.stage.Generate(r.Context(), req.Text)
	if err != nil {
		if kind, _ := services.FailureKindOf(err); kind == services.FailureInvalidInput {
			writeError(w, http.StatusBadRequest, textRequired)
			return
		}
		writeError(w, http.StatusInternalServerError, services.FailureRender.UserMessage())
		return
	}

	writeJSON(w, http.StatusOK, models.GenerateVideoResponse{VideoURL: job.ResultURL})
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

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
	handler *textHandler
	once    sync.Once
	initErr error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// "HandleGenerateText" is the entry point name configured in GCP.
	functions.HTTP("HandleGenerateText", handleGenerateText)
}

// main runs the function locally. Deployed functions never call it.
func main() {
	_ = godotenv.Load()
	if err := funcframework.Start(gcp.GetEnv("PORT", "8080")); err != nil {
		slog.Error("Functions framework exited", "error", err)
		os.Exit(1)
	}
}

// textHandler serves the text stage to signed-in users.
type textHandler struct {
	stage services.TextStage
	auth  *gcp.Authenticator
}

func newTextHandler(ctx context.Context) (*textHandler, error) {
	auth, err := gcp.NewFirebaseAuthenticator(ctx, gcp.GetEnv("PROJECT_ID", ""), gcp.GetEnv("FIREBASE_CREDENTIALS_FILE", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticator: %w", err)
	}
	generator, err := services.NewVertexTextGenerator(ctx)
	if err != nil {
		return nil, err
	}
	return &textHandler{stage: generator, auth: auth}, nil
}

func handleGenerateText(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		handler, initErr = newTextHandler(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: TextGenerator initialization failed", "error", initErr)
		writeError(w, http.StatusInternalServerError, services.FailureGeneration.UserMessage())
		return
	}
	handler.ServeHTTP(w, r)
}

// ServeHTTP turns a user's concern into counseling prose.
func (h *textHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if _, err := h.auth.Session(r); err != nil {
		slog.Warn("Rejected unauthenticated request", "error", err)
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req models.GenerateTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		writeError(w, http.StatusBadRequest, services.FailureInvalidInput.UserMessage())
		return
	}

	text, err := h.stage.Generate(r.Context(), req.Concern)
	if err != nil {
		if kind, _ := services.FailureKindOf(err); kind == services.FailureInvalidInput {
			writeError(w, http.StatusBadRequest, kind.UserMessage())
			return
		}
		// The specific error is already logged inside Generate.
		writeError(w, http.StatusInternalServerError, services.FailureGeneration.UserMessage())
		return
	}

	writeJSON(w, http.StatusOK, models.GenerateTextResponse{Text: text})
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

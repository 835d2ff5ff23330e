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
	catalogInstance *services.Catalog
	authenticator   *gcp.Authenticator
	once            sync.Once
	initErr         error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleCatalog", handleCatalog)
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
	catalogInstance, err = services.NewCatalog(ctx)
	return err
}

// handleCatalog serves the therapy video library. Reads are public; likes,
// saves and comments need a signed-in user.
func handleCatalog(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		initErr = initialize(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: Catalog initialization failed", "error", initErr)
		writeError(w, http.StatusInternalServerError, "Failed to initialize service")
		return
	}

	switch r.Method {
	case http.MethodGet:
		if id := r.URL.Query().Get("id"); id != "" {
			getVideo(w, r, id)
			return
		}
		listVideos(w, r)
	case http.MethodPost:
		applyAction(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func listVideos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	videos, err := catalogInstance.List(r.Context(), q.Get("category"), q.Get("q"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load videos")
		return
	}
	writeJSON(w, http.StatusOK, models.CatalogListResponse{Videos: videos})
}

func getVideo(w http.ResponseWriter, r *http.Request, id string) {
	video, err := catalogInstance.Get(r.Context(), id)
	if errors.Is(err, services.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Video not found")
		return
	}
	if err != nil {
		slog.Error("Failed to load video", "error", err, "videoId", id)
		writeError(w, http.StatusInternalServerError, "Failed to load video")
		return
	}
	writeJSON(w, http.StatusOK, video)
}

func applyAction(w http.ResponseWriter, r *http.Request) {
	session, err := authenticator.Session(r)
	if err != nil {
		slog.Warn("Rejected unauthenticated request", "error", err)
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req models.CatalogActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		writeError(w, http.StatusBadRequest, "Bad Request: could not parse JSON")
		return
	}

	err = catalogInstance.Apply(r.Context(), session, &req)
	switch {
	case errors.Is(err, services.ErrInvalidAction):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "Video not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to update video")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
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

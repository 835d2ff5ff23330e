package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/joho/godotenv"

	"github.com/Lllllllleong/innerharmony/internal/gcp"
	"github.com/Lllllllleong/innerharmony/internal/services"
)

var (
	importerInstance *services.CatalogImporterFunction
	once             sync.Once
	initErr          error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Fired on object finalize in the catalog upload bucket.
	functions.CloudEvent("ImportCatalog", importCatalog)
}

// main runs the function locally. Deployed functions never call it.
func main() {
	_ = godotenv.Load()
	if err := funcframework.Start(gcp.GetEnv("PORT", "8080")); err != nil {
		slog.Error("Functions framework exited", "error", err)
		os.Exit(1)
	}
}

func importCatalog(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		importerInstance, initErr = services.NewCatalogImporter(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent services.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "eventId", e.ID())
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// Returning an error marks the invocation failed so the event is retried.
	_, err := importerInstance.Process(ctx, gcsEvent)
	return err
}

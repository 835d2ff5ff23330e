package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/innerharmony/internal/gcp"
	"github.com/Lllllllleong/innerharmony/internal/models"
)

const (
	importConcurrency = 10
	receiptsPrefix    = "receipts/"
)

// CatalogImporterConfig holds configuration for the catalog importer.
type CatalogImporterConfig struct {
	ProjectID        string
	DatabaseID       string
	VideosCollection string
	ReceiptsBucket   string
}

// ObjectStore is the object storage the importer reads catalogs from and
// records receipts in.
type ObjectStore interface {
	Exists(ctx context.Context, bucket, name string) (bool, error)
	Read(ctx context.Context, bucket, name string) ([]byte, error)
	// CreateIfAbsent reports false when the object already existed.
	CreateIfAbsent(ctx context.Context, bucket, name string, content []byte) (bool, error)
}

// VideoWriter persists imported videos.
type VideoWriter interface {
	WriteVideos(ctx context.Context, videos []models.Video) error
}

// CatalogImporterFunction loads catalog files dropped into a bucket.
type CatalogImporterFunction struct {
	objects ObjectStore
	videos  VideoWriter
	config  CatalogImporterConfig
	closers []func() error
}

// GCSEvent is the payload of a GCS object event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// NewCatalogImporter creates a new CatalogImporterFunction instance.
func NewCatalogImporter(ctx context.Context) (*CatalogImporterFunction, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	config := CatalogImporterConfig{
		ProjectID:        projectID,
		DatabaseID:       gcp.GetEnv("FIRESTORE_DATABASE", firestore.DefaultDatabaseID),
		VideosCollection: gcp.GetEnv("VIDEOS_COLLECTION", "videos"),
		ReceiptsBucket:   gcp.GetEnv("CATALOG_RECEIPTS_BUCKET", ""),
	}
	if config.ReceiptsBucket == "" {
		return nil, fmt.Errorf("CATALOG_RECEIPTS_BUCKET must be set")
	}

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID, config.DatabaseID)
	if err != nil {
		storageClient.Close()
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	slog.Info("Catalog importer initialized.", "collection", config.VideosCollection, "receiptsBucket", config.ReceiptsBucket)
	return &CatalogImporterFunction{
		objects: &gcsObjectStore{client: storageClient},
		videos:  &firestoreVideoWriter{client: firestoreClient, collection: config.VideosCollection},
		config:  config,
		closers: []func() error{firestoreClient.Close, storageClient.Close},
	}, nil
}

// Process imports one catalog file. Non-JSON objects, receipts and files
// that already have a receipt are skipped.
func (f *CatalogImporterFunction) Process(ctx context.Context, e GCSEvent) (*models.CatalogImportResult, error) {
	logCtx := slog.With("bucket", e.Bucket, "object", e.Name)
	result := &models.CatalogImportResult{Object: e.Name}

	if !strings.HasSuffix(strings.ToLower(e.Name), ".json") {
		logCtx.Info("Ignoring non-JSON object.")
		result.Skipped = true
		return result, nil
	}
	if e.Bucket == f.config.ReceiptsBucket && strings.HasPrefix(e.Name, receiptsPrefix) {
		logCtx.Info("Ignoring import receipt.")
		result.Skipped = true
		return result, nil
	}

	receiptName := ReceiptName(e.Name)
	done, err := f.objects.Exists(ctx, f.config.ReceiptsBucket, receiptName)
	if err != nil {
		logCtx.Error("Failed to check import receipt", "error", err, "receipt", receiptName)
		return nil, err
	}
	if done {
		logCtx.Info("Catalog file already imported, skipping.", "receipt", receiptName)
		result.Skipped = true
		return result, nil
	}

	data, err := f.objects.Read(ctx, e.Bucket, e.Name)
	if err != nil {
		logCtx.Error("Failed to read catalog file", "error", err)
		return nil, err
	}

	videos, err := ParseCatalog(data, time.Now().UTC())
	if err != nil {
		logCtx.Error("Rejected catalog file", "error", err)
		return nil, err
	}
	logCtx.Info("Catalog file parsed.", "videoCount", len(videos))

	if err := f.videos.WriteVideos(ctx, videos); err != nil {
		logCtx.Error("Failed to import videos", "error", err)
		return nil, err
	}
	result.Imported = len(videos)

	receipt, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal import receipt: %w", err)
	}
	created, err := f.objects.CreateIfAbsent(ctx, f.config.ReceiptsBucket, receiptName, receipt)
	if err != nil {
		logCtx.Error("Failed to write import receipt", "error", err, "receipt", receiptName)
		return nil, err
	}
	if !created {
		logCtx.Info("Receipt written by a concurrent delivery.", "receipt", receiptName)
	}

	logCtx.Info("Catalog import complete.", "imported", result.Imported)
	return result, nil
}

type firestoreVideoWriter struct {
	client     *firestore.Client
	collection string
}

func (w *firestoreVideoWriter) WriteVideos(ctx context.Context, videos []models.Video) error {
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(importConcurrency)

	collection := w.client.Collection(w.collection)
	for _, v := range videos {
		v := v
		eg.Go(func() error {
			// MergeAll keeps likes, saves and comments left by users.
			if _, err := collection.Doc(v.ID).Set(gctx, catalogFields(v), firestore.MergeAll); err != nil {
				return fmt.Errorf("video %s: failed to write: %w", v.ID, err)
			}
			return nil
		})
	}
	return eg.Wait()
}

type gcsObjectStore struct {
	client *storage.Client
}

func (s *gcsObjectStore) Exists(ctx context.Context, bucket, name string) (bool, error) {
	return gcp.ObjectExists(ctx, s.client.Bucket(bucket), name)
}

func (s *gcsObjectStore) Read(ctx context.Context, bucket, name string) ([]byte, error) {
	return gcp.ReadGCSObject(ctx, s.client.Bucket(bucket), name)
}

func (s *gcsObjectStore) CreateIfAbsent(ctx context.Context, bucket, name string, content []byte) (bool, error) {
	return gcp.SaveToGCSAtomically(ctx, s.client.Bucket(bucket), name, content)
}

// ReceiptName is the receipts-bucket object marking a catalog file as imported.
func ReceiptName(objectName string) string {
	return receiptsPrefix + strings.TrimPrefix(path.Clean("/"+objectName), "/")
}

// ParseCatalog decodes and validates a catalog file, a JSON array of videos.
// Videos without a creation time are stamped with now.
func ParseCatalog(data []byte, now time.Time) ([]models.Video, error) {
	var videos []models.Video
	if err := json.Unmarshal(data, &videos); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	seen := make(map[string]bool, len(videos))
	for i := range videos {
		v := &videos[i]
		v.ID = strings.TrimSpace(v.ID)
		switch {
		case v.ID == "":
			return nil, fmt.Errorf("video %d: id is required", i)
		case strings.Contains(v.ID, "/"):
			return nil, fmt.Errorf("video %s: id must not contain '/'", v.ID)
		case seen[v.ID]:
			return nil, fmt.Errorf("video %s: duplicate id", v.ID)
		case strings.TrimSpace(v.Title) == "":
			return nil, fmt.Errorf("video %s: title is required", v.ID)
		case !IsKnownCategory(v.Category):
			return nil, fmt.Errorf("video %s: unknown category %q", v.ID, v.Category)
		}
		seen[v.ID] = true
		if v.CreatedAt.IsZero() {
			v.CreatedAt = now
		}
	}
	return videos, nil
}

func catalogFields(v models.Video) map[string]interface{} {
	return map[string]interface{}{
		"title":        v.Title,
		"description":  v.Description,
		"thumbnailUrl": v.ThumbnailURL,
		"videoUrl":     v.VideoURL,
		"category":     v.Category,
		"tags":         v.Tags,
		"benefits":     v.Benefits,
		"affirmations": v.Affirmations,
		"createdAt":    v.CreatedAt,
	}
}

func (f *CatalogImporterFunction) Close() error {
	for _, closeFn := range f.closers {
		if err := closeFn(); err != nil {
			return err
		}
	}
	return nil
}

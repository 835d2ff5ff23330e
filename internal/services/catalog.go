package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/innerharmony/internal/gcp"
	"github.com/Lllllllleong/innerharmony/internal/models"
)

// AllCategories matches every video when used as a filter.
const AllCategories = "All"

// Categories lists the filter values offered to the user, in display order.
var Categories = []string{
	AllCategories,
	"Anxiety",
	"Self-worth",
	"Postpartum",
	"Grief",
	"Relationships",
	"Stress",
	"Depression",
}

var (
	ErrNotFound      = errors.New("video not found")
	ErrInvalidAction = errors.New("invalid catalog action")
)

// IsKnownCategory reports whether category is one of Categories other than All.
func IsKnownCategory(category string) bool {
	for _, c := range Categories[1:] {
		if c == category {
			return true
		}
	}
	return false
}

// CatalogConfig holds configuration for the catalog service.
type CatalogConfig struct {
	ProjectID        string
	DatabaseID       string
	VideosCollection string
}

func loadCatalogConfig() (*CatalogConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	return &CatalogConfig{
		ProjectID:        projectID,
		DatabaseID:       gcp.GetEnv("FIRESTORE_DATABASE", firestore.DefaultDatabaseID),
		VideosCollection: gcp.GetEnv("VIDEOS_COLLECTION", "videos"),
	}, nil
}

// Catalog reads and annotates the therapy video collection.
type Catalog struct {
	firestoreClient *firestore.Client
	config          CatalogConfig
}

// NewCatalog creates a new Catalog instance.
func NewCatalog(ctx context.Context) (*Catalog, error) {
	config, err := loadCatalogConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID, config.DatabaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	return &Catalog{
		firestoreClient: firestoreClient,
		config:          *config,
	}, nil
}

// List returns the videos of category (All or empty for every category)
// whose title, description or tags contain query.
func (c *Catalog) List(ctx context.Context, category, query string) ([]models.Video, error) {
	it := c.firestoreClient.Collection(c.config.VideosCollection).Documents(ctx)
	defer it.Stop()

	var videos []models.Video
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			slog.Error("Failed to list videos", "error", err, "collection", c.config.VideosCollection)
			return nil, fmt.Errorf("failed to list videos: %w", err)
		}

		var v models.Video
		if err := snap.DataTo(&v); err != nil {
			slog.Warn("Skipping malformed video document", "videoId", snap.Ref.ID, "error", err)
			continue
		}
		v.ID = snap.Ref.ID
		videos = append(videos, v)
	}

	filtered := FilterVideos(videos, category, query)
	slog.Info("Listed videos.", "category", category, "total", len(videos), "matched", len(filtered))
	return filtered, nil
}

// Get returns a single video or ErrNotFound.
func (c *Catalog) Get(ctx context.Context, id string) (*models.Video, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	snap, err := c.firestoreClient.Collection(c.config.VideosCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video %s: %w", id, err)
	}

	var v models.Video
	if err := snap.DataTo(&v); err != nil {
		return nil, fmt.Errorf("failed to decode video %s: %w", id, err)
	}
	v.ID = snap.Ref.ID
	return &v, nil
}

// Apply performs a signed-in user's like, save or comment action.
func (c *Catalog) Apply(ctx context.Context, session *gcp.Session, req *models.CatalogActionRequest) error {
	upd, err := actionUpdate(session, req)
	if err != nil {
		return err
	}
	return c.update(ctx, req.VideoID, upd)
}

// SetLiked adds or removes uid from the video's likes.
func (c *Catalog) SetLiked(ctx context.Context, id, uid string, liked bool) error {
	return c.update(ctx, id, firestore.Update{Path: "likes", Value: arrayToggle(uid, liked)})
}

// SetSaved adds or removes uid from the users who saved the video.
func (c *Catalog) SetSaved(ctx context.Context, id, uid string, saved bool) error {
	return c.update(ctx, id, firestore.Update{Path: "savedBy", Value: arrayToggle(uid, saved)})
}

// AddComment appends a comment attributed to author, or Anonymous.
func (c *Catalog) AddComment(ctx context.Context, id, author, text string) error {
	comment, err := FormatComment(author, text)
	if err != nil {
		return err
	}
	return c.update(ctx, id, firestore.Update{Path: "comments", Value: firestore.ArrayUnion(comment)})
}

// actionUpdate maps a catalog action to the field change it makes.
func actionUpdate(session *gcp.Session, req *models.CatalogActionRequest) (firestore.Update, error) {
	switch req.Action {
	case "like", "unlike":
		return firestore.Update{Path: "likes", Value: arrayToggle(session.UID, req.Action == "like")}, nil
	case "save", "unsave":
		return firestore.Update{Path: "savedBy", Value: arrayToggle(session.UID, req.Action == "save")}, nil
	case "comment":
		comment, err := FormatComment(session.Email, req.Text)
		if err != nil {
			return firestore.Update{}, err
		}
		return firestore.Update{Path: "comments", Value: firestore.ArrayUnion(comment)}, nil
	default:
		return firestore.Update{}, fmt.Errorf("%w: unknown action %q", ErrInvalidAction, req.Action)
	}
}

func arrayToggle(value string, add bool) interface{} {
	if add {
		return firestore.ArrayUnion(value)
	}
	return firestore.ArrayRemove(value)
}

func (c *Catalog) update(ctx context.Context, id string, upd firestore.Update) error {
	if id == "" {
		return fmt.Errorf("%w: videoId is required", ErrInvalidAction)
	}
	logCtx := slog.With("videoId", id, "field", upd.Path)

	docRef := c.firestoreClient.Collection(c.config.VideosCollection).Doc(id)
	if _, err := docRef.Update(ctx, []firestore.Update{upd}); err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		logCtx.Error("Failed to update video", "error", err)
		return fmt.Errorf("failed to update video %s: %w", id, err)
	}
	logCtx.Info("Video updated.")
	return nil
}

// FormatComment renders a comment the way the catalog stores it.
func FormatComment(author, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: comment text is required", ErrInvalidAction)
	}
	if author == "" {
		author = "Anonymous"
	}
	return author + ": " + text, nil
}

// FilterVideos applies the category and free-text filters. The search is
// case-insensitive over title, description and tags. Results are newest first.
func FilterVideos(videos []models.Video, category, query string) []models.Video {
	query = strings.ToLower(strings.TrimSpace(query))
	matchAll := category == "" || category == AllCategories

	out := make([]models.Video, 0, len(videos))
	for _, v := range videos {
		if !matchAll && v.Category != category {
			continue
		}
		if query != "" && !videoMatches(v, query) {
			continue
		}
		out = append(out, v)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func videoMatches(v models.Video, query string) bool {
	if strings.Contains(strings.ToLower(v.Title), query) ||
		strings.Contains(strings.ToLower(v.Description), query) {
		return true
	}
	for _, tag := range v.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}

func (c *Catalog) Close() error {
	return c.firestoreClient.Close()
}

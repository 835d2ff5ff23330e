package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/firestore"

	"github.com/Lllllllleong/innerharmony/internal/gcp"
	"github.com/Lllllllleong/innerharmony/internal/models"
)

const (
	MinMood = 1
	MaxMood = 10
)

var ErrInvalidFeedback = errors.New("invalid feedback")

// NewFeedback validates a mood check-in. Mood is on a 1 to 10 scale.
func NewFeedback(userID string, mood int, text string) (*models.Feedback, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidFeedback)
	}
	if mood < MinMood || mood > MaxMood {
		return nil, fmt.Errorf("%w: mood must be between %d and %d, got %d", ErrInvalidFeedback, MinMood, MaxMood, mood)
	}
	return &models.Feedback{
		UserID:   userID,
		Mood:     mood,
		Feedback: strings.TrimSpace(text),
	}, nil
}

// FeedbackRecorder stores mood check-ins in Firestore.
type FeedbackRecorder struct {
	firestoreClient *firestore.Client
	collection      string
}

// NewFeedbackRecorder creates a recorder from the environment.
func NewFeedbackRecorder(ctx context.Context) (*FeedbackRecorder, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, projectID, gcp.GetEnv("FIRESTORE_DATABASE", firestore.DefaultDatabaseID))
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	return &FeedbackRecorder{
		firestoreClient: firestoreClient,
		collection:      gcp.GetEnv("FEEDBACK_COLLECTION", "feedback"),
	}, nil
}

// Record validates and stores one check-in, returning the new document ID.
func (r *FeedbackRecorder) Record(ctx context.Context, userID string, req *models.FeedbackRequest) (string, error) {
	fb, err := NewFeedback(userID, req.Mood, req.Feedback)
	if err != nil {
		return "", err
	}

	docRef, _, err := r.firestoreClient.Collection(r.collection).Add(ctx, fb)
	if err != nil {
		slog.Error("Failed to store feedback", "error", err, "uid", userID)
		return "", fmt.Errorf("failed to store feedback: %w", err)
	}
	slog.Info("Feedback recorded.", "feedbackId", docRef.ID, "uid", userID, "mood", fb.Mood)
	return docRef.ID, nil
}

func (r *FeedbackRecorder) Close() error {
	return r.firestoreClient.Close()
}

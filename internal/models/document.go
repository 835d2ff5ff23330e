package models

import "time"

// Video is a therapy video in the catalog collection.
// ID is the Firestore document ID and is not stored as a field.
type Video struct {
	ID           string    `firestore:"-" json:"id"`
	Title        string    `firestore:"title" json:"title"`
	Description  string    `firestore:"description" json:"description"`
	ThumbnailURL string    `firestore:"thumbnailUrl" json:"thumbnailUrl"`
	VideoURL     string    `firestore:"videoUrl" json:"videoUrl"`
	Category     string    `firestore:"category" json:"category"`
	Tags         []string  `firestore:"tags" json:"tags"`
	Benefits     []string  `firestore:"benefits" json:"benefits"`
	Affirmations []string  `firestore:"affirmations" json:"affirmations"`
	Likes        []string  `firestore:"likes,omitempty" json:"likes,omitempty"`
	SavedBy      []string  `firestore:"savedBy,omitempty" json:"savedBy,omitempty"`
	Comments     []string  `firestore:"comments,omitempty" json:"comments,omitempty"`
	CreatedAt    time.Time `firestore:"createdAt" json:"createdAt"`
}

// Feedback is a mood-tracker entry. CreatedAt is filled in by the server.
type Feedback struct {
	UserID    string    `firestore:"userId"`
	Mood      int       `firestore:"mood"`
	Feedback  string    `firestore:"feedback"`
	CreatedAt time.Time `firestore:"createdAt,serverTimestamp"`
}

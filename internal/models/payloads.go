package models

// These structs define the JSON payloads exchanged with the web client.

// GenerateTextRequest is the input for the text-generator function.
type GenerateTextRequest struct {
	Concern string `json:"concern"`
}

// GenerateTextResponse is the output of the text-generator function.
type GenerateTextResponse struct {
	Text string `json:"text"`
}

// GenerateVideoRequest is the input for the video-generator function.
type GenerateVideoRequest struct {
	Text string `json:"text"`
}

// GenerateVideoResponse is the output of the video-generator function.
type GenerateVideoResponse struct {
	VideoURL string `json:"videoUrl"`
}

// CounselingRequest is the input for the counseling-generator function.
type CounselingRequest struct {
	Concern string `json:"concern"`
}

// CounselingResponse is the output of the counseling-generator function.
type CounselingResponse struct {
	RunID    string `json:"runId"`
	Text     string `json:"text"`
	VideoURL string `json:"videoUrl"`
}

// ErrorResponse is returned by every function on failure. Reason and Text are
// only set by the counseling-generator.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
	Text   string `json:"text,omitempty"`
}

// FeedbackRequest is the input for the feedback-recorder function.
type FeedbackRequest struct {
	Mood     int    `json:"mood"`
	Feedback string `json:"feedback"`
}

// FeedbackResponse is the output of the feedback-recorder function.
type FeedbackResponse struct {
	ID string `json:"id"`
}

// CatalogActionRequest is a signed-in interaction with a catalog video.
type CatalogActionRequest struct {
	VideoID string `json:"videoId"`
	Action  string `json:"action"` // like, unlike, save, unsave, comment
	Text    string `json:"text,omitempty"`
}

// CatalogListResponse is the output of a catalog listing.
type CatalogListResponse struct {
	Videos []Video `json:"videos"`
}

// CatalogImportResult summarizes one catalog file import.
type CatalogImportResult struct {
	Object   string `json:"object"`
	Imported int    `json:"imported"`
	Skipped  bool   `json:"skipped"`
}

package models

// RenderStatus is the provider-reported state of a talking-avatar render.
type RenderStatus string

const (
	RenderCreated  RenderStatus = "created"
	RenderStarted  RenderStatus = "started"
	RenderDone     RenderStatus = "done"
	RenderError    RenderStatus = "error"
	RenderRejected RenderStatus = "rejected"
)

// IsDone reports whether the render finished successfully.
func (s RenderStatus) IsDone() bool { return s == RenderDone }

// IsFailed reports whether the provider gave up on the render.
func (s RenderStatus) IsFailed() bool {
	return s == RenderError || s == RenderRejected
}

// RenderJob is an in-flight render as last observed from the provider.
type RenderJob struct {
	ID        string       `json:"id"`
	Status    RenderStatus `json:"status"`
	ResultURL string       `json:"result_url,omitempty"`
	// Attempts is the number of status fetches made so far.
	Attempts int `json:"-"`
}

// CounselingResult is the outcome of one pipeline run. Text is kept even
// when the video could not be produced so the caller can still show it.
type CounselingResult struct {
	RunID    string
	Text     string
	VideoURL string
}

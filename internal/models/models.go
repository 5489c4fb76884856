package models

import (
	"image"
	"time"

	"github.com/google/uuid"
)

// DefaultInterval is the sampling step used when the user does not pick one.
const DefaultInterval = 30

// SessionInput is what the user submits for one run.
type SessionInput struct {
	URL      string
	Interval int
	Level    Level
}

// Frame is one decoded still image and its position in decode order.
type Frame struct {
	Index  int
	Offset time.Duration // zero when the stream frame rate is unknown
	Image  image.Image
}

// Caption is the narration produced for a single frame.
type Caption struct {
	FrameIndex int
	Text       string
	Failure    *Failure // set when Text is the fallback
}

// Failed reports whether the caption carries the fallback text.
func (c Caption) Failed() bool {
	return c.Failure != nil
}

// WorkItem represents a frame to be captioned
type WorkItem struct {
	Frame    Frame
	FrameNum int
	Total    int
}

// AnalysisResult represents the result of captioning a frame
type AnalysisResult struct {
	RunID    uuid.UUID `json:"run_id"`
	VideoURL string    `json:"video_url"`
	Level    string    `json:"level"`
	Frame    int       `json:"frame"`
	OffsetMS int64     `json:"offset_ms"`
	Content  string    `json:"content"`
	Failed   bool      `json:"failed"`
}

// CaptionSearchResult is a stored caption ranked by similarity to a query.
type CaptionSearchResult struct {
	RunID       uuid.UUID `json:"run_id"`
	VideoURL    string    `json:"video_url"`
	FrameNumber int       `json:"frame_number"`
	Description string    `json:"description"`
	Similarity  float64   `json:"similarity"`
}

// RunResult summarizes a finished run.
type RunResult struct {
	ID         uuid.UUID
	Input      SessionInput
	Stage      Stage
	FrameCount int
	Captions   []Caption
	Failures   []*Failure
	StartedAt  time.Time
	FinishedAt time.Time
}

// Fatal returns the failure that ended the run early, if any.
func (r *RunResult) Fatal() *Failure {
	for _, f := range r.Failures {
		if f.Kind.Terminal() {
			return f
		}
	}
	return nil
}

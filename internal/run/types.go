package run

import (
	"time"

	"github.com/video-translate/backend/internal/pipeline"
)

// Status is the lifecycle state of a pipeline run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further state change can happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Run is the explicit session object for one user-initiated pipeline
// execution: the uploaded video, the requested languages, and the outputs.
type Run struct {
	ID           string                 `json:"id"`
	Status       Status                 `json:"status"`
	Stage        string                 `json:"stage,omitempty"` // current stage, or the stage a failure originated in
	VideoName    string                 `json:"video_name"`
	VideoPath    string                 `json:"-"` // server filesystem path, never exposed
	VideoHash    string                 `json:"video_hash"`
	Languages    []string               `json:"languages"`
	Engine       string                 `json:"engine"`
	Progress     float64                `json:"progress"`
	Transcript   string                 `json:"transcript,omitempty"`
	Translations []pipeline.Translation `json:"translations,omitempty"`
	Error        string                 `json:"error,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	StartedAt    *time.Time             `json:"started_at,omitempty"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
}

// Translation looks up one language's result on a completed run.
func (r *Run) Translation(lang string) (pipeline.Translation, bool) {
	for _, tr := range r.Translations {
		if tr.Language == lang {
			return tr, true
		}
	}
	return pipeline.Translation{}, false
}

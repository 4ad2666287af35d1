package domain

import "time"

// GenerationStatus enumerates the lifecycle states of a generation record.
type GenerationStatus string

const (
	GenerationStatusPending   GenerationStatus = "pending"
	GenerationStatusCompleted GenerationStatus = "completed"
	GenerationStatusFailed    GenerationStatus = "failed"
)

// Terminal reports whether the status permits no further transition.
func (s GenerationStatus) Terminal() bool {
	return s == GenerationStatusCompleted || s == GenerationStatusFailed
}

// Generation tracks one image-edit request from dispatch to its terminal state.
type Generation struct {
	ID                string           `json:"id"`
	Prompt            string           `json:"prompt"`
	OriginalImageURL  string           `json:"originalImageUrl,omitempty"`
	GeneratedImageURL string           `json:"generatedImageUrl,omitempty"`
	Status            GenerationStatus `json:"status"`
	ErrorMessage      string           `json:"errorMessage,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
}

// GenerationPatch is a partial update applied exactly once to move a pending
// record into a terminal state.
type GenerationPatch struct {
	Status            *GenerationStatus
	GeneratedImageURL *string
	ErrorMessage      *string
}

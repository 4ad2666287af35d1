package domain

import "context"

// GenerationRepository defines persistence for generation records.
//
// Implementations must allocate collision-free identifiers under concurrent
// callers and must refuse a second terminal transition for the same record.
type GenerationRepository interface {
	Create(ctx context.Context, prompt, originalImageURL string) (*Generation, error)
	Update(ctx context.Context, id string, patch GenerationPatch) (*Generation, error)
	GetByID(ctx context.Context, id string) (*Generation, error)
	ListRecent(ctx context.Context, limit int) ([]Generation, error)
}

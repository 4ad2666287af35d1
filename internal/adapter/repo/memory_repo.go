package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"retouch/internal/domain"
)

// MemoryRepository keeps generation records in process memory. It backs
// development and test environments where no DATABASE_URL is configured.
type MemoryRepository struct {
	mu   sync.RWMutex
	seq  map[string]int
	next int
	recs map[string]*domain.Generation
}

// NewMemoryRepository creates an empty in-memory store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		seq:  make(map[string]int),
		recs: make(map[string]*domain.Generation),
	}
}

// Create allocates a fresh pending record.
func (r *MemoryRepository) Create(ctx context.Context, prompt, originalImageURL string) (*domain.Generation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	gen := &domain.Generation{
		ID:               uuid.NewString(),
		Prompt:           prompt,
		OriginalImageURL: originalImageURL,
		Status:           domain.GenerationStatusPending,
		CreatedAt:        time.Now().UTC(),
	}

	r.mu.Lock()
	r.next++
	r.seq[gen.ID] = r.next
	r.recs[gen.ID] = gen
	r.mu.Unlock()

	copied := *gen
	return &copied, nil
}

// Update applies a partial patch and refuses a second terminal transition.
func (r *MemoryRepository) Update(ctx context.Context, id string, patch domain.GenerationPatch) (*domain.Generation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	gen, ok := r.recs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if patch.Status != nil {
		if gen.Status.Terminal() {
			return nil, domain.ErrTerminalState
		}
		gen.Status = *patch.Status
	}
	if patch.GeneratedImageURL != nil {
		gen.GeneratedImageURL = *patch.GeneratedImageURL
	}
	if patch.ErrorMessage != nil {
		gen.ErrorMessage = *patch.ErrorMessage
	}

	copied := *gen
	return &copied, nil
}

// GetByID fetches a generation by its identifier.
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Generation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	gen, ok := r.recs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *gen
	return &copied, nil
}

// ListRecent returns up to limit records, newest first. Records created in
// the same instant keep reverse insertion order.
func (r *MemoryRepository) ListRecent(ctx context.Context, limit int) ([]domain.Generation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	r.mu.RLock()
	out := make([]domain.Generation, 0, len(r.recs))
	for _, gen := range r.recs {
		out = append(out, *gen)
	}
	seq := make(map[string]int, len(r.seq))
	for id, n := range r.seq {
		seq[id] = n
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return seq[out[i].ID] > seq[out[j].ID]
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ domain.GenerationRepository = (*MemoryRepository)(nil)

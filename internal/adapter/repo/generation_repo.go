package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"retouch/internal/domain"
)

// GenerationRepositoryPG implements domain.GenerationRepository.
type GenerationRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewGenerationRepository creates a new generation repository backed by PostgreSQL.
func NewGenerationRepository(pool *pgxpool.Pool) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{pool: pool}
}

// Create inserts a fresh pending record and returns it with the allocated id.
func (r *GenerationRepositoryPG) Create(ctx context.Context, prompt, originalImageURL string) (*domain.Generation, error) {
	query := `
INSERT INTO generations (id, prompt, original_image_url, status)
VALUES ($1, $2, NULLIF($3, ''), $4)
RETURNING id, prompt, COALESCE(original_image_url, ''), COALESCE(generated_image_url, ''), status, COALESCE(error_message, ''), created_at;
`
	row := r.pool.QueryRow(ctx, query, uuid.NewString(), prompt, originalImageURL, domain.GenerationStatusPending)
	return scanGeneration(row)
}

// Update applies a partial patch. Status transitions are only accepted while
// the record is still pending, which keeps terminal states irreversible.
func (r *GenerationRepositoryPG) Update(ctx context.Context, id string, patch domain.GenerationPatch) (*domain.Generation, error) {
	query := `
UPDATE generations
SET status = COALESCE($2, status),
    generated_image_url = COALESCE($3, generated_image_url),
    error_message = COALESCE($4, error_message)
WHERE id = $1
  AND ($2 IS NULL OR status = 'pending')
RETURNING id, prompt, COALESCE(original_image_url, ''), COALESCE(generated_image_url, ''), status, COALESCE(error_message, ''), created_at;
`
	var status *string
	if patch.Status != nil {
		s := string(*patch.Status)
		status = &s
	}
	row := r.pool.QueryRow(ctx, query, id, status, patch.GeneratedImageURL, patch.ErrorMessage)
	gen, err := scanGeneration(row)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		// Distinguish a missing record from a refused second transition.
		if _, getErr := r.GetByID(ctx, id); getErr == nil {
			return nil, domain.ErrTerminalState
		}
		return nil, domain.ErrNotFound
	}
	return gen, nil
}

// GetByID fetches a generation by its identifier.
func (r *GenerationRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Generation, error) {
	query := `
SELECT id, prompt, COALESCE(original_image_url, ''), COALESCE(generated_image_url, ''), status, COALESCE(error_message, ''), created_at
FROM generations
WHERE id = $1;
`
	return scanGeneration(r.pool.QueryRow(ctx, query, id))
}

// ListRecent returns up to limit records ordered newest first.
func (r *GenerationRepositoryPG) ListRecent(ctx context.Context, limit int) ([]domain.Generation, error) {
	query := `
SELECT id, prompt, COALESCE(original_image_url, ''), COALESCE(generated_image_url, ''), status, COALESCE(error_message, ''), created_at
FROM generations
ORDER BY created_at DESC
LIMIT $1;
`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	var out []domain.Generation
	for rows.Next() {
		var gen domain.Generation
		if err := rows.Scan(
			&gen.ID,
			&gen.Prompt,
			&gen.OriginalImageURL,
			&gen.GeneratedImageURL,
			&gen.Status,
			&gen.ErrorMessage,
			&gen.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		out = append(out, gen)
	}
	return out, rows.Err()
}

func scanGeneration(row pgx.Row) (*domain.Generation, error) {
	var gen domain.Generation
	if err := row.Scan(
		&gen.ID,
		&gen.Prompt,
		&gen.OriginalImageURL,
		&gen.GeneratedImageURL,
		&gen.Status,
		&gen.ErrorMessage,
		&gen.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &gen, nil
}

var _ domain.GenerationRepository = (*GenerationRepositoryPG)(nil)

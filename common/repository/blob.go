package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lyzr/launchpad/common/db"
	"github.com/lyzr/launchpad/common/models"
)

// BlobRepository handles database operations for content-addressed blobs
type BlobRepository struct {
	db db.Querier
}

// NewBlobRepository creates a new blob repository
func NewBlobRepository(q db.Querier) *BlobRepository {
	return &BlobRepository{db: q}
}

const blobColumns = `id, hash, size_bytes, content_type, storage_key, created_at`

func scanBlob(row pgx.Row) (*models.Blob, error) {
	b := &models.Blob{}
	err := row.Scan(
		&b.ID,
		&b.Hash,
		&b.SizeBytes,
		&b.ContentType,
		&b.StorageKey,
		&b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetByHash retrieves a blob by its content hash
func (r *BlobRepository) GetByHash(ctx context.Context, hash string) (*models.Blob, error) {
	query := `SELECT ` + blobColumns + ` FROM blob WHERE hash = $1`

	b, err := scanBlob(r.db.QueryRow(ctx, query, hash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("blob %s: %w", hash, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blob by hash: %w", err)
	}
	return b, nil
}

// GetByID retrieves a blob by its ID
func (r *BlobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Blob, error) {
	query := `SELECT ` + blobColumns + ` FROM blob WHERE id = $1`

	b, err := scanBlob(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("blob %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blob: %w", err)
	}
	return b, nil
}

// Insert stores blob metadata. Returns models.ErrConflict when another
// writer already inserted the same hash.
func (r *BlobRepository) Insert(ctx context.Context, blob *models.Blob) error {
	query := `
		INSERT INTO blob (id, hash, size_bytes, content_type, storage_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (hash) DO NOTHING
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		blob.ID,
		blob.Hash,
		blob.SizeBytes,
		blob.ContentType,
		blob.StorageKey,
		blob.CreatedAt,
	).Scan(&blob.ID)

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("blob %s: %w", blob.Hash, models.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create blob: %w", err)
	}
	return nil
}

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

// ArtifactRepository handles database operations for uploaded SPA bundles
type ArtifactRepository struct {
	db db.Querier
}

// NewArtifactRepository creates a new artifact repository
func NewArtifactRepository(q db.Querier) *ArtifactRepository {
	return &ArtifactRepository{db: q}
}

// Create inserts a new artifact
func (r *ArtifactRepository) Create(ctx context.Context, a *models.Artifact) error {
	query := `
		INSERT INTO artifact (id, app_id, blob_id, file_name, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(ctx, query,
		a.ID,
		a.AppID,
		a.BlobID,
		a.FileName,
		a.SizeBytes,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create artifact: %w", err)
	}
	return nil
}

// GetByID retrieves an artifact by its ID
func (r *ArtifactRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Artifact, error) {
	query := `
		SELECT id, app_id, blob_id, file_name, size_bytes, created_at
		FROM artifact
		WHERE id = $1
	`

	a := &models.Artifact{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.AppID,
		&a.BlobID,
		&a.FileName,
		&a.SizeBytes,
		&a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("artifact %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	return a, nil
}

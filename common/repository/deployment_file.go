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

// DeploymentFileRepository reads deployment manifests
type DeploymentFileRepository struct {
	db db.Querier
}

// NewDeploymentFileRepository creates a new deployment file repository
func NewDeploymentFileRepository(q db.Querier) *DeploymentFileRepository {
	return &DeploymentFileRepository{db: q}
}

const deploymentFileColumns = `deployment_id, path, blob_id, size_bytes, etag, created_at`

func scanDeploymentFile(row pgx.Row) (*models.DeploymentFile, error) {
	f := &models.DeploymentFile{}
	err := row.Scan(
		&f.DeploymentID,
		&f.Path,
		&f.BlobID,
		&f.SizeBytes,
		&f.ETag,
		&f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ListByDeployment returns the manifest of a deployment ordered by path
func (r *DeploymentFileRepository) ListByDeployment(ctx context.Context, deploymentID uuid.UUID) ([]*models.DeploymentFile, error) {
	query := `SELECT ` + deploymentFileColumns + `
		FROM deployment_file
		WHERE deployment_id = $1
		ORDER BY path
	`

	rows, err := r.db.Query(ctx, query, deploymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployment files: %w", err)
	}
	defer rows.Close()

	var files []*models.DeploymentFile
	for rows.Next() {
		f, err := scanDeploymentFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deployment file: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deployment files: %w", err)
	}
	return files, nil
}

// GetByPath returns one manifest entry
func (r *DeploymentFileRepository) GetByPath(ctx context.Context, deploymentID uuid.UUID, path string) (*models.DeploymentFile, error) {
	query := `SELECT ` + deploymentFileColumns + `
		FROM deployment_file
		WHERE deployment_id = $1 AND path = $2
	`

	f, err := scanDeploymentFile(r.db.QueryRow(ctx, query, deploymentID, path))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("file %q in deployment %s: %w", path, deploymentID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment file: %w", err)
	}
	return f, nil
}

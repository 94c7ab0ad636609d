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

// DeploymentRepository handles database operations for deployments
type DeploymentRepository struct {
	db db.Querier
}

// NewDeploymentRepository creates a new deployment repository
func NewDeploymentRepository(q db.Querier) *DeploymentRepository {
	return &DeploymentRepository{db: q}
}

const deploymentColumns = `
	id, app_id, build_job_id, artifact_id, type, status, name, description,
	created_at, updated_at, version`

func scanDeployment(row pgx.Row) (*models.Deployment, error) {
	d := &models.Deployment{}
	var kind, status string

	err := row.Scan(
		&d.ID,
		&d.AppID,
		&d.BuildJobID,
		&d.ArtifactID,
		&kind,
		&status,
		&d.Name,
		&d.Description,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.Version,
	)
	if err != nil {
		return nil, err
	}
	d.Type = models.DeploymentType(kind)
	d.Status = models.DeploymentStatus(status)
	return d, nil
}

func insertDeployment(ctx context.Context, q db.Querier, d *models.Deployment) error {
	query := `
		INSERT INTO deployment (
			id, app_id, build_job_id, artifact_id, type, status, name, description,
			created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := q.Exec(ctx, query,
		d.ID,
		d.AppID,
		d.BuildJobID,
		d.ArtifactID,
		string(d.Type),
		string(d.Status),
		d.Name,
		d.Description,
		d.CreatedAt,
		d.UpdatedAt,
		d.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to create deployment: %w", err)
	}
	return nil
}

// GetByID retrieves a deployment by its ID
func (r *DeploymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployment WHERE id = $1`

	d, err := scanDeployment(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("deployment %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment: %w", err)
	}
	return d, nil
}

// GetByBuildJob retrieves the SPA deployment created for a build
func (r *DeploymentRepository) GetByBuildJob(ctx context.Context, buildJobID uuid.UUID) (*models.Deployment, error) {
	query := `SELECT ` + deploymentColumns + `
		FROM deployment
		WHERE build_job_id = $1 AND type = 'spa'
	`

	d, err := scanDeployment(r.db.QueryRow(ctx, query, buildJobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("deployment for build %s: %w", buildJobID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment by build: %w", err)
	}
	return d, nil
}

// ListByApp lists an app's deployments, newest first
func (r *DeploymentRepository) ListByApp(ctx context.Context, appID uuid.UUID, limit int) ([]*models.Deployment, error) {
	query := `SELECT ` + deploymentColumns + `
		FROM deployment
		WHERE app_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, appID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	defer rows.Close()

	var deployments []*models.Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deployment: %w", err)
		}
		deployments = append(deployments, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deployments: %w", err)
	}
	return deployments, nil
}

// AttachArtifact links an uploaded bundle to a deployment that is still building
func (r *DeploymentRepository) AttachArtifact(ctx context.Context, deploymentID, artifactID uuid.UUID) error {
	query := `
		UPDATE deployment
		SET artifact_id = $2, updated_at = now(), version = version + 1
		WHERE id = $1 AND status = 'building'
	`

	tag, err := r.db.Exec(ctx, query, deploymentID, artifactID)
	if err != nil {
		return fmt.Errorf("failed to attach artifact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deployment %s is not building: %w", deploymentID, models.ErrInvalidTransition)
	}
	return nil
}

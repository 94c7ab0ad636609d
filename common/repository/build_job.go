package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lyzr/launchpad/common/db"
	"github.com/lyzr/launchpad/common/models"
)

// BuildJobRepository handles build jobs and the SPA deployments they produce.
// Every status change is guarded in SQL so redelivered or reordered events
// cannot move a job backwards.
type BuildJobRepository struct {
	pool db.Pool
}

// NewBuildJobRepository creates a new build job repository
func NewBuildJobRepository(pool db.Pool) *BuildJobRepository {
	return &BuildJobRepository{pool: pool}
}

// BuildOutcome describes what a terminal transition changed
type BuildOutcome struct {
	AppID        uuid.UUID
	DeploymentID *uuid.UUID

	// Promoted is true when the placeholder became the active SPA deployment
	Promoted bool
}

const buildJobColumns = `
	id, app_id, status, metadata, container_id, log_key, created_at, started_at, finished_at`

func scanBuildJob(row pgx.Row) (*models.BuildJob, error) {
	job := &models.BuildJob{}
	var status string
	var metadata []byte

	err := row.Scan(
		&job.ID,
		&job.AppID,
		&status,
		&metadata,
		&job.ContainerID,
		&job.LogKey,
		&job.CreatedAt,
		&job.StartedAt,
		&job.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Status = models.BuildJobStatus(status)
	if err := unmarshalJSONB(metadata, &job.Metadata); err != nil {
		return nil, fmt.Errorf("build %s: decode metadata: %w", job.ID, err)
	}
	return job, nil
}

// CreateWithPlaceholder inserts the queued job and its Building SPA
// deployment in one transaction
func (r *BuildJobRepository) CreateWithPlaceholder(ctx context.Context, job *models.BuildJob, placeholder *models.Deployment) error {
	metadata, err := json.Marshal(job.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal build metadata: %w", err)
	}

	query := `
		INSERT INTO build_job (id, app_id, status, metadata, log_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, query,
			job.ID,
			job.AppID,
			string(job.Status),
			metadata,
			job.LogKey,
			job.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create build job: %w", err)
		}
		return insertDeployment(ctx, tx, placeholder)
	})
}

// GetByID retrieves a build job by its ID
func (r *BuildJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.BuildJob, error) {
	query := `SELECT ` + buildJobColumns + ` FROM build_job WHERE id = $1`

	job, err := scanBuildJob(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("build %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get build job: %w", err)
	}
	return job, nil
}

// ListByApp lists an app's builds, newest first
func (r *BuildJobRepository) ListByApp(ctx context.Context, appID uuid.UUID, limit int) ([]*models.BuildJob, error) {
	query := `SELECT ` + buildJobColumns + `
		FROM build_job
		WHERE app_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, appID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list build jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.BuildJob
	for rows.Next() {
		job, err := scanBuildJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan build job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate build jobs: %w", err)
	}
	return jobs, nil
}

// MarkStarted records the worker that picked the build up. Applying it twice
// overwrites the container id and timestamp.
func (r *BuildJobRepository) MarkStarted(ctx context.Context, id uuid.UUID, containerID string, at time.Time) (uuid.UUID, error) {
	query := `
		UPDATE build_job
		SET status = 'started', container_id = NULLIF($2, ''), started_at = $3
		WHERE id = $1 AND status IN ('queued', 'started')
		RETURNING app_id
	`

	var appID uuid.UUID
	err := r.pool.QueryRow(ctx, query, id, containerID, at).Scan(&appID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, transitionError(ctx, r.pool, id, models.BuildStarted)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to mark build started: %w", err)
	}
	return appID, nil
}

// Complete marks the job done. When the build uploaded an artifact, its
// placeholder becomes Ready and the app's active SPA deployment in the same
// transaction; without an artifact the placeholder is marked Failed.
func (r *BuildJobRepository) Complete(ctx context.Context, id uuid.UUID, at time.Time) (*BuildOutcome, error) {
	outcome := &BuildOutcome{}

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		appID, err := finishJob(ctx, tx, id, models.BuildDone, at)
		if err != nil {
			return err
		}
		outcome.AppID = appID

		promote := `
			UPDATE deployment
			SET status = 'ready', updated_at = now(), version = version + 1
			WHERE build_job_id = $1 AND type = 'spa' AND status = 'building' AND artifact_id IS NOT NULL
			RETURNING id
		`
		var deploymentID uuid.UUID
		err = tx.QueryRow(ctx, promote, id).Scan(&deploymentID)
		if errors.Is(err, pgx.ErrNoRows) {
			failed, err := failPlaceholder(ctx, tx, id)
			outcome.DeploymentID = failed
			return err
		}
		if err != nil {
			return fmt.Errorf("failed to promote deployment: %w", err)
		}

		outcome.DeploymentID = &deploymentID
		if err := setActiveDeployment(ctx, tx, appID, deploymentID, models.DeploymentTypeSPA); err != nil {
			return err
		}
		outcome.Promoted = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// Fail marks the job failed and its placeholder Failed
func (r *BuildJobRepository) Fail(ctx context.Context, id uuid.UUID, at time.Time) (*BuildOutcome, error) {
	outcome := &BuildOutcome{}

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		appID, err := finishJob(ctx, tx, id, models.BuildFailed, at)
		if err != nil {
			return err
		}
		outcome.AppID = appID

		outcome.DeploymentID, err = failPlaceholder(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func finishJob(ctx context.Context, q db.Querier, id uuid.UUID, status models.BuildJobStatus, at time.Time) (uuid.UUID, error) {
	query := `
		UPDATE build_job
		SET status = $2, finished_at = $3
		WHERE id = $1 AND status IN ('queued', 'started')
		RETURNING app_id
	`

	var appID uuid.UUID
	err := q.QueryRow(ctx, query, id, string(status), at).Scan(&appID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, transitionError(ctx, q, id, status)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to mark build %s: %w", status, err)
	}
	return appID, nil
}

func failPlaceholder(ctx context.Context, q db.Querier, buildID uuid.UUID) (*uuid.UUID, error) {
	query := `
		UPDATE deployment
		SET status = 'failed', updated_at = now(), version = version + 1
		WHERE build_job_id = $1 AND status IN ('pending', 'building')
		RETURNING id
	`

	var id uuid.UUID
	err := q.QueryRow(ctx, query, buildID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark deployment failed: %w", err)
	}
	return &id, nil
}

// transitionError distinguishes an unknown job from a rejected transition
func transitionError(ctx context.Context, q db.Querier, id uuid.UUID, next models.BuildJobStatus) error {
	var current string
	err := q.QueryRow(ctx, `SELECT status FROM build_job WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("build %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read build status: %w", err)
	}
	return fmt.Errorf("build %s %s -> %s: %w", id, current, next, models.ErrInvalidTransition)
}

package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lyzr/launchpad/common/db"
	"github.com/lyzr/launchpad/common/models"
)

// SnapshotRepository persists API snapshots as one unit of work
type SnapshotRepository struct {
	pool db.Pool
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(pool db.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

// CommitAPISnapshot writes the deployment and its manifest, seals it Ready and
// makes it the app's active API deployment, all in one transaction. The app
// pointer is the last statement; on any failure nothing is visible and the
// previous active deployment stays in place.
func (r *SnapshotRepository) CommitAPISnapshot(ctx context.Context, d *models.Deployment, files []models.DeploymentFile) error {
	d.Type = models.DeploymentTypeAPI
	d.Status = models.DeploymentPending

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertDeployment(ctx, tx, d); err != nil {
			return err
		}

		for i := range files {
			if err := insertDeploymentFile(ctx, tx, &files[i]); err != nil {
				return err
			}
		}

		if err := sealDeployment(ctx, tx, d); err != nil {
			return err
		}

		return setActiveDeployment(ctx, tx, d.AppID, d.ID, models.DeploymentTypeAPI)
	})
	if err != nil {
		d.Status = models.DeploymentPending
		return err
	}

	d.Status = models.DeploymentReady
	d.Version++
	return nil
}

// insertDeploymentFile refuses to add files to a deployment that is already Ready
func insertDeploymentFile(ctx context.Context, q db.Querier, f *models.DeploymentFile) error {
	query := `
		INSERT INTO deployment_file (deployment_id, path, blob_id, size_bytes, etag, created_at)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE EXISTS (SELECT 1 FROM deployment WHERE id = $1 AND status <> 'ready')
	`

	tag, err := q.Exec(ctx, query,
		f.DeploymentID,
		f.Path,
		f.BlobID,
		f.SizeBytes,
		f.ETag,
		f.CreatedAt,
	)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w", f.Path, models.ErrDuplicatePath)
	}
	if err != nil {
		return fmt.Errorf("failed to add deployment file %s: %w", f.Path, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deployment %s is sealed: %w", f.DeploymentID, models.ErrInvalidTransition)
	}
	return nil
}

func sealDeployment(ctx context.Context, q db.Querier, d *models.Deployment) error {
	query := `
		UPDATE deployment
		SET status = 'ready', updated_at = now(), version = version + 1
		WHERE id = $1 AND status = 'pending'
	`

	tag, err := q.Exec(ctx, query, d.ID)
	if err != nil {
		return fmt.Errorf("failed to seal deployment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deployment %s is not pending: %w", d.ID, models.ErrInvalidTransition)
	}
	return nil
}

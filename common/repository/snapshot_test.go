package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/launchpad/common/models"
)

func snapshotFixture() (*models.Deployment, []models.DeploymentFile) {
	now := time.Now().UTC()
	d := &models.Deployment{
		ID:        uuid.New(),
		AppID:     uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
	files := []models.DeploymentFile{
		{DeploymentID: d.ID, Path: "openapi.json", BlobID: uuid.New(), SizeBytes: 10, ETag: "aa", CreatedAt: now},
		{DeploymentID: d.ID, Path: "routes.json", BlobID: uuid.New(), SizeBytes: 2, ETag: "bb", CreatedAt: now},
	}
	return d, files
}

func TestSnapshotRepository_CommitOrdersWritesAndActivatesLast(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	d, files := snapshotFixture()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO deployment \\(").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO deployment_file").
		WithArgs(d.ID, "openapi.json", files[0].BlobID, int64(10), "aa", files[0].CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO deployment_file").
		WithArgs(d.ID, "routes.json", files[1].BlobID, int64(2), "bb", files[1].CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE deployment\\s+SET status = 'ready'").
		WithArgs(d.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE app SET active_api_deployment_id").
		WithArgs(d.AppID, d.ID, "api").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = NewSnapshotRepository(mock).CommitAPISnapshot(context.Background(), d, files)
	require.NoError(t, err)
	assert.Equal(t, models.DeploymentReady, d.Status)
	assert.Equal(t, models.DeploymentTypeAPI, d.Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository_FileFailureRollsBackWithoutActivation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	d, files := snapshotFixture()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO deployment \\(").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO deployment_file").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = NewSnapshotRepository(mock).CommitAPISnapshot(context.Background(), d, files)
	require.Error(t, err)
	assert.Equal(t, models.DeploymentPending, d.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository_DuplicatePath(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	d, files := snapshotFixture()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO deployment \\(").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO deployment_file").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err = NewSnapshotRepository(mock).CommitAPISnapshot(context.Background(), d, files)
	assert.ErrorIs(t, err, models.ErrDuplicatePath)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository_ActivationFailureRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	d, files := snapshotFixture()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO deployment \\(").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	for range files {
		mock.ExpectExec("INSERT INTO deployment_file").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectExec("UPDATE deployment").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE app SET active_api_deployment_id").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err = NewSnapshotRepository(mock).CommitAPISnapshot(context.Background(), d, files)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, models.DeploymentPending, d.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository_SealedDeploymentRejectsFiles(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	d, files := snapshotFixture()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO deployment \\(").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO deployment_file").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectRollback()

	err = NewSnapshotRepository(mock).CommitAPISnapshot(context.Background(), d, files)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

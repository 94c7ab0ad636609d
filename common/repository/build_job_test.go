package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/launchpad/common/models"
)

func TestBuildJobRepository_CreateWithPlaceholder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	job := &models.BuildJob{
		ID:        uuid.New(),
		AppID:     uuid.New(),
		Status:    models.BuildQueued,
		Metadata:  map[string]string{models.MetaBranch: "main"},
		CreatedAt: now,
	}
	placeholder := &models.Deployment{
		ID:         uuid.New(),
		AppID:      job.AppID,
		BuildJobID: &job.ID,
		Type:       models.DeploymentTypeSPA,
		Status:     models.DeploymentBuilding,
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    1,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO build_job").
		WithArgs(job.ID, job.AppID, "queued", []byte(`{"branch":"main"}`), job.LogKey, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO deployment \\(").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = NewBuildJobRepository(mock).CreateWithPlaceholder(context.Background(), job, placeholder)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildJobRepository_MarkStarted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id, appID := uuid.New(), uuid.New()
	at := time.Now().UTC()

	mock.ExpectQuery("UPDATE build_job\\s+SET status = 'started'").
		WithArgs(id, "worker-1", at).
		WillReturnRows(pgxmock.NewRows([]string{"app_id"}).AddRow(appID))

	got, err := NewBuildJobRepository(mock).MarkStarted(context.Background(), id, "worker-1", at)
	require.NoError(t, err)
	assert.Equal(t, appID, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildJobRepository_MarkStartedOnTerminalJob(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()

	mock.ExpectQuery("UPDATE build_job").
		WillReturnRows(pgxmock.NewRows([]string{"app_id"}))
	mock.ExpectQuery("SELECT status FROM build_job").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("done"))

	_, err = NewBuildJobRepository(mock).MarkStarted(context.Background(), id, "", time.Now())
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildJobRepository_MarkStartedUnknownJob(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("UPDATE build_job").
		WillReturnRows(pgxmock.NewRows([]string{"app_id"}))
	mock.ExpectQuery("SELECT status FROM build_job").
		WillReturnRows(pgxmock.NewRows([]string{"status"}))

	_, err = NewBuildJobRepository(mock).MarkStarted(context.Background(), uuid.New(), "", time.Now())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestBuildJobRepository_CompletePromotesPlaceholder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id, appID, deploymentID := uuid.New(), uuid.New(), uuid.New()
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE build_job").
		WithArgs(id, "done", at).
		WillReturnRows(pgxmock.NewRows([]string{"app_id"}).AddRow(appID))
	mock.ExpectQuery("UPDATE deployment\\s+SET status = 'ready'").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(deploymentID))
	mock.ExpectExec("UPDATE app SET active_spa_deployment_id").
		WithArgs(appID, deploymentID, "spa").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	outcome, err := NewBuildJobRepository(mock).Complete(context.Background(), id, at)
	require.NoError(t, err)
	assert.True(t, outcome.Promoted)
	assert.Equal(t, appID, outcome.AppID)
	require.NotNil(t, outcome.DeploymentID)
	assert.Equal(t, deploymentID, *outcome.DeploymentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildJobRepository_CompleteWithoutArtifactFailsPlaceholder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id, appID, deploymentID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE build_job").
		WillReturnRows(pgxmock.NewRows([]string{"app_id"}).AddRow(appID))
	mock.ExpectQuery("UPDATE deployment\\s+SET status = 'ready'").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery("UPDATE deployment\\s+SET status = 'failed'").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(deploymentID))
	mock.ExpectCommit()

	outcome, err := NewBuildJobRepository(mock).Complete(context.Background(), id, time.Now())
	require.NoError(t, err)
	assert.False(t, outcome.Promoted)
	require.NotNil(t, outcome.DeploymentID)
	assert.Equal(t, deploymentID, *outcome.DeploymentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildJobRepository_CompleteRejectsTerminalJob(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE build_job").
		WillReturnRows(pgxmock.NewRows([]string{"app_id"}))
	mock.ExpectQuery("SELECT status FROM build_job").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("failed"))
	mock.ExpectRollback()

	_, err = NewBuildJobRepository(mock).Complete(context.Background(), id, time.Now())
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildJobRepository_Fail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id, appID, deploymentID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE build_job").
		WillReturnRows(pgxmock.NewRows([]string{"app_id"}).AddRow(appID))
	mock.ExpectQuery("UPDATE deployment\\s+SET status = 'failed'").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(deploymentID))
	mock.ExpectCommit()

	outcome, err := NewBuildJobRepository(mock).Fail(context.Background(), id, time.Now())
	require.NoError(t, err)
	assert.False(t, outcome.Promoted)
	assert.Equal(t, appID, outcome.AppID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

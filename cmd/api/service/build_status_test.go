package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/launchpad/common/logger"
	"github.com/lyzr/launchpad/common/models"
)

type reactorEnv struct {
	*buildEnv
	specs   *mockInvalidator
	reactor *BuildStatusService
}

func newReactorEnv() *reactorEnv {
	env := newBuildEnv()
	specs := &mockInvalidator{}
	return &reactorEnv{
		buildEnv: env,
		specs:    specs,
		reactor:  NewBuildStatusService(mockJobs{env.store}, specs, env.notifier, logger.Discard()),
	}
}

func (e *reactorEnv) queueBuild(t *testing.T) (*models.App, *models.BuildJob) {
	t.Helper()
	app := e.store.addApp("acme")
	job, err := e.svc.CreateAndQueueBuild(context.Background(), CreateBuildRequest{AppID: app.ID})
	require.NoError(t, err)
	return app, job
}

func (e *reactorEnv) attachArtifact(t *testing.T, buildID uuid.UUID) {
	t.Helper()
	d := e.placeholder(buildID)
	require.NotNil(t, d)
	require.NoError(t, mockDeployments{e.store}.AttachArtifact(context.Background(), d.ID, uuid.New()))
}

func (e *reactorEnv) send(t *testing.T, buildID uuid.UUID, status string) {
	t.Helper()
	err := e.reactor.HandleEvent(context.Background(), models.BuildEvent{
		BuildID:     buildID.String(),
		Status:      status,
		ContainerID: "worker-7",
	})
	require.NoError(t, err)
}

func (e *reactorEnv) status(t *testing.T, buildID uuid.UUID) models.BuildJobStatus {
	t.Helper()
	job, err := mockJobs{e.store}.GetByID(context.Background(), buildID)
	require.NoError(t, err)
	return job.Status
}

func TestHandleEvent_SuccessfulBuildPromotesPlaceholder(t *testing.T) {
	env := newReactorEnv()
	app, job := env.queueBuild(t)

	env.send(t, job.ID, "started")
	assert.Equal(t, models.BuildStarted, env.status(t, job.ID))

	env.attachArtifact(t, job.ID)
	env.send(t, job.ID, "done")
	assert.Equal(t, models.BuildDone, env.status(t, job.ID))

	d := env.placeholder(job.ID)
	assert.Equal(t, models.DeploymentReady, d.Status)
	require.NotNil(t, env.store.app(app.ID).ActiveSPADeploymentID)
	assert.Equal(t, d.ID, *env.store.app(app.ID).ActiveSPADeploymentID)
	assert.Nil(t, env.store.app(app.ID).ActiveAPIDeploymentID)

	assert.Equal(t, []uuid.UUID{app.ID}, env.specs.ids)
	assert.Equal(t, []models.BuildJobStatus{models.BuildQueued, models.BuildStarted, models.BuildDone}, env.notifier.statuses())
	assert.Equal(t, app.ID.String(), env.notifier.messages[2].AppID)
}

func TestHandleEvent_StartedIsIdempotent(t *testing.T) {
	env := newReactorEnv()
	_, job := env.queueBuild(t)

	env.send(t, job.ID, "started")
	env.send(t, job.ID, "started")

	assert.Equal(t, models.BuildStarted, env.status(t, job.ID))
	got, err := mockJobs{env.store}.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "worker-7", *got.ContainerID)
}

func TestHandleEvent_FailedBuildFailsPlaceholder(t *testing.T) {
	env := newReactorEnv()
	app, job := env.queueBuild(t)

	env.send(t, job.ID, "started")
	env.send(t, job.ID, "failed")

	assert.Equal(t, models.BuildFailed, env.status(t, job.ID))
	assert.Equal(t, models.DeploymentFailed, env.placeholder(job.ID).Status)
	assert.Nil(t, env.store.app(app.ID).ActiveSPADeploymentID)
	assert.Empty(t, env.specs.ids)
}

func TestHandleEvent_DoneWithoutArtifactFailsPlaceholder(t *testing.T) {
	env := newReactorEnv()
	app, job := env.queueBuild(t)

	env.send(t, job.ID, "done")

	assert.Equal(t, models.BuildDone, env.status(t, job.ID))
	assert.Equal(t, models.DeploymentFailed, env.placeholder(job.ID).Status)
	assert.Nil(t, env.store.app(app.ID).ActiveSPADeploymentID)
}

func TestHandleEvent_TerminalStatesAreFinal(t *testing.T) {
	env := newReactorEnv()
	app, job := env.queueBuild(t)

	env.send(t, job.ID, "started")
	env.attachArtifact(t, job.ID)
	env.send(t, job.ID, "done")

	// Redelivered and reordered events are acknowledged without effect
	env.send(t, job.ID, "failed")
	env.send(t, job.ID, "started")
	env.send(t, job.ID, "done")

	assert.Equal(t, models.BuildDone, env.status(t, job.ID))
	assert.Equal(t, models.DeploymentReady, env.placeholder(job.ID).Status)
	assert.NotNil(t, env.store.app(app.ID).ActiveSPADeploymentID)
	assert.Equal(t, []models.BuildJobStatus{models.BuildQueued, models.BuildStarted, models.BuildDone}, env.notifier.statuses())
}

func TestHandleEvent_UnknownOrMalformedEventsAreIgnored(t *testing.T) {
	env := newReactorEnv()

	events := []models.BuildEvent{
		{BuildID: uuid.New().String(), Status: "started"},
		{BuildID: "not-a-uuid", Status: "done"},
		{BuildID: uuid.New().String(), Status: "exploded"},
		{BuildID: uuid.New().String(), Status: "queued"},
	}
	for _, ev := range events {
		assert.NoError(t, env.reactor.HandleEvent(context.Background(), ev))
	}
	assert.Empty(t, env.notifier.statuses())
}

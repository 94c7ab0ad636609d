package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lyzr/launchpad/common/logger"
	"github.com/lyzr/launchpad/common/models"
	"github.com/lyzr/launchpad/common/notifier"
	"github.com/lyzr/launchpad/common/queue"
	"github.com/lyzr/launchpad/common/repository"
	"github.com/lyzr/launchpad/common/sourcehost"
)

type buildJobStore interface {
	CreateWithPlaceholder(ctx context.Context, job *models.BuildJob, placeholder *models.Deployment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.BuildJob, error)
	ListByApp(ctx context.Context, appID uuid.UUID, limit int) ([]*models.BuildJob, error)
	MarkStarted(ctx context.Context, id uuid.UUID, containerID string, at time.Time) (uuid.UUID, error)
	Complete(ctx context.Context, id uuid.UUID, at time.Time) (*repository.BuildOutcome, error)
	Fail(ctx context.Context, id uuid.UUID, at time.Time) (*repository.BuildOutcome, error)
}

// CreateBuildRequest describes a build to queue
type CreateBuildRequest struct {
	AppID        uuid.UUID
	CloneURL     string
	RepoFullName string

	// Where the worker uploads the bundle. Defaults to the artifact endpoint
	// of this build.
	ArtifactsUploadPath string

	// Nil means "use the app's build and all-target variables"
	EnvVars map[string]string

	DeploymentName *string
}

// BuildService queues builds for the external worker
type BuildService struct {
	apps            appStore
	jobs            buildJobStore
	variables       variableStore
	commits         sourcehost.CommitResolver
	queue           queue.Queue
	notifier        notifier.Notifier
	triggers        *TriggerEvaluator
	artifactBaseURL string
	log             *logger.Logger
}

// NewBuildService creates a new build service
func NewBuildService(
	apps appStore,
	jobs buildJobStore,
	variables variableStore,
	commits sourcehost.CommitResolver,
	q queue.Queue,
	n notifier.Notifier,
	artifactBaseURL string,
	log *logger.Logger,
) *BuildService {
	return &BuildService{
		apps:            apps,
		jobs:            jobs,
		variables:       variables,
		commits:         commits,
		queue:           q,
		notifier:        n,
		triggers:        NewTriggerEvaluator(),
		artifactBaseURL: strings.TrimRight(artifactBaseURL, "/"),
		log:             log,
	}
}

// CreateAndQueueBuild records a queued build with a Building SPA placeholder
// and publishes the build request. Commit metadata is best-effort.
func (s *BuildService) CreateAndQueueBuild(ctx context.Context, req CreateBuildRequest) (*models.BuildJob, error) {
	app, err := s.apps.GetByID(ctx, req.AppID)
	if err != nil {
		return nil, err
	}
	log := s.log.WithAppID(app.ID.String())

	envVars := req.EnvVars
	if envVars == nil {
		envVars, err = s.buildEnv(ctx, app.ID)
		if err != nil {
			return nil, err
		}
	}

	buildID := uuid.New()
	now := time.Now().UTC()
	logKey := fmt.Sprintf("builds/%s/%s.log", app.ID, buildID)

	metadata := map[string]string{
		models.MetaBranch:     app.Build.Branch,
		models.MetaRepository: req.RepoFullName,
	}
	if commit := s.latestCommit(ctx, log, req.CloneURL, app.Build.Branch); commit != nil {
		for k, v := range commit.Metadata() {
			metadata[k] = v
		}
	}

	job := &models.BuildJob{
		ID:        buildID,
		AppID:     app.ID,
		Status:    models.BuildQueued,
		Metadata:  metadata,
		LogKey:    &logKey,
		CreatedAt: now,
	}
	placeholder := &models.Deployment{
		ID:         uuid.New(),
		AppID:      app.ID,
		BuildJobID: &buildID,
		Type:       models.DeploymentTypeSPA,
		Status:     models.DeploymentBuilding,
		Name:       req.DeploymentName,
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    1,
	}

	if err := s.jobs.CreateWithPlaceholder(ctx, job, placeholder); err != nil {
		return nil, err
	}

	target := req.ArtifactsUploadPath
	if target == "" {
		target = fmt.Sprintf("%s/apps/%s/builds/%s/artifact", s.artifactBaseURL, app.ID, buildID)
	}

	msg := models.BuildRequest{
		BuildID:        buildID.String(),
		AppID:          app.ID.String(),
		CloneURL:       req.CloneURL,
		RepoFullName:   req.RepoFullName,
		Branch:         app.Build.Branch,
		Commands:       app.Build.Commands(),
		OutputDir:      app.Build.OutputDir,
		EnvVars:        envVars,
		ArtifactTarget: target,
		CreatedAt:      now.Unix(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal build request: %w", err)
	}

	if err := s.queue.Publish(ctx, models.TopicBuildRequests, buildID.String(), payload); err != nil {
		log.Error("failed to enqueue build", "build_id", buildID, "error", err)
		if _, failErr := s.jobs.Fail(ctx, buildID, time.Now().UTC()); failErr != nil {
			log.Error("failed to mark unqueued build failed", "build_id", buildID, "error", failErr)
		}
		return nil, fmt.Errorf("failed to enqueue build: %w", err)
	}

	log.Info("build queued",
		"build_id", buildID,
		"deployment_id", placeholder.ID,
		"branch", app.Build.Branch,
		"commit", metadata[models.MetaCommitSHA],
	)

	s.notify(ctx, models.BuildStatusMessage{
		BuildID: buildID.String(),
		AppID:   app.ID.String(),
		Status:  models.BuildQueued,
		At:      now.Unix(),
	})

	return job, nil
}

func (s *BuildService) buildEnv(ctx context.Context, appID uuid.UUID) (map[string]string, error) {
	vars, err := s.variables.ListByTargets(ctx, appID, models.TargetBuild, models.TargetAll)
	if err != nil {
		return nil, err
	}
	env := make(map[string]string, len(vars))
	for _, v := range vars {
		env[v.Key] = v.Value
	}
	return env, nil
}

func (s *BuildService) latestCommit(ctx context.Context, log *logger.Logger, cloneURL, branch string) *sourcehost.Commit {
	if s.commits == nil || cloneURL == "" {
		return nil
	}
	commit, err := s.commits.LatestCommit(ctx, cloneURL, branch)
	if err != nil {
		log.Warn("commit metadata unavailable", "clone_url", cloneURL, "branch", branch, "error", err)
		return nil
	}
	return commit
}

func (s *BuildService) notify(ctx context.Context, msg models.BuildStatusMessage) {
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.log.Warn("failed to publish build status", "build_id", msg.BuildID, "status", msg.Status, "error", err)
	}
}

// ShouldTrigger reports whether a push should start a build of the app
func (s *BuildService) ShouldTrigger(app *models.App, push PushEvent) (bool, error) {
	return s.triggers.ShouldTrigger(app.Build, push)
}

// TriggerFromPush queues a build when the push matches the app's trigger.
// It returns nil without error when the push is ignored.
func (s *BuildService) TriggerFromPush(ctx context.Context, appID uuid.UUID, push PushEvent) (*models.BuildJob, error) {
	app, err := s.apps.GetByID(ctx, appID)
	if err != nil {
		return nil, err
	}

	ok, err := s.ShouldTrigger(app, push)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.log.Debug("push ignored", "app_id", appID, "branch", push.Branch, "event", push.Event)
		return nil, nil
	}

	return s.CreateAndQueueBuild(ctx, CreateBuildRequest{
		AppID:        appID,
		CloneURL:     push.CloneURL,
		RepoFullName: push.Repository,
	})
}

// GetBuild returns a build owned by appID
func (s *BuildService) GetBuild(ctx context.Context, appID, buildID uuid.UUID) (*models.BuildJob, error) {
	job, err := s.jobs.GetByID(ctx, buildID)
	if err != nil {
		return nil, err
	}
	if job.AppID != appID {
		return nil, fmt.Errorf("build %s: %w", buildID, models.ErrNotFound)
	}
	return job, nil
}

// ListBuilds lists an app's builds, newest first
func (s *BuildService) ListBuilds(ctx context.Context, appID uuid.UUID, limit int) ([]*models.BuildJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.jobs.ListByApp(ctx, appID, limit)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lyzr/launchpad/common/logger"
	"github.com/lyzr/launchpad/common/models"
	"github.com/lyzr/launchpad/common/notifier"
	"github.com/lyzr/launchpad/common/repository"
)

type specInvalidator interface {
	InvalidateByID(ctx context.Context, appID uuid.UUID) error
}

// BuildStatusService applies build lifecycle events from the worker.
// Delivery is at-least-once, so every transition is idempotent per job and
// guarded against moving backwards.
type BuildStatusService struct {
	jobs     buildJobStore
	specs    specInvalidator
	notifier notifier.Notifier
	log      *logger.Logger
}

// NewBuildStatusService creates a new build status service
func NewBuildStatusService(jobs buildJobStore, specs specInvalidator, n notifier.Notifier, log *logger.Logger) *BuildStatusService {
	return &BuildStatusService{
		jobs:     jobs,
		specs:    specs,
		notifier: n,
		log:      log,
	}
}

// HandleEvent applies one event. Unknown builds and rejected transitions
// are logged and swallowed; only infrastructure failures are returned.
func (s *BuildStatusService) HandleEvent(ctx context.Context, event models.BuildEvent) error {
	log := s.log.WithBuildID(event.BuildID)

	buildID, err := uuid.Parse(event.BuildID)
	if err != nil {
		log.Warn("ignoring event with invalid build id", "status", event.Status)
		return nil
	}

	status, ok := models.ParseBuildJobStatus(event.Status)
	if !ok || status == models.BuildQueued {
		log.Warn("ignoring event with unsupported status", "status", event.Status)
		return nil
	}

	at := time.Now().UTC()
	if event.Timestamp > 0 {
		at = time.Unix(event.Timestamp, 0).UTC()
	}

	var outcome *repository.BuildOutcome
	switch status {
	case models.BuildStarted:
		var appID uuid.UUID
		appID, err = s.jobs.MarkStarted(ctx, buildID, event.ContainerID, at)
		outcome = &repository.BuildOutcome{AppID: appID}
	case models.BuildDone:
		outcome, err = s.jobs.Complete(ctx, buildID, at)
	case models.BuildFailed:
		outcome, err = s.jobs.Fail(ctx, buildID, at)
	}

	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			log.Warn("event for unknown build", "status", status)
			return nil
		case errors.Is(err, models.ErrInvalidTransition):
			log.Warn("rejected build transition", "status", status, "error", err)
			return nil
		}
		return fmt.Errorf("apply %s to build %s: %w", status, buildID, err)
	}

	log.Info("build status applied",
		"app_id", outcome.AppID,
		"status", status,
		"container_id", event.ContainerID,
		"deployment_id", outcome.DeploymentID,
		"promoted", outcome.Promoted,
	)

	if outcome.Promoted {
		if err := s.specs.InvalidateByID(ctx, outcome.AppID); err != nil {
			log.Warn("failed to invalidate specification", "app_id", outcome.AppID, "error", err)
		}
	}

	msg := models.BuildStatusMessage{
		BuildID: buildID.String(),
		AppID:   outcome.AppID.String(),
		Status:  status,
		At:      at.Unix(),
	}
	if err := s.notifier.Notify(ctx, msg); err != nil {
		log.Warn("failed to publish build status", "status", status, "error", err)
	}
	return nil
}

package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lyzr/launchpad/cmd/api/container"
	"github.com/lyzr/launchpad/cmd/api/middleware"
	"github.com/lyzr/launchpad/cmd/api/service"
	"github.com/lyzr/launchpad/common/bootstrap"
	"github.com/lyzr/launchpad/common/models"
)

type builder interface {
	CreateAndQueueBuild(ctx context.Context, req service.CreateBuildRequest) (*models.BuildJob, error)
	ListBuilds(ctx context.Context, appID uuid.UUID, limit int) ([]*models.BuildJob, error)
	GetBuild(ctx context.Context, appID, buildID uuid.UUID) (*models.BuildJob, error)
	TriggerFromPush(ctx context.Context, appID uuid.UUID, push service.PushEvent) (*models.BuildJob, error)
}

// BuildHandler handles SPA build requests and source host pushes
type BuildHandler struct {
	components *bootstrap.Components
	builds     builder
}

// NewBuildHandler creates a new build handler
func NewBuildHandler(c *container.Container) *BuildHandler {
	return &BuildHandler{
		components: c.Components,
		builds:     c.BuildService,
	}
}

// CreateBuild queues a build of the app's SPA
// POST /api/v1/apps/:app_id/builds
func (h *BuildHandler) CreateBuild(c echo.Context) error {
	app := middleware.GetApp(c)

	var req struct {
		CloneURL            string            `json:"clone_url"`
		RepoFullName        string            `json:"repo_full_name"`
		ArtifactsUploadPath string            `json:"artifacts_upload_path"`
		EnvVars             map[string]string `json:"env_vars"`
		DeploymentName      *string           `json:"deployment_name"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}

	if req.CloneURL == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "clone_url is required",
		})
	}

	job, err := h.builds.CreateAndQueueBuild(c.Request().Context(), service.CreateBuildRequest{
		AppID:               app.ID,
		CloneURL:            req.CloneURL,
		RepoFullName:        req.RepoFullName,
		ArtifactsUploadPath: req.ArtifactsUploadPath,
		EnvVars:             req.EnvVars,
		DeploymentName:      req.DeploymentName,
	})
	if err != nil {
		return respondError(c, h.components.Logger, err, "failed to queue build")
	}

	return c.JSON(http.StatusAccepted, job)
}

// ListBuilds lists the app's builds, newest first
// GET /api/v1/apps/:app_id/builds?limit=20
func (h *BuildHandler) ListBuilds(c echo.Context) error {
	app := middleware.GetApp(c)

	jobs, err := h.builds.ListBuilds(c.Request().Context(), app.ID, limitParam(c))
	if err != nil {
		return respondError(c, h.components.Logger, err, "failed to list builds")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"builds": jobs,
		"count":  len(jobs),
	})
}

// GetBuild retrieves one build
// GET /api/v1/apps/:app_id/builds/:build_id
func (h *BuildHandler) GetBuild(c echo.Context) error {
	app := middleware.GetApp(c)
	buildID, ok, err := uuidParam(c, "build_id")
	if !ok {
		return err
	}

	job, err := h.builds.GetBuild(c.Request().Context(), app.ID, buildID)
	if err != nil {
		return respondError(c, h.components.Logger, err, "failed to get build")
	}
	return c.JSON(http.StatusOK, job)
}

// Push evaluates the app's build trigger against a push and queues a build
// when it matches
// POST /api/v1/hooks/apps/:app_id/push
func (h *BuildHandler) Push(c echo.Context) error {
	appID, ok, err := uuidParam(c, "app_id")
	if !ok {
		return err
	}

	var push service.PushEvent
	if err := c.Bind(&push); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid push payload",
		})
	}
	if push.Event == "" {
		push.Event = "push"
	}

	job, err := h.builds.TriggerFromPush(c.Request().Context(), appID, push)
	if err != nil {
		return respondError(c, h.components.Logger, err, "failed to handle push")
	}
	if job == nil {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"triggered": false,
		})
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"triggered": true,
		"build":     job,
	})
}

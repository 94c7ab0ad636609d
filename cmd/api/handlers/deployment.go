package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lyzr/launchpad/cmd/api/container"
	"github.com/lyzr/launchpad/cmd/api/middleware"
	"github.com/lyzr/launchpad/cmd/api/service"
	"github.com/lyzr/launchpad/common/bootstrap"
	"github.com/lyzr/launchpad/common/models"
)

type snapshotter interface {
	CreateDeploymentSnapshot(ctx context.Context, appID uuid.UUID, name, description *string) (uuid.UUID, error)
	ListDeployments(ctx context.Context, appID uuid.UUID, limit int) ([]*models.Deployment, error)
	GetDeployment(ctx context.Context, appID, deploymentID uuid.UUID) (*models.Deployment, error)
	ActivateDeployment(ctx context.Context, appID, deploymentID uuid.UUID) (*models.Deployment, error)
	ListFiles(ctx context.Context, appID, deploymentID uuid.UUID) ([]*models.DeploymentFile, error)
	OpenFile(ctx context.Context, appID, deploymentID uuid.UUID, path string) (*service.FileContent, error)
}

type differ interface {
	Diff(ctx context.Context, appID, fromID, toID uuid.UUID) (*service.DeploymentDiff, error)
}

// DeploymentHandler handles API snapshots and deployment history
type DeploymentHandler struct {
	components *bootstrap.Components
	snapshots  snapshotter
	diffs      differ
}

// NewDeploymentHandler creates a new deployment handler
func NewDeploymentHandler(c *container.Container) *DeploymentHandler {
	return &DeploymentHandler{
		components: c.Components,
		snapshots:  c.SnapshotService,
		diffs:      c.DiffService,
	}
}

// CreateSnapshot freezes the app's publishable routes into a new deployment
// POST /api/v1/apps/:app_id/deployments
func (h *DeploymentHandler) CreateSnapshot(c echo.Context) error {
	app := middleware.GetApp(c)

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}

	deploymentID, err := h.snapshots.CreateDeploymentSnapshot(c.Request().Context(), app.ID, req.Name, req.Description)
	if err != nil {
		return respondError(c, h.components.Logger, err, "failed to create deployment snapshot")
	}

	h.components.Logger.Info("deployment snapshot created",
		"app_id", app.ID,
		"deployment_id", deploymentID)

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"deployment_id": deploymentID,
	})
}

// ListDeployments lists the app's deployments, newest first
// GET /api/v1/apps/:app_id/deployments?limit=20
func (h *DeploymentHandler) ListDeployments(c echo.Context) error {
	app := middleware.GetApp(c)

	deployments, err := h.snapshots.ListDeployments(c.Request().Context(), app.ID, limitParam(c))
	if err != nil {
		return respondError(c, h.components.Logger, err, "failed to list deployments")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"deployments": deployments,
		"count":       len(deployments),
	})
}

// GetDeployment retrieves one deployment
// GET /api/v1/apps/:app_id/deployments/:deployment_id
func (h *DeploymentHandler) GetDeployment(c echo.Context) error {
	app := middleware.GetApp(c)
	deploymentID, ok, err := uuidParam(c, "deployment_id")
	if !ok {
		return err
	}

	d, err := h.snapshots.GetDeployment(c.Request().Context(), app.ID, deploymentID)
	if err != nil {
		return respondError(c, h.components.Logger, err, "failed to get deployment")
	}
	return c.JSON(http.StatusOK, d)
}

// ActivateDeployment points the app's active API deployment at a ready
// deployment. Activating an older deployment is a rollback.
// POST /api/v1/apps/:app_id/deployments/:deployment_id/activate
func (h *DeploymentHandler) ActivateDeployment(c echo.Context) error {
	app := middleware.GetApp(c)
	deploymentID, ok, err := uuidParam(c, "deployment_id")
	if !ok {
		return err
	}

	d, err := h.snapshots.ActivateDeployment(c.Request().Context(), app.ID, deploymentID)
	if err != nil {
		return respondError(c, h.components.Logger, err, "failed to activate deployment")
	}

	h.components.Logger.Info("deployment activated",
		"app_id", app.ID,
		"deployment_id", deploymentID,
		"owner", middleware.GetOwner(c))

	return c.JSON(http.StatusOK, d)
}

// ListFiles returns the deployment manifest
// GET /api/v1/apps/:app_id/deployments/:deployment_id/files
func (h *DeploymentHandler) ListFiles(c echo.Context) error {
	app := middleware.GetApp(c)
	deploymentID, ok, err := uuidParam(c, "deployment_id")
	if !ok {
		return err
	}

	files, err := h.snapshots.ListFiles(c.Request().Context(), app.ID, deploymentID)
	if err != nil {
		return respondError(c, h.components.Logger, err, "failed to list deployment files")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"deployment_id": deploymentID,
		"files":         files,
	})
}

// GetFile streams the content of one manifest path
// GET /api/v1/apps/:app_id/deployments/:deployment_id/files/*
func (h *DeploymentHandler) GetFile(c echo.Context) error {
	app := middleware.GetApp(c)
	deploymentID, ok, err := uuidParam(c, "deployment_id")
	if !ok {
		return err
	}

	path := c.Param("*")
	if path == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "file path is required",
		})
	}

	file, err := h.snapshots.OpenFile(c.Request().Context(), app.ID, deploymentID, path)
	if err != nil {
		return respondError(c, h.components.Logger, err, "failed to open deployment file")
	}
	defer file.Body.Close()

	header := c.Response().Header()
	header.Set("ETag", strconv.Quote(file.File.ETag))
	header.Set(echo.HeaderContentLength, strconv.FormatInt(file.Blob.SizeBytes, 10))
	return c.Stream(http.StatusOK, file.Blob.ContentType, file.Body)
}

// Diff compares two deployments of the app
// GET /api/v1/apps/:app_id/deployments/:deployment_id/diff?from=<deployment_id>
func (h *DeploymentHandler) Diff(c echo.Context) error {
	app := middleware.GetApp(c)
	toID, ok, err := uuidParam(c, "deployment_id")
	if !ok {
		return err
	}

	fromID, err := uuid.Parse(c.QueryParam("from"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "from query parameter must be a deployment id",
		})
	}

	diff, err := h.diffs.Diff(c.Request().Context(), app.ID, fromID, toID)
	if err != nil {
		return respondError(c, h.components.Logger, err, "failed to diff deployments")
	}
	return c.JSON(http.StatusOK, diff)
}

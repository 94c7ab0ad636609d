package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/lyzr/launchpad/cmd/api/container"
	"github.com/lyzr/launchpad/cmd/api/handlers"
	"github.com/lyzr/launchpad/common/middleware"
)

// RegisterDeploymentRoutes registers API snapshot and deployment history routes
func RegisterDeploymentRoutes(apps *echo.Group, c *container.Container) {
	h := handlers.NewDeploymentHandler(c)

	limit := middleware.RateLimit(c.SnapshotLimiter, "snapshots", middleware.ParamKey("app_id"), c.Components.Logger)

	d := apps.Group("/deployments")
	{
		d.POST("", h.CreateSnapshot, limit)                      // POST /api/v1/apps/{app_id}/deployments
		d.GET("", h.ListDeployments)                             // GET /api/v1/apps/{app_id}/deployments?limit=20
		d.GET("/:deployment_id", h.GetDeployment)                // GET /api/v1/apps/{app_id}/deployments/{id}
		d.POST("/:deployment_id/activate", h.ActivateDeployment) // POST /api/v1/apps/{app_id}/deployments/{id}/activate
		d.GET("/:deployment_id/files", h.ListFiles)              // GET /api/v1/apps/{app_id}/deployments/{id}/files
		d.GET("/:deployment_id/files/*", h.GetFile)              // GET /api/v1/apps/{app_id}/deployments/{id}/files/openapi.json
		d.GET("/:deployment_id/diff", h.Diff)                    // GET /api/v1/apps/{app_id}/deployments/{id}/diff?from={id}
	}
}

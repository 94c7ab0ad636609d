package routes

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/lyzr/launchpad/cmd/api/container"
	"github.com/lyzr/launchpad/cmd/api/handlers"
	"github.com/lyzr/launchpad/common/middleware"
)

// RegisterWorkerRoutes registers routes called by the build worker and the
// source host rather than by tenants
func RegisterWorkerRoutes(e *echo.Echo, c *container.Container) {
	artifacts := handlers.NewArtifactHandler(c)
	builds := handlers.NewBuildHandler(c)

	// POST /api/v1/apps/{app_id}/builds/{build_id}/artifact
	e.POST("/api/v1/apps/:app_id/builds/:build_id/artifact", artifacts.UploadArtifact, echomw.BodyLimit("512M"))

	// POST /api/v1/hooks/apps/{app_id}/push
	e.POST("/api/v1/hooks/apps/:app_id/push", builds.Push,
		middleware.RateLimit(c.BuildLimiter, "builds", middleware.ParamKey("app_id"), c.Components.Logger))
}

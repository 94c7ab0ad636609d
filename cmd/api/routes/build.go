package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/lyzr/launchpad/cmd/api/container"
	"github.com/lyzr/launchpad/cmd/api/handlers"
	"github.com/lyzr/launchpad/common/middleware"
)

// RegisterBuildRoutes registers SPA build routes and the status stream
func RegisterBuildRoutes(apps *echo.Group, c *container.Container) {
	h := handlers.NewBuildHandler(c)
	stream := handlers.NewStreamHandler(c)

	limit := middleware.RateLimit(c.BuildLimiter, "builds", middleware.ParamKey("app_id"), c.Components.Logger)

	b := apps.Group("/builds")
	{
		b.POST("", h.CreateBuild, limit)     // POST /api/v1/apps/{app_id}/builds
		b.GET("", h.ListBuilds)              // GET /api/v1/apps/{app_id}/builds?limit=20
		b.GET("/stream", stream.BuildStatus) // GET /api/v1/apps/{app_id}/builds/stream (websocket)
		b.GET("/:build_id", h.GetBuild)      // GET /api/v1/apps/{app_id}/builds/{build_id}
	}
}

package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/lyzr/launchpad/cmd/api/container"
	"github.com/lyzr/launchpad/cmd/api/middleware"
)

// RegisterRoutes registers every API route. Tenant routes live under
// /api/v1/apps/:app_id and require the caller to own the app.
func RegisterRoutes(e *echo.Echo, c *container.Container) {
	apps := e.Group("/api/v1/apps/:app_id")
	apps.Use(middleware.ExtractOwner())             // Extract X-User-ID into context
	apps.Use(middleware.RequireAppOwner(c.AppRepo)) // 404 unless the caller owns :app_id

	RegisterDeploymentRoutes(apps, c)
	RegisterBuildRoutes(apps, c)
	RegisterSpecificationRoutes(apps, c)

	RegisterWorkerRoutes(e, c)
	RegisterGatewayRoutes(e, c)
}

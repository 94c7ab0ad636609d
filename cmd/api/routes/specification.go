package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/lyzr/launchpad/cmd/api/container"
	"github.com/lyzr/launchpad/cmd/api/handlers"
)

// RegisterSpecificationRoutes registers the app's cached specification routes
func RegisterSpecificationRoutes(apps *echo.Group, c *container.Container) {
	h := handlers.NewSpecificationHandler(c)

	apps.GET("/specification", h.Get)           // GET /api/v1/apps/{app_id}/specification
	apps.POST("/specification", h.Publish)      // POST /api/v1/apps/{app_id}/specification
	apps.DELETE("/specification", h.Invalidate) // DELETE /api/v1/apps/{app_id}/specification
}

// RegisterGatewayRoutes registers the read path used by the gateway
func RegisterGatewayRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewSpecificationHandler(c)

	e.GET("/api/v1/gateway/specifications/:slug", h.GetBySlug)
}

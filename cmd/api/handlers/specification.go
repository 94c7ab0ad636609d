package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lyzr/launchpad/cmd/api/container"
	"github.com/lyzr/launchpad/cmd/api/middleware"
	"github.com/lyzr/launchpad/cmd/api/service"
	"github.com/lyzr/launchpad/common/bootstrap"
)

type specificationStore interface {
	Publish(ctx context.Context, slug string) error
	Invalidate(ctx context.Context, slug string) error
	Get(ctx context.Context, slug string) ([]byte, bool, error)
}

// SpecificationHandler manages the gateway's cached app specifications
type SpecificationHandler struct {
	components *bootstrap.Components
	specs      specificationStore
}

// NewSpecificationHandler creates a new specification handler
func NewSpecificationHandler(c *container.Container) *SpecificationHandler {
	return &SpecificationHandler{
		components: c.Components,
		specs:      c.SpecificationService,
	}
}

// Publish resolves the app and overwrites its cached specification
// POST /api/v1/apps/:app_id/specification
func (h *SpecificationHandler) Publish(c echo.Context) error {
	app := middleware.GetApp(c)

	if err := h.specs.Publish(c.Request().Context(), app.Slug); err != nil {
		return respondError(c, h.components.Logger, err, "failed to publish specification")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"slug":      app.Slug,
		"cache_key": service.CacheKey(app.Slug),
		"published": true,
	})
}

// Invalidate drops the app's cached specification
// DELETE /api/v1/apps/:app_id/specification
func (h *SpecificationHandler) Invalidate(c echo.Context) error {
	app := middleware.GetApp(c)

	if err := h.specs.Invalidate(c.Request().Context(), app.Slug); err != nil {
		return respondError(c, h.components.Logger, err, "failed to invalidate specification")
	}
	return c.NoContent(http.StatusNoContent)
}

// Get returns the app's cached specification
// GET /api/v1/apps/:app_id/specification
func (h *SpecificationHandler) Get(c echo.Context) error {
	return h.serve(c, middleware.GetApp(c).Slug)
}

// GetBySlug is the gateway lookup of a cached specification. It never reads
// the database.
// GET /api/v1/gateway/specifications/:slug
func (h *SpecificationHandler) GetBySlug(c echo.Context) error {
	return h.serve(c, c.Param("slug"))
}

func (h *SpecificationHandler) serve(c echo.Context, slug string) error {
	data, ok, err := h.specs.Get(c.Request().Context(), slug)
	if err != nil {
		return respondError(c, h.components.Logger, err, "failed to read specification")
	}
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "specification not published",
			"slug":  slug,
		})
	}
	return c.JSONBlob(http.StatusOK, data)
}

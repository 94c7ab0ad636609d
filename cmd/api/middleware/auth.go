package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/lyzr/launchpad/common/models"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// OwnerKey is the context key for the caller's owner id
	OwnerKey ContextKey = "owner"

	// AppKey is the context key for the app loaded by RequireAppOwner
	AppKey ContextKey = "app"
)

// AppLookup loads an app by id
type AppLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.App, error)
}

// ExtractOwner stores the X-User-ID header in the request context. The
// header is trusted; identity is established upstream of the API.
// Websocket clients cannot set headers and pass ?user_id= instead.
func ExtractOwner() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			owner := c.Request().Header.Get("X-User-ID")
			if owner == "" && websocket.IsWebSocketUpgrade(c.Request()) {
				owner = c.QueryParam("user_id")
			}
			if owner != "" {
				c.Set(string(OwnerKey), owner)
			}
			return next(c)
		}
	}
}

// RequireAppOwner loads :app_id and rejects callers that do not own it.
// Apps owned by someone else are reported as missing.
func RequireAppOwner(apps AppLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			owner := GetOwner(c)
			if owner == "" {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"error": "X-User-ID header is required",
				})
			}

			appID, err := uuid.Parse(c.Param("app_id"))
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]interface{}{
					"error": "invalid app_id format",
				})
			}

			app, err := apps.GetByID(c.Request().Context(), appID)
			if errors.Is(err, models.ErrNotFound) || (err == nil && app.OwnerID != owner) {
				return c.JSON(http.StatusNotFound, map[string]interface{}{
					"error": "app not found",
				})
			}
			if err != nil {
				return c.JSON(http.StatusInternalServerError, map[string]interface{}{
					"error": "failed to load app",
				})
			}

			c.Set(string(AppKey), app)
			return next(c)
		}
	}
}

// GetOwner retrieves the owner id from the request context
// Returns empty string if not set
func GetOwner(c echo.Context) string {
	owner, _ := c.Get(string(OwnerKey)).(string)
	return owner
}

// GetApp returns the app loaded by RequireAppOwner, or nil
func GetApp(c echo.Context) *models.App {
	app, _ := c.Get(string(AppKey)).(*models.App)
	return app
}

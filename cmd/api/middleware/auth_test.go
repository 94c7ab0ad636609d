package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/lyzr/launchpad/common/models"
)

type mockApps map[uuid.UUID]*models.App

func (m mockApps) GetByID(ctx context.Context, id uuid.UUID) (*models.App, error) {
	app, ok := m[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return app, nil
}

func newOwnedEcho(apps AppLookup) *echo.Echo {
	e := echo.New()
	g := e.Group("/apps/:app_id", ExtractOwner(), RequireAppOwner(apps))
	g.GET("", func(c echo.Context) error {
		return c.String(http.StatusOK, GetApp(c).Slug)
	})
	return e
}

func get(e *echo.Echo, path, owner string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if owner != "" {
		req.Header.Set("X-User-ID", owner)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRequireAppOwner(t *testing.T) {
	app := &models.App{ID: uuid.New(), Slug: "acme", OwnerID: "alice"}
	e := newOwnedEcho(mockApps{app.ID: app})
	path := "/apps/" + app.ID.String()

	rec := get(e, path, "alice")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acme", rec.Body.String())

	// Other tenants cannot tell the app exists
	assert.Equal(t, http.StatusNotFound, get(e, path, "mallory").Code)
	assert.Equal(t, http.StatusNotFound, get(e, "/apps/"+uuid.NewString(), "alice").Code)

	assert.Equal(t, http.StatusUnauthorized, get(e, path, "").Code)
	assert.Equal(t, http.StatusBadRequest, get(e, "/apps/not-a-uuid", "alice").Code)
}

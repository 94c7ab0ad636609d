package handlers

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/launchpad/cmd/api/middleware"
	"github.com/lyzr/launchpad/common/bootstrap"
	"github.com/lyzr/launchpad/common/logger"
	"github.com/lyzr/launchpad/common/models"
)

func testComponents() *bootstrap.Components {
	return &bootstrap.Components{Logger: logger.Discard()}
}

// withApp stands in for RequireAppOwner
func withApp(app *models.App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(string(middleware.AppKey), app)
			c.Set(string(middleware.OwnerKey), app.OwnerID)
			return next(c)
		}
	}
}

func doRequest(e *echo.Echo, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func doJSON(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return doRequest(e, method, target, r, echo.MIMEApplicationJSON)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

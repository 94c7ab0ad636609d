package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/launchpad/common/logger"
	"github.com/lyzr/launchpad/common/models"
)

var routeCols = []string{
	"id", "app_id", "name", "method", "path", "description", "enabled", "status",
	"response_type", "response", "request_schemas", "require_authorization",
}

func TestRouteRepository_ListPublishable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	appID := uuid.New()
	mock.ExpectQuery("FROM route\\s+WHERE app_id = \\$1 AND enabled AND status = 'active'\\s+ORDER BY id").
		WithArgs(appID).
		WillReturnRows(pgxmock.NewRows(routeCols).
			AddRow(int64(1), appID, "ping", "GET", "/ping", "", true, "active",
				"static", []byte(`{"statusCode":200,"body":"pong"}`), []byte(`{}`), false).
			AddRow(int64(2), appID, "echo", "POST", "/echo", "echoes", true, "active",
				"function", []byte(`{"runtime":"node20","source":"x"}`), []byte(`{"body":{"type":"object"}}`), true))

	routes, err := NewRouteRepository(mock, logger.Discard()).ListPublishable(context.Background(), appID)
	require.NoError(t, err)
	require.Len(t, routes, 2)

	static, ok := routes[0].Response.(models.StaticResponse)
	require.True(t, ok)
	assert.Equal(t, "pong", static.Body)

	fn, ok := routes[1].Response.(models.FunctionResponse)
	require.True(t, ok)
	assert.Equal(t, "node20", fn.Runtime)
	assert.JSONEq(t, `{"type":"object"}`, string(routes[1].Schemas.Body))
	assert.True(t, routes[1].RequireAuthorization)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRouteRepository_ListPublishableToleratesMalformedSchemas(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	appID := uuid.New()
	mock.ExpectQuery("FROM route").
		WithArgs(appID).
		WillReturnRows(pgxmock.NewRows(routeCols).
			AddRow(int64(1), appID, "ping", "GET", "/ping", "", true, "active",
				"static", []byte(`{"statusCode":200,"body":"pong"}`), []byte(`[{"type":"object"}]`), false).
			AddRow(int64(2), appID, "pong", "GET", "/pong", "", true, "active",
				"static", []byte(`{"statusCode":200,"body":"ping"}`), []byte(`"not a schema"`), false).
			AddRow(int64(3), appID, "echo", "POST", "/echo", "", true, "active",
				"function", []byte(`{"runtime":"node20","source":"x"}`), []byte(`{"query":{"type":"object"}}`), false))

	routes, err := NewRouteRepository(mock, logger.Discard()).ListPublishable(context.Background(), appID)
	require.NoError(t, err)
	require.Len(t, routes, 3)

	assert.Equal(t, models.RequestSchemas{}, routes[0].Schemas)
	assert.Equal(t, models.RequestSchemas{}, routes[1].Schemas)
	assert.JSONEq(t, `{"type":"object"}`, string(routes[2].Schemas.Query))
	assert.NoError(t, mock.ExpectationsWereMet())
}

var appCols = []string{
	"id", "slug", "name", "owner_id", "state", "cors", "routing", "build", "settings",
	"active_spa_deployment_id", "active_api_deployment_id", "created_at", "updated_at",
}

func TestAppRepository_GetBySlug(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	now := time.Now().UTC()
	mock.ExpectQuery("FROM app WHERE slug = \\$1").
		WithArgs("acme").
		WillReturnRows(pgxmock.NewRows(appCols).AddRow(
			id, "acme", "Acme", "user-1", "active",
			[]byte(`{"enabled":true,"allowedOrigins":["*"]}`),
			[]byte(`{"apiPrefix":"/api"}`),
			[]byte(`{"branch":"main","buildCommand":"npm run build"}`),
			[]byte(`{"theme":"dark"}`),
			nil, nil, now, now,
		))

	app, err := NewAppRepository(mock).GetBySlug(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, id, app.ID)
	assert.Equal(t, models.AppActive, app.State)
	assert.True(t, app.Cors.Enabled)
	assert.Equal(t, "/api", app.Routing.APIPrefix)
	assert.Equal(t, "main", app.Build.Branch)
	assert.Equal(t, "dark", app.Settings["theme"])
	assert.Nil(t, app.ActiveAPIDeploymentID)
}

func TestAppRepository_SetActiveDeploymentRequiresReady(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	appID, deploymentID := uuid.New(), uuid.New()
	mock.ExpectExec("UPDATE app SET active_spa_deployment_id = \\$2").
		WithArgs(appID, deploymentID, "spa").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = NewAppRepository(mock).SetActiveDeployment(context.Background(), appID, deploymentID, models.DeploymentTypeSPA)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lyzr/launchpad/common/db"
	"github.com/lyzr/launchpad/common/logger"
	"github.com/lyzr/launchpad/common/models"
)

// RouteRepository reads the live route configuration of an app
type RouteRepository struct {
	db  db.Querier
	log *logger.Logger
}

// NewRouteRepository creates a new route repository
func NewRouteRepository(q db.Querier, log *logger.Logger) *RouteRepository {
	return &RouteRepository{db: q, log: log}
}

func (r *RouteRepository) scanRoute(row pgx.Row) (*models.Route, error) {
	route := &models.Route{}
	var status, responseType string
	var response, schemas []byte

	err := row.Scan(
		&route.ID,
		&route.AppID,
		&route.Name,
		&route.Method,
		&route.Path,
		&route.Description,
		&route.Enabled,
		&status,
		&responseType,
		&response,
		&schemas,
		&route.RequireAuthorization,
	)
	if err != nil {
		return nil, err
	}
	route.Status = models.RouteStatus(status)

	route.Response, err = models.DecodeRouteResponse(models.ResponseType(responseType), response)
	if err != nil {
		return nil, fmt.Errorf("route %d: %w", route.ID, err)
	}
	if len(schemas) > 0 {
		if err := json.Unmarshal(schemas, &route.Schemas); err != nil {
			// Schemas are advisory; the route is published without them
			r.log.Warn("ignoring malformed request schemas", "route_id", route.ID, "app_id", route.AppID, "error", err)
			route.Schemas = models.RequestSchemas{}
		}
	}
	return route, nil
}

// ListPublishable returns the enabled, active routes of an app ordered by id
func (r *RouteRepository) ListPublishable(ctx context.Context, appID uuid.UUID) ([]*models.Route, error) {
	query := `
		SELECT id, app_id, name, method, path, description, enabled, status,
		       response_type, response, request_schemas, require_authorization
		FROM route
		WHERE app_id = $1 AND enabled AND status = 'active'
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	defer rows.Close()

	var routes []*models.Route
	for rows.Next() {
		route, err := r.scanRoute(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan route: %w", err)
		}
		routes = append(routes, route)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate routes: %w", err)
	}
	return routes, nil
}

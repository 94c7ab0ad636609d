package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lyzr/launchpad/common/db"
	"github.com/lyzr/launchpad/common/models"
)

// AppRepository reads apps and moves their active deployment pointers
type AppRepository struct {
	db db.Querier
}

// NewAppRepository creates a new app repository
func NewAppRepository(q db.Querier) *AppRepository {
	return &AppRepository{db: q}
}

const appColumns = `
	id, slug, name, owner_id, state, cors, routing, build, settings,
	active_spa_deployment_id, active_api_deployment_id, created_at, updated_at`

func scanApp(row pgx.Row) (*models.App, error) {
	app := &models.App{}
	var state string
	var cors, routing, build, settings []byte

	err := row.Scan(
		&app.ID,
		&app.Slug,
		&app.Name,
		&app.OwnerID,
		&state,
		&cors,
		&routing,
		&build,
		&settings,
		&app.ActiveSPADeploymentID,
		&app.ActiveAPIDeploymentID,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	app.State = models.AppState(state)

	if err := unmarshalJSONB(cors, &app.Cors); err != nil {
		return nil, fmt.Errorf("decode cors: %w", err)
	}
	if err := unmarshalJSONB(routing, &app.Routing); err != nil {
		return nil, fmt.Errorf("decode routing: %w", err)
	}
	if err := unmarshalJSONB(build, &app.Build); err != nil {
		return nil, fmt.Errorf("decode build config: %w", err)
	}
	if err := unmarshalJSONB(settings, &app.Settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return app, nil
}

func unmarshalJSONB(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// GetByID retrieves an app by its ID
func (r *AppRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.App, error) {
	query := `SELECT ` + appColumns + ` FROM app WHERE id = $1`

	app, err := scanApp(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("app %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get app: %w", err)
	}
	return app, nil
}

// GetBySlug retrieves an app by its public slug
func (r *AppRepository) GetBySlug(ctx context.Context, slug string) (*models.App, error) {
	query := `SELECT ` + appColumns + ` FROM app WHERE slug = $1`

	app, err := scanApp(r.db.QueryRow(ctx, query, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("app %q: %w", slug, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get app by slug: %w", err)
	}
	return app, nil
}

// ListWithoutActiveAPIDeployment returns live apps that were never published
func (r *AppRepository) ListWithoutActiveAPIDeployment(ctx context.Context) ([]*models.App, error) {
	query := `SELECT ` + appColumns + `
		FROM app
		WHERE active_api_deployment_id IS NULL AND state <> 'deleted'
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list apps without api deployment: %w", err)
	}
	defer rows.Close()

	var apps []*models.App
	for rows.Next() {
		app, err := scanApp(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan app: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate apps: %w", err)
	}
	return apps, nil
}

// SetActiveDeployment points the app at a Ready deployment of the given kind.
// Returns models.ErrNotFound when the deployment is not a Ready deployment of
// this app and kind.
func (r *AppRepository) SetActiveDeployment(ctx context.Context, appID, deploymentID uuid.UUID, kind models.DeploymentType) error {
	return setActiveDeployment(ctx, r.db, appID, deploymentID, kind)
}

func activeColumn(kind models.DeploymentType) (string, error) {
	switch kind {
	case models.DeploymentTypeSPA:
		return "active_spa_deployment_id", nil
	case models.DeploymentTypeAPI:
		return "active_api_deployment_id", nil
	}
	return "", fmt.Errorf("unknown deployment type %q", kind)
}

func setActiveDeployment(ctx context.Context, q db.Querier, appID, deploymentID uuid.UUID, kind models.DeploymentType) error {
	column, err := activeColumn(kind)
	if err != nil {
		return err
	}

	query := `
		UPDATE app SET ` + column + ` = $2, updated_at = now()
		WHERE id = $1
		  AND EXISTS (
			SELECT 1 FROM deployment
			WHERE id = $2 AND app_id = $1 AND type = $3 AND status = 'ready'
		  )
	`

	tag, err := q.Exec(ctx, query, appID, deploymentID, string(kind))
	if err != nil {
		return fmt.Errorf("failed to activate deployment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ready %s deployment %s for app %s: %w", kind, deploymentID, appID, models.ErrNotFound)
	}
	return nil
}

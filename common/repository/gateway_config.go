package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lyzr/launchpad/common/db"
	"github.com/lyzr/launchpad/common/models"
)

// AuthSchemeRepository reads an app's gateway authentication schemes
type AuthSchemeRepository struct {
	db db.Querier
}

// NewAuthSchemeRepository creates a new auth scheme repository
func NewAuthSchemeRepository(q db.Querier) *AuthSchemeRepository {
	return &AuthSchemeRepository{db: q}
}

// ListEnabled returns the enabled schemes of an app ordered by id
func (r *AuthSchemeRepository) ListEnabled(ctx context.Context, appID uuid.UUID) ([]*models.AuthScheme, error) {
	query := `
		SELECT id, app_id, name, type, enabled, config
		FROM auth_scheme
		WHERE app_id = $1 AND enabled
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to list auth schemes: %w", err)
	}
	defer rows.Close()

	var schemes []*models.AuthScheme
	for rows.Next() {
		s := &models.AuthScheme{}
		var config []byte
		if err := rows.Scan(&s.ID, &s.AppID, &s.Name, &s.Type, &s.Enabled, &config); err != nil {
			return nil, fmt.Errorf("failed to scan auth scheme: %w", err)
		}
		if err := unmarshalJSONB(config, &s.Config); err != nil {
			return nil, fmt.Errorf("auth scheme %d: decode config: %w", s.ID, err)
		}
		schemes = append(schemes, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate auth schemes: %w", err)
	}
	return schemes, nil
}

// VariableRepository reads an app's environment variables
type VariableRepository struct {
	db db.Querier
}

// NewVariableRepository creates a new variable repository
func NewVariableRepository(q db.Querier) *VariableRepository {
	return &VariableRepository{db: q}
}

// ListByTargets returns variables whose target is one of targets, ordered by key
func (r *VariableRepository) ListByTargets(ctx context.Context, appID uuid.UUID, targets ...models.VariableTarget) ([]*models.Variable, error) {
	query := `
		SELECT id, app_id, key, value, target, is_secret
		FROM variable
		WHERE app_id = $1 AND target = ANY($2)
		ORDER BY key
	`

	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = string(t)
	}

	rows, err := r.db.Query(ctx, query, appID, names)
	if err != nil {
		return nil, fmt.Errorf("failed to list variables: %w", err)
	}
	defer rows.Close()

	var vars []*models.Variable
	for rows.Next() {
		v := &models.Variable{}
		var target string
		if err := rows.Scan(&v.ID, &v.AppID, &v.Key, &v.Value, &target, &v.IsSecret); err != nil {
			return nil, fmt.Errorf("failed to scan variable: %w", err)
		}
		v.Target = models.VariableTarget(target)
		vars = append(vars, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate variables: %w", err)
	}
	return vars, nil
}

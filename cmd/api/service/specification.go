package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lyzr/launchpad/common/cache"
	"github.com/lyzr/launchpad/common/logger"
	"github.com/lyzr/launchpad/common/models"
)

// DefaultSpecificationTTL bounds orphaned keys. Freshness comes from explicit
// Publish/Invalidate calls, not from expiry.
const DefaultSpecificationTTL = 30 * 24 * time.Hour

type authSchemeStore interface {
	ListEnabled(ctx context.Context, appID uuid.UUID) ([]*models.AuthScheme, error)
}

type variableStore interface {
	ListByTargets(ctx context.Context, appID uuid.UUID, targets ...models.VariableTarget) ([]*models.Variable, error)
}

// SpecificationStores groups the reads needed to resolve an app
type SpecificationStores struct {
	Apps        appStore
	Routes      routeStore
	AuthSchemes authSchemeStore
	Variables   variableStore
}

// SpecificationService publishes resolved app specifications into the
// gateway cache. It is a push cache: reads never fall through to the database.
type SpecificationService struct {
	stores SpecificationStores
	cache  cache.Cache
	ttl    time.Duration
	log    *logger.Logger
}

// NewSpecificationService creates a new specification service
func NewSpecificationService(stores SpecificationStores, c cache.Cache, ttl time.Duration, log *logger.Logger) *SpecificationService {
	if ttl <= 0 {
		ttl = DefaultSpecificationTTL
	}
	return &SpecificationService{
		stores: stores,
		cache:  c,
		ttl:    ttl,
		log:    log,
	}
}

// CacheKey returns the cache key of an app specification
func CacheKey(slug string) string {
	return "app:" + slug
}

// Resolve loads the flattened specification of an app
func (s *SpecificationService) Resolve(ctx context.Context, slug string) (*models.ResolvedSpecification, error) {
	app, err := s.stores.Apps.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	routes, err := s.stores.Routes.ListPublishable(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	schemes, err := s.stores.AuthSchemes.ListEnabled(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	variables, err := s.stores.Variables.ListByTargets(ctx, app.ID, models.TargetRuntime, models.TargetAll)
	if err != nil {
		return nil, err
	}

	spec := &models.ResolvedSpecification{
		AppID:                 app.ID,
		Slug:                  app.Slug,
		Name:                  app.Name,
		State:                 app.State,
		ActiveSPADeploymentID: app.ActiveSPADeploymentID,
		ActiveAPIDeploymentID: app.ActiveAPIDeploymentID,
		Cors:                  app.Cors,
		Routing:               app.Routing,
		Settings:              app.Settings,
		Routes:                make([]models.ResolvedRoute, 0, len(routes)),
		AuthenticationSchemes: make([]models.ResolvedAuthScheme, 0, len(schemes)),
		Variables:             make([]models.ResolvedVariable, 0, len(variables)),
	}

	for _, r := range routes {
		if !r.IsPublishable() {
			continue
		}
		spec.Routes = append(spec.Routes, resolveRoute(r))
	}
	for _, a := range schemes {
		spec.AuthenticationSchemes = append(spec.AuthenticationSchemes, models.ResolvedAuthScheme{
			ID:     a.ID,
			Name:   a.Name,
			Type:   a.Type,
			Config: a.Config,
		})
	}
	for _, v := range variables {
		spec.Variables = append(spec.Variables, models.ResolvedVariable{
			Key:      v.Key,
			Value:    v.Value,
			IsSecret: v.IsSecret,
		})
	}
	return spec, nil
}

func resolveRoute(r *models.Route) models.ResolvedRoute {
	out := models.ResolvedRoute{
		ID:                   r.ID,
		Name:                 r.Name,
		Method:               r.Method,
		Path:                 r.Path,
		RequireAuthorization: r.RequireAuthorization,
	}
	switch resp := r.Response.(type) {
	case models.StaticResponse:
		out.ResponseType = models.ResponseStatic
		out.Static = &resp
	case models.FunctionResponse:
		out.ResponseType = models.ResponseFunction
		out.Function = &resp
	}
	return out
}

// Publish resolves the app and overwrites its cached specification
func (s *SpecificationService) Publish(ctx context.Context, slug string) error {
	spec, err := s.Resolve(ctx, slug)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", slug, err)
	}

	data, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("failed to marshal specification: %w", err)
	}

	if err := s.cache.Set(ctx, CacheKey(slug), data, s.ttl); err != nil {
		return fmt.Errorf("failed to cache specification: %w", err)
	}

	s.log.Info("specification published",
		"slug", slug,
		"app_id", spec.AppID,
		"routes", len(spec.Routes),
		"size_bytes", len(data),
	)
	return nil
}

// Invalidate drops the cached specification; the next read is a miss
func (s *SpecificationService) Invalidate(ctx context.Context, slug string) error {
	if err := s.cache.Delete(ctx, CacheKey(slug)); err != nil {
		return fmt.Errorf("failed to invalidate specification: %w", err)
	}
	s.log.Debug("specification invalidated", "slug", slug)
	return nil
}

// InvalidateByID drops the cached specification of the app with this id
func (s *SpecificationService) InvalidateByID(ctx context.Context, appID uuid.UUID) error {
	app, err := s.stores.Apps.GetByID(ctx, appID)
	if err != nil {
		return err
	}
	return s.Invalidate(ctx, app.Slug)
}

// Get returns the cached specification document. ok is false on a miss.
func (s *SpecificationService) Get(ctx context.Context, slug string) (data []byte, ok bool, err error) {
	return s.cache.Get(ctx, CacheKey(slug))
}

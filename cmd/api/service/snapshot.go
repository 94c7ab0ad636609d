package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lyzr/launchpad/common/logger"
	"github.com/lyzr/launchpad/common/models"
	"github.com/lyzr/launchpad/common/specgen"
)

type appStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.App, error)
	GetBySlug(ctx context.Context, slug string) (*models.App, error)
	ListWithoutActiveAPIDeployment(ctx context.Context) ([]*models.App, error)
	SetActiveDeployment(ctx context.Context, appID, deploymentID uuid.UUID, kind models.DeploymentType) error
}

type routeStore interface {
	ListPublishable(ctx context.Context, appID uuid.UUID) ([]*models.Route, error)
}

type deploymentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Deployment, error)
	GetByBuildJob(ctx context.Context, buildJobID uuid.UUID) (*models.Deployment, error)
	ListByApp(ctx context.Context, appID uuid.UUID, limit int) ([]*models.Deployment, error)
	AttachArtifact(ctx context.Context, deploymentID, artifactID uuid.UUID) error
}

type deploymentFileStore interface {
	ListByDeployment(ctx context.Context, deploymentID uuid.UUID) ([]*models.DeploymentFile, error)
	GetByPath(ctx context.Context, deploymentID uuid.UUID, path string) (*models.DeploymentFile, error)
}

type snapshotCommitter interface {
	CommitAPISnapshot(ctx context.Context, d *models.Deployment, files []models.DeploymentFile) error
}

type blobCreator interface {
	GetOrCreate(ctx context.Context, content []byte, contentType string) (*models.Blob, error)
	Open(ctx context.Context, id uuid.UUID) (*models.Blob, io.ReadCloser, error)
}

type specPublisher interface {
	Publish(ctx context.Context, slug string) error
}

// SnapshotStores groups the persistence the snapshot service reads and writes
type SnapshotStores struct {
	Apps        appStore
	Routes      routeStore
	Deployments deploymentStore
	Files       deploymentFileStore
	Snapshots   snapshotCommitter
}

// SnapshotService freezes live app configuration into immutable API deployments
type SnapshotService struct {
	stores      SnapshotStores
	blobs       blobCreator
	generator   *specgen.Generator
	publisher   specPublisher
	concurrency int
	log         *logger.Logger
}

// NewSnapshotService creates a new snapshot service
func NewSnapshotService(stores SnapshotStores, blobs blobCreator, generator *specgen.Generator, publisher specPublisher, concurrency int, log *logger.Logger) *SnapshotService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &SnapshotService{
		stores:      stores,
		blobs:       blobs,
		generator:   generator,
		publisher:   publisher,
		concurrency: concurrency,
		log:         log,
	}
}

// Manifest paths of a route
func routeContentPath(id int64) string { return fmt.Sprintf("routes/%d/content", id) }
func routeMetaPath(id int64) string    { return fmt.Sprintf("routes/%d/meta.json", id) }

// CreateDeploymentSnapshot snapshots the app's enabled, active routes into a
// new API deployment and activates it. Blobs are stored first; the
// deployment, its manifest and the app pointer are committed together. The
// specification cache is refreshed afterwards on a best-effort basis.
func (s *SnapshotService) CreateDeploymentSnapshot(ctx context.Context, appID uuid.UUID, name, description *string) (uuid.UUID, error) {
	log := s.log.WithAppID(appID.String())

	app, err := s.stores.Apps.GetByID(ctx, appID)
	if err != nil {
		return uuid.Nil, err
	}

	all, err := s.stores.Routes.ListPublishable(ctx, appID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: load routes: %w", models.ErrPersistence, err)
	}
	routes := make([]*models.Route, 0, len(all))
	for _, r := range all {
		if r.IsPublishable() {
			routes = append(routes, r)
		}
	}

	deploymentID := uuid.New()
	manifest := NewManifest(deploymentID)
	metas := make([]specgen.RouteMetadata, len(routes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, route := range routes {
		metas[i] = specgen.FromRoute(route)
		meta := metas[i]
		g.Go(func() error {
			return s.addRoute(gctx, manifest, route, meta)
		})
	}
	if err := g.Wait(); err != nil {
		return uuid.Nil, err
	}

	openapi, err := s.generator.Generate(app.Name, app.Slug, metas)
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.addDocument(ctx, manifest, models.PathOpenAPI, openapi, models.ContentTypeJSON); err != nil {
		return uuid.Nil, err
	}

	summary, err := specgen.Summary(metas)
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.addDocument(ctx, manifest, models.PathRoutesSummary, summary, models.ContentTypeJSON); err != nil {
		return uuid.Nil, err
	}

	now := time.Now().UTC()
	deployment := &models.Deployment{
		ID:          deploymentID,
		AppID:       appID,
		Type:        models.DeploymentTypeAPI,
		Status:      models.DeploymentPending,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}

	if err := s.stores.Snapshots.CommitAPISnapshot(ctx, deployment, manifest.Files()); err != nil {
		log.Error("failed to commit snapshot", "deployment_id", deploymentID, "error", err)
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrDuplicatePath) {
			return uuid.Nil, err
		}
		return uuid.Nil, fmt.Errorf("%w: commit snapshot: %w", models.ErrPersistence, err)
	}

	log.Info("api deployment activated",
		"deployment_id", deploymentID,
		"routes", len(routes),
		"files", manifest.Len(),
	)

	if err := s.publisher.Publish(ctx, app.Slug); err != nil {
		log.Warn("failed to refresh specification cache", "slug", app.Slug, "error", err)
	}

	return deploymentID, nil
}

func (s *SnapshotService) addRoute(ctx context.Context, manifest *Manifest, route *models.Route, meta specgen.RouteMetadata) error {
	if route.Response != nil {
		if content := route.Response.Content(); content != "" {
			err := s.addDocument(ctx, manifest, routeContentPath(route.ID), []byte(content), route.Response.BlobContentType())
			if err != nil {
				return err
			}
		}
	}

	doc, err := specgen.RouteDocument(meta)
	if err != nil {
		return err
	}
	return s.addDocument(ctx, manifest, routeMetaPath(route.ID), doc, models.ContentTypeJSON)
}

func (s *SnapshotService) addDocument(ctx context.Context, manifest *Manifest, path string, content []byte, contentType string) error {
	blob, err := s.blobs.GetOrCreate(ctx, content, contentType)
	if err != nil {
		return fmt.Errorf("store %s: %w", path, err)
	}
	return manifest.AddFile(path, blob, int64(len(content)))
}

// BootstrapReport summarizes a bootstrap run
type BootstrapReport struct {
	Processed int                  `json:"processed"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
	Failures  map[uuid.UUID]string `json:"failures,omitempty"`
}

// BootstrapMissingDeployments creates an initial API deployment for every app
// that has none. A failing app is logged and counted; the batch continues.
func (s *SnapshotService) BootstrapMissingDeployments(ctx context.Context) (*BootstrapReport, error) {
	apps, err := s.stores.Apps.ListWithoutActiveAPIDeployment(ctx)
	if err != nil {
		return nil, err
	}

	s.log.Info("bootstrapping api deployments", "apps", len(apps))

	report := &BootstrapReport{Failures: make(map[uuid.UUID]string)}
	name := "Initial deployment"
	description := "Created automatically for an app without an API deployment"

	for _, app := range apps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Processed++

		id, err := s.CreateDeploymentSnapshot(ctx, app.ID, &name, &description)
		if err != nil {
			report.Failed++
			report.Failures[app.ID] = err.Error()
			s.log.Error("bootstrap failed for app", "app_id", app.ID, "slug", app.Slug, "error", err)
			continue
		}
		report.Succeeded++
		s.log.Info("bootstrapped app", "app_id", app.ID, "slug", app.Slug, "deployment_id", id)
	}

	s.log.Info("bootstrap complete",
		"processed", report.Processed,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
	)
	return report, nil
}

// ActivateDeployment points the app at an earlier Ready deployment of the
// same kind (rollback) and refreshes the specification cache
func (s *SnapshotService) ActivateDeployment(ctx context.Context, appID, deploymentID uuid.UUID) (*models.Deployment, error) {
	d, err := s.GetDeployment(ctx, appID, deploymentID)
	if err != nil {
		return nil, err
	}
	if d.Status != models.DeploymentReady {
		return nil, fmt.Errorf("deployment %s is %s: %w", deploymentID, d.Status, models.ErrInvalidTransition)
	}

	if err := s.stores.Apps.SetActiveDeployment(ctx, appID, deploymentID, d.Type); err != nil {
		return nil, err
	}

	app, err := s.stores.Apps.GetByID(ctx, appID)
	if err != nil {
		return nil, err
	}

	s.log.Info("deployment activated", "app_id", appID, "deployment_id", deploymentID, "type", d.Type)

	if err := s.publisher.Publish(ctx, app.Slug); err != nil {
		s.log.Warn("failed to refresh specification cache", "slug", app.Slug, "error", err)
	}
	return d, nil
}

// ListDeployments lists an app's deployments, newest first
func (s *SnapshotService) ListDeployments(ctx context.Context, appID uuid.UUID, limit int) ([]*models.Deployment, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.stores.Deployments.ListByApp(ctx, appID, limit)
}

// GetDeployment returns a deployment owned by appID
func (s *SnapshotService) GetDeployment(ctx context.Context, appID, deploymentID uuid.UUID) (*models.Deployment, error) {
	d, err := s.stores.Deployments.GetByID(ctx, deploymentID)
	if err != nil {
		return nil, err
	}
	if d.AppID != appID {
		return nil, fmt.Errorf("deployment %s: %w", deploymentID, models.ErrNotFound)
	}
	return d, nil
}

// ListFiles returns the manifest of a deployment owned by appID
func (s *SnapshotService) ListFiles(ctx context.Context, appID, deploymentID uuid.UUID) ([]*models.DeploymentFile, error) {
	if _, err := s.GetDeployment(ctx, appID, deploymentID); err != nil {
		return nil, err
	}
	return s.stores.Files.ListByDeployment(ctx, deploymentID)
}

// FileContent is an open manifest entry. Body must be closed by the caller.
type FileContent struct {
	File *models.DeploymentFile
	Blob *models.Blob
	Body io.ReadCloser
}

// OpenFile opens one path of a deployment owned by appID
func (s *SnapshotService) OpenFile(ctx context.Context, appID, deploymentID uuid.UUID, path string) (*FileContent, error) {
	if _, err := s.GetDeployment(ctx, appID, deploymentID); err != nil {
		return nil, err
	}

	file, err := s.stores.Files.GetByPath(ctx, deploymentID, path)
	if err != nil {
		return nil, err
	}

	blob, body, err := s.blobs.Open(ctx, file.BlobID)
	if err != nil {
		return nil, err
	}
	return &FileContent{File: file, Blob: blob, Body: body}, nil
}

package container

import (
	"context"
	"fmt"

	"github.com/lyzr/launchpad/cmd/api/service"
	"github.com/lyzr/launchpad/common/bootstrap"
	"github.com/lyzr/launchpad/common/notifier"
	"github.com/lyzr/launchpad/common/ratelimit"
	"github.com/lyzr/launchpad/common/repository"
	"github.com/lyzr/launchpad/common/sourcehost"
	"github.com/lyzr/launchpad/common/specgen"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components

	// Repositories
	AppRepo        *repository.AppRepository
	RouteRepo      *repository.RouteRepository
	DeploymentRepo *repository.DeploymentRepository
	FileRepo       *repository.DeploymentFileRepository
	SnapshotRepo   *repository.SnapshotRepository
	BuildJobRepo   *repository.BuildJobRepository
	ArtifactRepo   *repository.ArtifactRepository
	BlobRepo       *repository.BlobRepository

	// Services
	BlobService          *service.BlobService
	SpecificationService *service.SpecificationService
	SnapshotService      *service.SnapshotService
	DiffService          *service.DiffService
	BuildService         *service.BuildService
	ArtifactService      *service.ArtifactService

	// Per-app request limits, nil when disabled
	BuildLimiter    ratelimit.Limiter
	SnapshotLimiter ratelimit.Limiter

	// Build status fan-out
	Broadcaster *notifier.Broadcaster
	Notifier    notifier.Notifier
	Publisher   *notifier.RedisPublisher // nil without redis
	relay       *notifier.RedisRelay
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	if components.DB == nil {
		return nil, fmt.Errorf("container requires a database")
	}
	cfg := components.Config
	log := components.Logger

	c := &Container{Components: components}

	// Initialize repositories
	c.AppRepo = repository.NewAppRepository(components.DB)
	c.RouteRepo = repository.NewRouteRepository(components.DB, components.Logger)
	c.DeploymentRepo = repository.NewDeploymentRepository(components.DB)
	c.FileRepo = repository.NewDeploymentFileRepository(components.DB)
	c.SnapshotRepo = repository.NewSnapshotRepository(components.DB)
	c.BuildJobRepo = repository.NewBuildJobRepository(components.DB)
	c.ArtifactRepo = repository.NewArtifactRepository(components.DB)
	c.BlobRepo = repository.NewBlobRepository(components.DB)
	authSchemes := repository.NewAuthSchemeRepository(components.DB)
	variables := repository.NewVariableRepository(components.DB)

	// Build status fan-out: redis when available so replicas share events
	c.Broadcaster = notifier.NewBroadcaster(log)
	if components.Redis != nil {
		c.Publisher = notifier.NewRedisPublisher(components.Redis, log)
		c.Notifier = c.Publisher
		c.relay = notifier.NewRedisRelay(components.Redis, c.Broadcaster, log)
	} else {
		c.Notifier = notifier.NewLocalNotifier(c.Broadcaster)
	}

	window := cfg.RateLimit.Window
	c.BuildLimiter = ratelimit.New(components.Redis, "builds",
		ratelimit.Policy{Limit: cfg.RateLimit.BuildsPerWindow, Window: window}, log)
	c.SnapshotLimiter = ratelimit.New(components.Redis, "snapshots",
		ratelimit.Policy{Limit: cfg.RateLimit.SnapshotsPerWindow, Window: window}, log)

	// Initialize services (bottom-up: dependencies first)
	c.BlobService = service.NewBlobService(c.BlobRepo, components.Storage, log)

	c.SpecificationService = service.NewSpecificationService(
		service.SpecificationStores{
			Apps:        c.AppRepo,
			Routes:      c.RouteRepo,
			AuthSchemes: authSchemes,
			Variables:   variables,
		},
		components.Cache,
		cfg.Specification.CacheTTL,
		log,
	)

	c.SnapshotService = service.NewSnapshotService(
		service.SnapshotStores{
			Apps:        c.AppRepo,
			Routes:      c.RouteRepo,
			Deployments: c.DeploymentRepo,
			Files:       c.FileRepo,
			Snapshots:   c.SnapshotRepo,
		},
		c.BlobService,
		specgen.New(cfg.Specification.PublicDomain),
		c.SpecificationService,
		cfg.Build.SnapshotConcurrency,
		log,
	)
	c.DiffService = service.NewDiffService(c.SnapshotService)

	commits := sourcehost.NewGitCommitResolver(cfg.Build.SourceToken, cfg.Build.CommitLookupTimeout)
	if !cfg.Build.AllowPrivateSources {
		commits.Guard = sourcehost.NewURLGuard()
	}

	c.BuildService = service.NewBuildService(
		c.AppRepo,
		c.BuildJobRepo,
		variables,
		commits,
		components.Queue,
		c.Notifier,
		cfg.Build.ArtifactBaseURL,
		log,
	)

	c.ArtifactService = service.NewArtifactService(
		c.ArtifactRepo,
		c.DeploymentRepo,
		c.BlobService,
		cfg.Storage.SitesDir,
		log,
	)

	return c, nil
}

// StartRelay forwards redis status events into the local broadcaster until
// ctx is done. It is a no-op without redis.
func (c *Container) StartRelay(ctx context.Context) {
	if c.relay == nil {
		return
	}
	go func() {
		if err := c.relay.Start(ctx); err != nil {
			c.Components.Logger.Error("build status relay stopped", "error", err)
		}
	}()
}

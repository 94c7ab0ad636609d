package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/lyzr/launchpad/common/cache"
	"github.com/lyzr/launchpad/common/config"
	"github.com/lyzr/launchpad/common/db"
	"github.com/lyzr/launchpad/common/logger"
	"github.com/lyzr/launchpad/common/queue"
	rediscommon "github.com/lyzr/launchpad/common/redis"
	"github.com/lyzr/launchpad/common/storage"
	"github.com/lyzr/launchpad/common/telemetry"
)

// Setup initializes all service components
// This is the main entry point for all services
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	// Apply options
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		cleanupFuncs: make([]func() error, 0),
	}

	// 1. Load configuration
	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	cfg := components.Config

	// 2. Initialize logger
	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(cfg.Service.LogLevel, cfg.Service.LogFormat)
	}

	components.Logger.Info("initializing service",
		"service", serviceName,
		"environment", cfg.Service.Environment,
	)

	// 3. Initialize database (if not skipped)
	if !options.skipDB {
		components.Logger.Info("connecting to database")
		components.DB, err = db.New(ctx, cfg, components.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		// Register cleanup
		components.addCleanup(func() error {
			components.DB.Close()
			return nil
		})

		if cfg.Database.Migrate {
			components.Logger.Info("applying migrations")
			if err := components.DB.Migrate(ctx); err != nil {
				components.Shutdown(ctx)
				return nil, fmt.Errorf("failed to migrate database: %w", err)
			}
		}

		// Run DB init hook if provided
		if options.dbInitHook != nil {
			components.Logger.Info("running database init hook")
			if err := options.dbInitHook(components.DB); err != nil {
				components.Shutdown(ctx) // Cleanup what we've initialized
				return nil, fmt.Errorf("database init hook failed: %w", err)
			}
		}
	}

	// 4. Redis is shared by the redis cache, the stream queue and status relay
	needsRedis := !options.skipRedis &&
		((!options.skipQueue && cfg.Queue.Type == "redis") ||
			(!options.skipCache && cfg.Cache.Type == "redis") ||
			options.requireRedis)
	if needsRedis {
		components.Logger.Info("connecting to redis", "addr", cfg.RedisAddr())
		raw := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		components.Redis = rediscommon.NewClient(raw, components.Logger)

		if err := components.Redis.Ping(ctx); err != nil {
			components.Shutdown(ctx)
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		components.addCleanup(func() error {
			components.Logger.Info("closing redis connection")
			return components.Redis.Close()
		})
	}

	// 5. Initialize queue (if not skipped)
	if !options.skipQueue {
		components.Logger.Info("initializing queue", "type", cfg.Queue.Type)

		switch cfg.Queue.Type {
		case "memory":
			components.Queue = queue.NewMemoryQueue(components.Logger)
		case "redis":
			components.Queue = queue.NewRedisStreamQueue(
				components.Redis,
				cfg.Queue.ConsumerGroup,
				cfg.Queue.BlockTimeout,
				components.Logger,
			)
		default:
			components.Shutdown(ctx)
			return nil, fmt.Errorf("unknown queue type: %s", cfg.Queue.Type)
		}

		// Register cleanup
		components.addCleanup(func() error {
			components.Logger.Info("closing queue")
			return components.Queue.Close()
		})
	}

	// 6. Initialize cache (if not skipped)
	if !options.skipCache {
		components.Logger.Info("initializing cache", "type", cfg.Cache.Type)

		switch cfg.Cache.Type {
		case "memory":
			components.Cache = cache.NewMemoryCache(cfg.Cache.DefaultTTL, components.Logger)
		case "redis":
			components.Cache = cache.NewRedisCache(components.Redis, components.Logger)
		default:
			components.Shutdown(ctx)
			return nil, fmt.Errorf("unknown cache type: %s", cfg.Cache.Type)
		}

		// Register cleanup
		components.addCleanup(func() error {
			components.Logger.Info("closing cache")
			return components.Cache.Close()
		})
	}

	// 7. Initialize blob storage (if not skipped)
	if !options.skipStorage {
		components.Logger.Info("initializing storage", "backend", cfg.Storage.Backend)
		components.Storage, err = newStorage(ctx, cfg)
		if err != nil {
			components.Shutdown(ctx)
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
	}

	// 8. Initialize telemetry (if enabled)
	if !options.skipTelemetry && cfg.Service.PprofPort > 0 {
		components.Logger.Info("initializing telemetry")
		components.Telemetry = telemetry.New(cfg.Service.PprofPort, components.Logger)

		if err := components.Telemetry.Start(ctx); err != nil {
			// Don't fail startup if telemetry fails
			components.Logger.Warn("failed to start telemetry", "error", err)
			components.Telemetry = nil
		} else {
			components.addCleanup(components.Telemetry.Close)
		}
	}

	components.Logger.Info("service initialization complete",
		"service", serviceName,
		"db", components.DB != nil,
		"redis", components.Redis != nil,
		"queue", components.Queue != nil,
		"cache", components.Cache != nil,
		"storage", components.Storage != nil,
		"telemetry", components.Telemetry != nil,
	)

	return components, nil
}

func newStorage(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case "disk":
		return storage.NewDiskBackend(cfg.Storage.Root)
	case "minio":
		return storage.NewMinioBackend(ctx, storage.MinioConfig{
			Endpoint:  cfg.Storage.MinioEndpoint,
			AccessKey: cfg.Storage.MinioAccessKey,
			SecretKey: cfg.Storage.MinioSecretKey,
			Bucket:    cfg.Storage.MinioBucket,
			Prefix:    cfg.Storage.MinioPrefix,
			UseSSL:    cfg.Storage.MinioUseSSL,
		})
	}
	return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
}

// MustSetup is like Setup but panics on error
// Useful for services that can't recover from initialization failure
func MustSetup(ctx context.Context, serviceName string, opts ...Option) *Components {
	components, err := Setup(ctx, serviceName, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to setup service %s: %v", serviceName, err))
	}
	return components
}

package bootstrap

import (
	"github.com/lyzr/launchpad/common/config"
	"github.com/lyzr/launchpad/common/db"
	"github.com/lyzr/launchpad/common/logger"
)

// Option configures the bootstrap process
type Option func(*options)

type options struct {
	skipDB        bool
	skipRedis     bool
	skipQueue     bool
	skipCache     bool
	skipStorage   bool
	skipTelemetry bool
	requireRedis  bool
	customLogger  *logger.Logger
	customConfig  *config.Config
	dbInitHook    func(*db.DB) error
}

// WithoutDB skips database initialization
func WithoutDB() Option {
	return func(o *options) {
		o.skipDB = true
	}
}

// WithoutQueue skips queue initialization
func WithoutQueue() Option {
	return func(o *options) {
		o.skipQueue = true
	}
}

// WithoutCache skips cache initialization
func WithoutCache() Option {
	return func(o *options) {
		o.skipCache = true
	}
}

// WithoutStorage skips blob storage initialization
func WithoutStorage() Option {
	return func(o *options) {
		o.skipStorage = true
	}
}

// WithoutTelemetry skips the pprof listener even when PPROF_PORT is set
func WithoutTelemetry() Option {
	return func(o *options) {
		o.skipTelemetry = true
	}
}

// WithoutRedis never connects to Redis. Queue and cache must then be
// configured as "memory" or skipped.
func WithoutRedis() Option {
	return func(o *options) {
		o.skipRedis = true
	}
}

// WithRedis connects to Redis even when neither the queue nor the cache
// uses it (e.g. for pub/sub)
func WithRedis() Option {
	return func(o *options) {
		o.requireRedis = true
	}
}

// WithCustomLogger uses a custom logger instead of creating one
func WithCustomLogger(log *logger.Logger) Option {
	return func(o *options) {
		o.customLogger = log
	}
}

// WithCustomConfig uses a custom config instead of loading from env
func WithCustomConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.customConfig = cfg
	}
}

// WithDBInitHook runs a custom function after DB initialization
// Useful for running migrations, seeding data, etc.
func WithDBInitHook(hook func(*db.DB) error) Option {
	return func(o *options) {
		o.dbInitHook = hook
	}
}

func defaultOptions() *options {
	return &options{}
}

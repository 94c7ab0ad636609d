package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all service configuration
type Config struct {
	Service       ServiceConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Cache         CacheConfig
	Queue         QueueConfig
	Storage       StorageConfig
	Specification SpecificationConfig
	Build         BuildConfig
	RateLimit     RateLimitConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
	PprofPort   int // 0 disables pprof
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
	Migrate     bool
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig holds specification cache settings
type CacheConfig struct {
	Type       string // "memory" or "redis"
	DefaultTTL time.Duration
}

// QueueConfig holds message queue settings
type QueueConfig struct {
	Type          string // "memory" or "redis"
	ConsumerGroup string
	BlockTimeout  time.Duration
}

// StorageConfig holds the physical blob storage settings
type StorageConfig struct {
	Backend  string // "disk" or "minio"
	Root     string
	SitesDir string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioPrefix    string
	MinioUseSSL    bool
}

// SpecificationConfig holds settings for generated documents and the gateway cache
type SpecificationConfig struct {
	CacheTTL     time.Duration
	PublicDomain string
}

// BuildConfig holds build pipeline settings
type BuildConfig struct {
	SnapshotConcurrency int
	ArtifactBaseURL     string
	CommitLookupTimeout time.Duration
	SourceToken         string
	// AllowPrivateSources disables the clone URL network guard
	AllowPrivateSources bool
}

// RateLimitConfig holds per-app request limits. A limit of 0 disables it.
type RateLimitConfig struct {
	BuildsPerWindow    int64
	SnapshotsPerWindow int64
	Window             time.Duration
}

// Load loads configuration from defaults, an optional config file (CONFIG_FILE)
// and environment variables, in increasing priority.
func Load(serviceName string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	return fromViper(v, serviceName)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 8080)
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("PPROF_PORT", 0)

	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_DB", "launchpad")
	v.SetDefault("POSTGRES_USER", "launchpad")
	v.SetDefault("POSTGRES_PASSWORD", "launchpad")
	v.SetDefault("POSTGRES_MAX_CONNS", 50)
	v.SetDefault("POSTGRES_MIN_CONNS", 10)
	v.SetDefault("POSTGRES_MAX_IDLE_TIME", 30*time.Minute)
	v.SetDefault("POSTGRES_MAX_LIFETIME", time.Hour)
	v.SetDefault("POSTGRES_MIGRATE", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("CACHE_TYPE", "redis")
	v.SetDefault("CACHE_DEFAULT_TTL", time.Hour)

	v.SetDefault("QUEUE_TYPE", "redis")
	v.SetDefault("QUEUE_CONSUMER_GROUP", "build_reactors")
	v.SetDefault("QUEUE_BLOCK_TIMEOUT", 5*time.Second)

	v.SetDefault("STORAGE_BACKEND", "disk")
	v.SetDefault("STORAGE_ROOT", "./data/blobs")
	v.SetDefault("STORAGE_SITES_DIR", "./data/sites")
	v.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_BUCKET", "launchpad")
	v.SetDefault("MINIO_PREFIX", "")
	v.SetDefault("MINIO_USE_SSL", false)

	v.SetDefault("SPEC_CACHE_TTL", 30*24*time.Hour)
	v.SetDefault("PUBLIC_DOMAIN", "apps.launchpad.dev")

	v.SetDefault("SNAPSHOT_CONCURRENCY", 8)
	v.SetDefault("ARTIFACT_BASE_URL", "http://localhost:8080/api/v1")
	v.SetDefault("COMMIT_LOOKUP_TIMEOUT", 10*time.Second)
	v.SetDefault("SOURCE_TOKEN", "")
	v.SetDefault("ALLOW_PRIVATE_SOURCES", false)

	v.SetDefault("BUILD_RATE_LIMIT", 10)
	v.SetDefault("SNAPSHOT_RATE_LIMIT", 30)
	v.SetDefault("RATE_LIMIT_WINDOW", time.Minute)
}

func fromViper(v *viper.Viper, serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        v.GetInt("PORT"),
			Environment: v.GetString("ENVIRONMENT"),
			LogLevel:    v.GetString("LOG_LEVEL"),
			LogFormat:   v.GetString("LOG_FORMAT"),
			PprofPort:   v.GetInt("PPROF_PORT"),
		},
		Database: DatabaseConfig{
			Host:        v.GetString("POSTGRES_HOST"),
			Port:        v.GetInt("POSTGRES_PORT"),
			Database:    v.GetString("POSTGRES_DB"),
			User:        v.GetString("POSTGRES_USER"),
			Password:    v.GetString("POSTGRES_PASSWORD"),
			MaxConns:    v.GetInt("POSTGRES_MAX_CONNS"),
			MinConns:    v.GetInt("POSTGRES_MIN_CONNS"),
			MaxIdleTime: v.GetDuration("POSTGRES_MAX_IDLE_TIME"),
			MaxLifetime: v.GetDuration("POSTGRES_MAX_LIFETIME"),
			Migrate:     v.GetBool("POSTGRES_MIGRATE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Cache: CacheConfig{
			Type:       v.GetString("CACHE_TYPE"),
			DefaultTTL: v.GetDuration("CACHE_DEFAULT_TTL"),
		},
		Queue: QueueConfig{
			Type:          v.GetString("QUEUE_TYPE"),
			ConsumerGroup: v.GetString("QUEUE_CONSUMER_GROUP"),
			BlockTimeout:  v.GetDuration("QUEUE_BLOCK_TIMEOUT"),
		},
		Storage: StorageConfig{
			Backend:        v.GetString("STORAGE_BACKEND"),
			Root:           v.GetString("STORAGE_ROOT"),
			SitesDir:       v.GetString("STORAGE_SITES_DIR"),
			MinioEndpoint:  v.GetString("MINIO_ENDPOINT"),
			MinioAccessKey: v.GetString("MINIO_ACCESS_KEY"),
			MinioSecretKey: v.GetString("MINIO_SECRET_KEY"),
			MinioBucket:    v.GetString("MINIO_BUCKET"),
			MinioPrefix:    v.GetString("MINIO_PREFIX"),
			MinioUseSSL:    v.GetBool("MINIO_USE_SSL"),
		},
		Specification: SpecificationConfig{
			CacheTTL:     v.GetDuration("SPEC_CACHE_TTL"),
			PublicDomain: v.GetString("PUBLIC_DOMAIN"),
		},
		Build: BuildConfig{
			SnapshotConcurrency: v.GetInt("SNAPSHOT_CONCURRENCY"),
			ArtifactBaseURL:     v.GetString("ARTIFACT_BASE_URL"),
			CommitLookupTimeout: v.GetDuration("COMMIT_LOOKUP_TIMEOUT"),
			SourceToken:         v.GetString("SOURCE_TOKEN"),
			AllowPrivateSources: v.GetBool("ALLOW_PRIVATE_SOURCES"),
		},
		RateLimit: RateLimitConfig{
			BuildsPerWindow:    v.GetInt64("BUILD_RATE_LIMIT"),
			SnapshotsPerWindow: v.GetInt64("SNAPSHOT_RATE_LIMIT"),
			Window:             v.GetDuration("RATE_LIMIT_WINDOW"),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}

	switch c.Storage.Backend {
	case "disk":
		if c.Storage.Root == "" {
			return fmt.Errorf("storage root is required for disk backend")
		}
	case "minio":
		if c.Storage.MinioBucket == "" {
			return fmt.Errorf("minio bucket is required for minio backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}

	if c.Cache.Type != "memory" && c.Cache.Type != "redis" {
		return fmt.Errorf("unknown cache type: %s", c.Cache.Type)
	}

	if c.Queue.Type != "memory" && c.Queue.Type != "redis" {
		return fmt.Errorf("unknown queue type: %s", c.Queue.Type)
	}

	if c.Specification.CacheTTL <= 0 {
		return fmt.Errorf("specification cache ttl must be positive")
	}

	if c.Build.SnapshotConcurrency < 1 {
		return fmt.Errorf("snapshot concurrency must be >= 1")
	}

	if (c.RateLimit.BuildsPerWindow > 0 || c.RateLimit.SnapshotsPerWindow > 0) && c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// RedisAddr returns host:port for the Redis client
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service configuration
type Config struct {
	Service   ServiceConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Catalog   CatalogConfig
	Blob      BlobConfig
	Source    SourceConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name         string
	Port         int
	Environment  string
	LogLevel     string
	LogFormat    string
	WriteTimeout time.Duration // 0 disables; long streams must not be cut off
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
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig holds catalog read-through cache settings
type CacheConfig struct {
	Enabled    bool
	Backend    string // "memory" or "redis"
	DefaultTTL time.Duration
}

// CatalogConfig selects the metadata index backend
type CatalogConfig struct {
	Backend   string // "postgres", "sqlite" or "memory"
	SQLiteDSN string
}

// BlobConfig selects and configures the blob store backend
type BlobConfig struct {
	Backend string // "fs" or "s3"
	Dir     string
	S3      S3Config
}

// S3Config holds S3/MinIO settings
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	PathStyle bool
	Prefix    string
}

// SourceConfig configures the external search/download tool
type SourceConfig struct {
	YTDLPPath     string
	AutoInstall   bool
	ScratchDir    string
	AudioFormat   string
	WatchURLBase  string
	SearchTimeout time.Duration
	FetchTimeout  time.Duration
}

// AuthConfig configures the identity check
type AuthConfig struct {
	JWTSecret      string
	Required       bool
	InternalSecret string
}

// RateLimitConfig holds acquisition rate limits (per minute)
type RateLimitConfig struct {
	Enabled     bool
	GlobalLimit int64
	UserLimit   int64
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof bool
	PprofPort   int
}

// Load loads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func Load(serviceName string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	cfg := &Config{
		Service: ServiceConfig{
			Name:         serviceName,
			Port:         getEnvInt("PORT", 3000),
			Environment:  getEnv("ENVIRONMENT", "development"),
			LogLevel:     getEnv("LOG_LEVEL", "info"),
			LogFormat:    getEnv("LOG_FORMAT", "text"),
			WriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT", 0),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "trackstore"),
			User:        getEnv("POSTGRES_USER", "trackstore"),
			Password:    getEnv("POSTGRES_PASSWORD", "trackstore"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 20),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 2),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Enabled:    getEnvBool("CACHE_ENABLED", true),
			Backend:    getEnv("CACHE_BACKEND", "memory"),
			DefaultTTL: getEnvDuration("CACHE_DEFAULT_TTL", 10*time.Minute),
		},
		Catalog: CatalogConfig{
			Backend:   getEnv("CATALOG_BACKEND", "postgres"),
			SQLiteDSN: getEnv("SQLITE_DSN", "file:trackstore.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"),
		},
		Blob: BlobConfig{
			Backend: getEnv("BLOB_BACKEND", "fs"),
			Dir:     getEnv("BLOB_DIR", "./data/blobs"),
			S3: S3Config{
				Endpoint:  getEnv("S3_ENDPOINT", "localhost:9000"),
				Region:    getEnv("S3_REGION", "us-east-1"),
				Bucket:    getEnv("S3_BUCKET", ""),
				AccessKey: getEnv("S3_ACCESS_KEY", ""),
				SecretKey: getEnv("S3_SECRET_KEY", ""),
				UseSSL:    getEnvBool("S3_USE_SSL", false),
				PathStyle: getEnvBool("S3_PATH_STYLE", true),
				Prefix:    getEnv("S3_PREFIX", "tracks/"),
			},
		},
		Source: SourceConfig{
			YTDLPPath:     getEnv("YTDLP_PATH", ""),
			AutoInstall:   getEnvBool("YTDLP_AUTO_INSTALL", false),
			ScratchDir:    getEnv("SCRATCH_DIR", os.TempDir()),
			AudioFormat:   getEnv("AUDIO_FORMAT", "mp3"),
			WatchURLBase:  getEnv("WATCH_URL_BASE", "https://www.youtube.com/watch?v="),
			SearchTimeout: getEnvDuration("SEARCH_TIMEOUT", 30*time.Second),
			FetchTimeout:  getEnvDuration("FETCH_TIMEOUT", 10*time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret:      getEnv("AUTH_JWT_SECRET", ""),
			Required:       getEnvBool("AUTH_REQUIRED", false),
			InternalSecret: getEnv("INTERNAL_SERVICE_SECRET", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled:     getEnvBool("RATE_LIMIT_ENABLED", true),
			GlobalLimit: int64(getEnvInt("RATE_LIMIT_GLOBAL", 60)),
			UserLimit:   int64(getEnvInt("RATE_LIMIT_USER", 10)),
		},
		Telemetry: TelemetryConfig{
			EnablePprof: getEnvBool("ENABLE_PPROF", false),
			PprofPort:   getEnvInt("PPROF_PORT", 6060),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	switch c.Catalog.Backend {
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			return fmt.Errorf("max_conns must be >= min_conns")
		}
	case "sqlite":
		if c.Catalog.SQLiteDSN == "" {
			return fmt.Errorf("sqlite dsn is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown catalog backend: %s", c.Catalog.Backend)
	}

	switch c.Blob.Backend {
	case "fs":
		if c.Blob.Dir == "" {
			return fmt.Errorf("blob dir is required")
		}
	case "s3":
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("s3 bucket is required")
		}
	default:
		return fmt.Errorf("unknown blob backend: %s", c.Blob.Backend)
	}

	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case "memory":
		case "redis":
			if !c.Redis.Enabled {
				return fmt.Errorf("redis cache backend requires REDIS_ENABLED")
			}
		default:
			return fmt.Errorf("unknown cache backend: %s", c.Cache.Backend)
		}
	}

	if c.Auth.Required && c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_REQUIRED needs AUTH_JWT_SECRET")
	}

	if c.Source.AudioFormat == "" {
		return fmt.Errorf("audio format is required")
	}

	return nil
}

// IsProduction reports whether internal error detail must be hidden
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Service.Environment, "production")
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

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

package container

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/soundsphere/trackstore/cmd/trackstore/repository"
	"github.com/soundsphere/trackstore/cmd/trackstore/service"
	"github.com/soundsphere/trackstore/common/blobstore"
	"github.com/soundsphere/trackstore/common/bootstrap"
	"github.com/soundsphere/trackstore/common/clients"
	"github.com/soundsphere/trackstore/common/config"
	"github.com/soundsphere/trackstore/common/ratelimit"
	"github.com/soundsphere/trackstore/common/security"
)

// healthChecker is implemented by backends that can be pinged
type healthChecker interface {
	Health(ctx context.Context) error
}

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components

	// Storage
	Catalog repository.TrackCatalog
	Blobs   blobstore.Store

	// External tooling
	YTDLP *clients.YTDLP

	// Services
	AcquisitionService *service.AcquisitionService
	TrackService       *service.TrackService
	StreamService      *service.StreamService

	// RateLimiter is nil when Redis or rate limiting is disabled
	RateLimiter *ratelimit.RateLimiter

	checkers map[string]healthChecker
}

// NewContainer initializes all services and repositories once
func NewContainer(ctx context.Context, components *bootstrap.Components) (*Container, error) {
	cfg := components.Config
	log := components.Logger
	checkers := make(map[string]healthChecker)

	// Catalog
	catalog, err := newCatalog(ctx, components, checkers)
	if err != nil {
		return nil, err
	}
	if components.Cache != nil {
		catalog = repository.NewCachedCatalog(catalog, components.Cache, cfg.Cache.DefaultTTL, log)
	}

	// Blob store
	blobs, err := newBlobStore(ctx, cfg, components, checkers)
	if err != nil {
		return nil, err
	}

	// External tooling: one shared handle for the process lifetime
	yt, err := clients.NewYTDLP(ctx, clients.YTDLPConfig{
		Executable:    cfg.Source.YTDLPPath,
		AutoInstall:   cfg.Source.AutoInstall,
		AudioFormat:   cfg.Source.AudioFormat,
		SearchTimeout: cfg.Source.SearchTimeout,
		FetchTimeout:  cfg.Source.FetchTimeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare yt-dlp: %w", err)
	}

	validator := security.NewLocatorValidator(security.WithAllowedDomains(sourceDomains(cfg.Source.WatchURLBase)...))
	resolver := service.NewSearchResolver(yt, cfg.Source.WatchURLBase, log)
	fetcher := service.NewScratchFetcher(yt, cfg.Source.ScratchDir, validator, log)

	// Services (bottom-up: dependencies first)
	acquisitionService := service.NewAcquisitionService(catalog, blobs, resolver, fetcher, components.Telemetry, log)
	trackService := service.NewTrackService(catalog, blobs, log)
	streamService := service.NewStreamService(catalog, blobs, log)

	var limiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled && components.Redis != nil {
		limiter = ratelimit.NewRateLimiter(components.Redis.GetUnderlying(), log)
	}

	log.Info("service container ready",
		"catalog", cfg.Catalog.Backend,
		"catalog_cache", components.Cache != nil,
		"blob", cfg.Blob.Backend,
		"rate_limit", limiter != nil,
	)

	return &Container{
		Components:         components,
		Catalog:            catalog,
		Blobs:              blobs,
		YTDLP:              yt,
		AcquisitionService: acquisitionService,
		TrackService:       trackService,
		StreamService:      streamService,
		RateLimiter:        limiter,
		checkers:           checkers,
	}, nil
}

func newCatalog(ctx context.Context, components *bootstrap.Components, checkers map[string]healthChecker) (repository.TrackCatalog, error) {
	cfg := components.Config

	switch cfg.Catalog.Backend {
	case "postgres":
		if components.DB == nil {
			return nil, fmt.Errorf("postgres catalog requires a database connection")
		}
		return repository.NewPostgresCatalog(components.DB), nil

	case "sqlite":
		catalog, err := repository.OpenSQLiteCatalog(ctx, cfg.Catalog.SQLiteDSN)
		if err != nil {
			return nil, err
		}
		components.AddCleanup(catalog.Close)
		checkers["sqlite"] = catalog
		return catalog, nil

	default:
		components.Logger.Warn("using in-memory catalog; records are lost on restart")
		return repository.NewMemoryCatalog(), nil
	}
}

func newBlobStore(ctx context.Context, cfg *config.Config, components *bootstrap.Components, checkers map[string]healthChecker) (blobstore.Store, error) {
	switch cfg.Blob.Backend {
	case "s3":
		store, err := blobstore.NewS3Store(blobstore.S3Config{
			Endpoint:  cfg.Blob.S3.Endpoint,
			Region:    cfg.Blob.S3.Region,
			Bucket:    cfg.Blob.S3.Bucket,
			AccessKey: cfg.Blob.S3.AccessKey,
			SecretKey: cfg.Blob.S3.SecretKey,
			UseSSL:    cfg.Blob.S3.UseSSL,
			PathStyle: cfg.Blob.S3.PathStyle,
			Prefix:    cfg.Blob.S3.Prefix,
		}, components.Logger)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx, cfg.Blob.S3.Region); err != nil {
			return nil, err
		}
		checkers["s3"] = store
		return store, nil

	default:
		return blobstore.NewFSStore(cfg.Blob.Dir, components.Logger)
	}
}

// sourceDomains derives the locator allow-list from the watch URL base
func sourceDomains(watchBase string) []string {
	u, err := url.Parse(watchBase)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	return []string{strings.TrimPrefix(host, "www.")}
}

// Health checks bootstrap components and storage backends
func (c *Container) Health(ctx context.Context) map[string]string {
	status := map[string]string{}

	if err := c.Components.Health(ctx); err != nil {
		status["components"] = err.Error()
	} else {
		status["components"] = "ok"
	}

	for name, checker := range c.checkers {
		if err := checker.Health(ctx); err != nil {
			status[name] = err.Error()
		} else {
			status[name] = "ok"
		}
	}

	return status
}

// Healthy reports whether every entry of a Health result is ok
func Healthy(status map[string]string) bool {
	for _, s := range status {
		if s != "ok" {
			return false
		}
	}
	return true
}

package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/soundsphere/trackstore/cmd/trackstore/container"
	"github.com/soundsphere/trackstore/cmd/trackstore/handlers"
	commonmw "github.com/soundsphere/trackstore/common/middleware"
	"github.com/soundsphere/trackstore/common/ratelimit"
)

// RegisterTrackRoutes registers acquisition, lookup and streaming routes
func RegisterTrackRoutes(e *echo.Echo, c *container.Container) {
	cfg := c.Components.Config
	trackHandler := handlers.NewTrackHandler(c.Components, c.AcquisitionService, c.TrackService)
	streamHandler := handlers.NewStreamHandler(c.Components, c.StreamService)

	// Acquisition is the expensive call; it alone is rate limited
	var acquireMW []echo.MiddlewareFunc
	if c.RateLimiter != nil {
		limits := ratelimit.Limits{Global: cfg.RateLimit.GlobalLimit, User: cfg.RateLimit.UserLimit}.Normalize()
		acquireMW = append(acquireMW,
			commonmw.GlobalRateLimitMiddleware(c.RateLimiter, limits.Global, cfg.Auth.InternalSecret),
			commonmw.UserRateLimitMiddleware(c.RateLimiter, limits.User, cfg.Auth.InternalSecret),
		)
	}

	e.POST("/acquire", trackHandler.Acquire, acquireMW...) // POST /acquire
	e.POST("/check-existing", trackHandler.CheckExisting)  // POST /check-existing
	e.GET("/tracks/:key", trackHandler.GetTrack)           // GET /tracks/{key}
	e.GET("/stream/:key", streamHandler.Stream)            // GET /stream/{key}
	e.HEAD("/stream/:key", streamHandler.Stream)           // HEAD /stream/{key}

	// Compatibility routes
	legacy := e.Group("/api/tracks")
	{
		legacy.POST("/download", trackHandler.Acquire, acquireMW...) // POST /api/tracks/download
		legacy.POST("/check-tracks", trackHandler.CheckExisting)     // POST /api/tracks/check-tracks
		legacy.GET("/stream/:key", streamHandler.Stream)             // GET /api/tracks/stream/{key}
		legacy.HEAD("/stream/:key", streamHandler.Stream)            // HEAD /api/tracks/stream/{key}

		if !cfg.IsProduction() {
			legacy.POST("/test-download", trackHandler.AcquireSample, acquireMW...) // POST /api/tracks/test-download
		}
	}
}

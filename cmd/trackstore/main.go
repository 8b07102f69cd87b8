package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/soundsphere/trackstore/cmd/trackstore/container"
	trackmw "github.com/soundsphere/trackstore/cmd/trackstore/middleware"
	"github.com/soundsphere/trackstore/cmd/trackstore/repository"
	"github.com/soundsphere/trackstore/cmd/trackstore/routes"
	"github.com/soundsphere/trackstore/common/bootstrap"
	"github.com/soundsphere/trackstore/common/server"
)

const serviceName = "trackstore"

func main() {
	ctx := context.Background()

	// Bootstrap common components (config, logger, DB, redis, cache, telemetry)
	components, err := bootstrap.Setup(ctx, serviceName,
		bootstrap.WithDBInitHook(repository.EnsurePostgresSchema),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap %s: %v\n", serviceName, err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (all services created once)
	serviceContainer, err := container.NewContainer(ctx, components)
	if err != nil {
		components.Logger.Error("failed to initialize service container", "error", err)
		components.Shutdown(ctx)
		os.Exit(1)
	}

	e := setupEcho()
	setupMiddleware(e, components)
	setupHealthCheck(e, serviceContainer)
	registerRoutes(e, serviceContainer)

	startServer(e, components)
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo, components *bootstrap.Components) {
	log := components.Logger

	e.Use(middleware.RequestID())
	e.Use(trackmw.TraceContext())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			log.LogAttrs(c.Request().Context(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("trace_id", v.RequestID),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(trackmw.ExtractIdentity(trackmw.AuthConfig{
		JWTSecret: components.Config.Auth.JWTSecret,
		Required:  components.Config.Auth.Required,
	}))
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, c *container.Container) {
	e.GET("/health", func(ec echo.Context) error {
		checks := c.Health(ec.Request().Context())

		status, code := "ok", http.StatusOK
		if !container.Healthy(checks) {
			status, code = "degraded", http.StatusServiceUnavailable
		}

		return ec.JSON(code, map[string]interface{}{
			"status":  status,
			"service": serviceName,
			"checks":  checks,
		})
	})
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, serviceContainer *container.Container) {
	routes.RegisterTrackRoutes(e, serviceContainer)
	routes.RegisterAdminRoutes(e, serviceContainer)
}

// startServer serves until SIGINT/SIGTERM, then drains
func startServer(e *echo.Echo, components *bootstrap.Components) {
	cfg := components.Config
	srv := server.New(serviceName, cfg.Service.Port, cfg.Service.WriteTimeout, e, components.Logger)

	if err := srv.Start(); err != nil {
		components.Logger.Error("server error", "error", err)
		components.Shutdown(context.Background())
		os.Exit(1)
	}
}

package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/soundsphere/trackstore/cmd/trackstore/container"
	"github.com/soundsphere/trackstore/cmd/trackstore/handlers"
	commonmw "github.com/soundsphere/trackstore/common/middleware"
)

// RegisterAdminRoutes registers maintenance routes for internal callers
func RegisterAdminRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewAdminHandler(c.Components, c.TrackService)

	admin := e.Group("/admin", commonmw.InternalOnly(c.Components.Config.Auth.InternalSecret))
	{
		admin.DELETE("/tracks/:key", h.DeleteTrack) // DELETE /admin/tracks/{key}
	}
}

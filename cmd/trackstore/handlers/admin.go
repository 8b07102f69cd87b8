package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/soundsphere/trackstore/cmd/trackstore/models"
	"github.com/soundsphere/trackstore/cmd/trackstore/service"
	"github.com/soundsphere/trackstore/common/bootstrap"
)

// AdminHandler handles maintenance endpoints for internal callers
type AdminHandler struct {
	components *bootstrap.Components
	tracks     *service.TrackService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(components *bootstrap.Components, tracks *service.TrackService) *AdminHandler {
	return &AdminHandler{
		components: components,
		tracks:     tracks,
	}
}

// DeleteTrack removes a record and its blob
// DELETE /admin/tracks/:key
func (h *AdminHandler) DeleteTrack(c echo.Context) error {
	key := pathKey(c)
	if err := models.ValidateKey(key); err != nil {
		return respondError(c, h.components.Logger, h.components.Config.IsProduction(), err)
	}

	track, err := h.tracks.Remove(c.Request().Context(), key)
	if err != nil {
		return respondError(c, h.components.Logger, h.components.Config.IsProduction(), err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"deleted": true,
		"record":  track,
	})
}

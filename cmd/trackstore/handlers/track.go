package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/soundsphere/trackstore/cmd/trackstore/models"
	"github.com/soundsphere/trackstore/cmd/trackstore/service"
	"github.com/soundsphere/trackstore/common/bootstrap"
)

// TrackHandler handles acquisition and catalog queries
type TrackHandler struct {
	components  *bootstrap.Components
	acquisition *service.AcquisitionService
	tracks      *service.TrackService
}

// NewTrackHandler creates a new track handler
func NewTrackHandler(components *bootstrap.Components, acquisition *service.AcquisitionService, tracks *service.TrackService) *TrackHandler {
	return &TrackHandler{
		components:  components,
		acquisition: acquisition,
		tracks:      tracks,
	}
}

func (h *TrackHandler) fail(c echo.Context, err error) error {
	return respondError(c, h.components.Logger, h.components.Config.IsProduction(), err)
}

// Acquire stores a track unless its key is already in the catalog
// POST /acquire
func (h *TrackHandler) Acquire(c echo.Context) error {
	var req models.AcquireRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, fmt.Errorf("%w: malformed JSON body", models.ErrValidation))
	}
	return h.acquire(c, req)
}

// AcquireSample is Acquire with an optional key; a missing key becomes
// test_<unix millis>. Registered outside production only.
// POST /api/tracks/test-download
func (h *TrackHandler) AcquireSample(c echo.Context) error {
	var req models.AcquireRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, fmt.Errorf("%w: malformed JSON body", models.ErrValidation))
	}
	if strings.TrimSpace(req.Key) == "" {
		req.Key = fmt.Sprintf("test_%d", time.Now().UnixMilli())
	}

	return h.acquire(c, req)
}

func (h *TrackHandler) acquire(c echo.Context, req models.AcquireRequest) error {
	if err := req.Validate(); err != nil {
		return h.fail(c, err)
	}

	res, err := h.acquisition.Acquire(c.Request().Context(), req.Key, req.DisplayName)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusOK, models.AcquireResponse{
		Status: res.Status,
		Record: res.Track,
	})
}

// CheckExisting reports which keys are already stored
// POST /check-existing
func (h *TrackHandler) CheckExisting(c echo.Context) error {
	var req models.CheckExistingRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, fmt.Errorf("%w: malformed JSON body", models.ErrValidation))
	}

	keys, err := req.ParseKeys()
	if err != nil {
		return h.fail(c, err)
	}

	resp, err := h.tracks.CheckExisting(c.Request().Context(), keys)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}

// GetTrack returns the catalog record for a key
// GET /tracks/:key
func (h *TrackHandler) GetTrack(c echo.Context) error {
	key := pathKey(c)
	if err := models.ValidateKey(key); err != nil {
		return h.fail(c, err)
	}

	track, err := h.tracks.Get(c.Request().Context(), key)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusOK, track)
}

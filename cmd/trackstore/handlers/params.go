package handlers

import (
	"net/url"

	"github.com/labstack/echo/v4"
)

// pathKey returns the :key path parameter decoded exactly once.
// Echo routes on URL.RawPath when it is set and hands the segment over
// still escaped; otherwise the parameter is already decoded.
func pathKey(c echo.Context) string {
	raw := c.Param("key")
	if c.Request().URL.RawPath == "" {
		return raw
	}
	if key, err := url.PathUnescape(raw); err == nil {
		return key
	}
	return raw
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func newContext(header string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	if header != "" {
		req.Header.Set(InternalServiceHeader, header)
	}
	return e.NewContext(req, httptest.NewRecorder())
}

func TestIsInternalRequest(t *testing.T) {
	assert.True(t, isInternalRequest(newContext("s3cret"), "s3cret"))
	assert.False(t, isInternalRequest(newContext("guess"), "s3cret"))
	assert.False(t, isInternalRequest(newContext(""), "s3cret"))

	// An unset secret never grants access, even to an empty header
	assert.False(t, isInternalRequest(newContext(""), ""))
	assert.False(t, isInternalRequest(newContext("anything"), ""))
}

func TestInternalOnly(t *testing.T) {
	e := echo.New()
	e.DELETE("/admin", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}, InternalOnly("s3cret"))

	for header, want := range map[string]int{
		"":       http.StatusForbidden,
		"wrong":  http.StatusForbidden,
		"s3cret": http.StatusNoContent,
	} {
		req := httptest.NewRequest(http.MethodDelete, "/admin", nil)
		if header != "" {
			req.Header.Set(InternalServiceHeader, header)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "header %q", header)
	}
}

package handlers

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/soundsphere/trackstore/cmd/trackstore/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathKey_DecodedOnce(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, key := range []string{"a%41", "100%", "a b", "aA"} {
		t.Run(key, func(t *testing.T) {
			body := `{"key":` + quote(key) + `,"displayName":"Song"}`
			rec := ts.do(t, http.MethodPost, "/acquire", body, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			target := "/tracks/" + url.PathEscape(key)
			rec = ts.do(t, http.MethodGet, target, "", nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, key, decode[models.Track](t, rec).Key)

			rec = ts.do(t, http.MethodGet, "/stream/"+url.PathEscape(key), "", nil)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestPathKey_AdminDeleteHitsExactKey(t *testing.T) {
	ts := newTestServer(t, nil)
	for _, key := range []string{"a%41", "aA"} {
		rec := ts.do(t, http.MethodPost, "/acquire", `{"key":`+quote(key)+`,"displayName":"Song"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	internal := map[string]string{"X-Internal-Service": internalSecret}
	rec := ts.do(t, http.MethodDelete, "/admin/tracks/"+url.PathEscape("a%41"), "", internal)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/tracks/aA", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "neighbouring key must survive")
	rec = ts.do(t, http.MethodGet, "/tracks/"+url.PathEscape("a%41"), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func quote(s string) string {
	return `"` + s + `"`
}

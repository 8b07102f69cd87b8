package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/soundsphere/trackstore/cmd/trackstore/repository"
	"github.com/soundsphere/trackstore/cmd/trackstore/service"
	"github.com/soundsphere/trackstore/common/blobstore"
	"github.com/soundsphere/trackstore/common/bootstrap"
	"github.com/soundsphere/trackstore/common/config"
	"github.com/soundsphere/trackstore/common/logger"
	commonmw "github.com/soundsphere/trackstore/common/middleware"
	"github.com/stretchr/testify/require"
)

const internalSecret = "internal-secret"

type stubResolver struct {
	locator string
	err     error
}

func (r *stubResolver) Resolve(ctx context.Context, displayName string) (string, error) {
	return r.locator, r.err
}

type stubFetcher struct {
	data []byte
	err  error
}

func (f *stubFetcher) Fetch(ctx context.Context, locator string) (*service.FetchedMedia, error) {
	if f.err != nil {
		return nil, f.err
	}
	return service.NewFetchedMedia(bytes.NewReader(f.data), int64(len(f.data)), nil), nil
}

// brokenStore wraps a real store; Open hands out objects whose reads fail
type brokenStore struct {
	blobstore.Store
	readErr error
	closes  atomic.Int32
}

type failingBody struct {
	store *brokenStore
	err   error
}

func (b *failingBody) Read(p []byte) (int, error) { return 0, b.err }

func (b *failingBody) Close() error {
	b.store.closes.Add(1)
	return nil
}

func (s *brokenStore) Open(ctx context.Context, ref string, rng *blobstore.Range) (*blobstore.Object, error) {
	obj, err := s.Store.Open(ctx, ref, rng)
	if err != nil {
		return nil, err
	}
	_ = obj.Close()
	return blobstore.NewObject(&failingBody{store: s, err: s.readErr}, obj.Size, obj.Start, obj.End, obj.ContentType), nil
}

type testServer struct {
	e        *echo.Echo
	catalog  *repository.MemoryCatalog
	blobs    blobstore.Store
	fetcher  *stubFetcher
	resolver *stubResolver
}

type serverOption func(*config.Config)

func production(cfg *config.Config) { cfg.Service.Environment = "production" }

func newTestServer(t *testing.T, blobs blobstore.Store, opts ...serverOption) *testServer {
	t.Helper()

	if blobs == nil {
		fs, err := blobstore.NewFSStore(t.TempDir(), logger.Discard())
		require.NoError(t, err)
		blobs = fs
	}

	cfg := &config.Config{Service: config.ServiceConfig{Name: "trackstore", Environment: "development"}}
	for _, opt := range opts {
		opt(cfg)
	}
	components := &bootstrap.Components{Config: cfg, Logger: logger.Discard()}

	ts := &testServer{
		e:        echo.New(),
		catalog:  repository.NewMemoryCatalog(),
		blobs:    blobs,
		fetcher:  &stubFetcher{data: audio(4096)},
		resolver: &stubResolver{locator: "https://www.youtube.com/watch?v=abc"},
	}

	log := logger.Discard()
	acq := service.NewAcquisitionService(ts.catalog, blobs, ts.resolver, ts.fetcher, nil, log)
	tracks := service.NewTrackService(ts.catalog, blobs, log)
	streams := service.NewStreamService(ts.catalog, blobs, log)

	th := NewTrackHandler(components, acq, tracks)
	sh := NewStreamHandler(components, streams)
	ah := NewAdminHandler(components, tracks)

	ts.e.POST("/acquire", th.Acquire)
	ts.e.POST("/check-existing", th.CheckExisting)
	ts.e.POST("/api/tracks/test-download", th.AcquireSample)
	ts.e.GET("/tracks/:key", th.GetTrack)
	ts.e.GET("/stream/:key", sh.Stream)
	ts.e.HEAD("/stream/:key", sh.Stream)
	ts.e.DELETE("/admin/tracks/:key", ah.DeleteTrack, commonmw.InternalOnly(internalSecret))

	return ts
}

func audio(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 7)
	}
	return b
}

func (ts *testServer) do(t *testing.T, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// goneWriter is a ResponseWriter whose client has disconnected
type goneWriter struct {
	header http.Header
	status int
}

func (w *goneWriter) Header() http.Header {
	if w.header == nil {
		w.header = http.Header{}
	}
	return w.header
}

func (w *goneWriter) WriteHeader(status int) { w.status = status }

func (w *goneWriter) Write(p []byte) (int, error) {
	return 0, errors.New("write: broken pipe")
}

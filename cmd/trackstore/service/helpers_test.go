package service

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/soundsphere/trackstore/cmd/trackstore/models"
	"github.com/soundsphere/trackstore/cmd/trackstore/repository"
	"github.com/soundsphere/trackstore/common/blobstore"
	"github.com/soundsphere/trackstore/common/logger"
	"github.com/stretchr/testify/require"
)

// fakeResolver returns a fixed locator or error
type fakeResolver struct {
	locator string
	err     error
	calls   atomic.Int32
}

func (r *fakeResolver) Resolve(ctx context.Context, displayName string) (string, error) {
	r.calls.Add(1)
	if r.err != nil {
		return "", r.err
	}
	return r.locator, nil
}

// fakeFetcher serves fixed bytes, optionally waiting on gate first
type fakeFetcher struct {
	data   []byte
	reader func() io.Reader
	err    error
	gate   chan struct{}

	fetches atomic.Int32
	closes  atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, locator string) (*FetchedMedia, error) {
	f.fetches.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}

	var r io.Reader = bytes.NewReader(f.data)
	if f.reader != nil {
		r = f.reader()
	}
	return NewFetchedMedia(r, int64(len(f.data)), func() error {
		f.closes.Add(1)
		return nil
	}), nil
}

type testEnv struct {
	catalog *repository.MemoryCatalog
	blobs   *blobstore.FSStore
	root    string
}

func newTestEnv(t *testing.T) *testEnv {
	root := t.TempDir()
	blobs, err := blobstore.NewFSStore(root, logger.Discard())
	require.NoError(t, err)
	return &testEnv{
		catalog: repository.NewMemoryCatalog(),
		blobs:   blobs,
		root:    root,
	}
}

// blobCount counts committed blob files
func (e *testEnv) blobCount(t *testing.T) int {
	count := 0
	err := filepath.WalkDir(e.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == ".staging" {
			return filepath.SkipDir
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	require.NoError(t, err)
	return count
}

// assertConsistent checks that records and blobs match one to one
func (e *testEnv) assertConsistent(t *testing.T, keys ...string) {
	ctx := context.Background()
	records := 0
	for _, k := range keys {
		track, err := e.catalog.Get(ctx, k)
		if err != nil {
			continue
		}
		records++
		ok, err := e.blobs.Exists(ctx, track.BlobRef)
		require.NoError(t, err)
		require.True(t, ok, "record %s points at missing blob %s", k, track.BlobRef)
	}
	require.Equal(t, records, e.blobCount(t), "orphan blobs present")
}

// hookCatalog lets a test intercept Insert
type hookCatalog struct {
	repository.TrackCatalog
	mu       sync.Mutex
	onInsert func(ctx context.Context, t *models.Track) error
}

func (h *hookCatalog) Insert(ctx context.Context, t *models.Track) error {
	h.mu.Lock()
	hook := h.onInsert
	h.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, t); err != nil {
			return err
		}
	}
	return h.TrackCatalog.Insert(ctx, t)
}

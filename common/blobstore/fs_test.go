package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/soundsphere/trackstore/common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFSStore(t *testing.T) (*FSStore, string) {
	root := t.TempDir()
	store, err := NewFSStore(root, logger.Discard())
	require.NoError(t, err)
	return store, root
}

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

// visibleBlobs counts committed files, skipping the staging area
func visibleBlobs(t *testing.T, root string) int {
	count := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
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

func TestFSStore_PutOpenRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestFSStore(t)
	data := payload(4096)

	res, err := store.Put(ctx, bytes.NewReader(data), "audio/mpeg")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), res.Size)
	assert.Equal(t, fmt.Sprintf("sha256:%x", sha256.Sum256(data)), res.Digest)

	ok, err := store.Exists(ctx, res.Ref)
	require.NoError(t, err)
	assert.True(t, ok)

	obj, err := store.Open(ctx, res.Ref, nil)
	require.NoError(t, err)
	defer obj.Close()

	got, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, int64(len(data)), obj.Size)
	assert.False(t, obj.Partial())
}

func TestFSStore_PutMintsFreshRefs(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestFSStore(t)

	a, err := store.Put(ctx, bytes.NewReader([]byte("same")), "audio/mpeg")
	require.NoError(t, err)
	b, err := store.Put(ctx, bytes.NewReader([]byte("same")), "audio/mpeg")
	require.NoError(t, err)

	assert.NotEqual(t, a.Ref, b.Ref)
	assert.Equal(t, a.Digest, b.Digest)

	// Removing one must not affect the other
	require.NoError(t, store.Delete(ctx, a.Ref))
	ok, err := store.Exists(ctx, b.Ref)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFSStore_OpenRange(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestFSStore(t)
	data := payload(1000)

	res, err := store.Put(ctx, bytes.NewReader(data), "audio/mpeg")
	require.NoError(t, err)

	obj, err := store.Open(ctx, res.Ref, &Range{Start: 0, End: 99})
	require.NoError(t, err)
	got, err := io.ReadAll(obj)
	require.NoError(t, err)
	require.NoError(t, obj.Close())
	assert.Equal(t, data[:100], got)
	assert.Equal(t, int64(100), obj.Length())
	assert.True(t, obj.Partial())

	obj, err = store.Open(ctx, res.Ref, &Range{Start: 990, End: -1})
	require.NoError(t, err)
	got, err = io.ReadAll(obj)
	require.NoError(t, err)
	require.NoError(t, obj.Close())
	assert.Equal(t, data[990:], got)

	_, err = store.Open(ctx, res.Ref, &Range{Start: 1000, End: -1})
	assert.True(t, errors.Is(err, ErrInvalidRange))
}

type failingReader struct {
	data []byte
	sent bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if !f.sent {
		f.sent = true
		return copy(p, f.data), nil
	}
	return 0, errors.New("source went away")
}

func TestFSStore_FailedPutLeavesNothing(t *testing.T) {
	ctx := context.Background()
	store, root := newTestFSStore(t)

	_, err := store.Put(ctx, &failingReader{data: payload(512)}, "audio/mpeg")
	require.Error(t, err)

	assert.Equal(t, 0, visibleBlobs(t, root))

	staged, err := os.ReadDir(filepath.Join(root, ".staging"))
	require.NoError(t, err)
	assert.Empty(t, staged)
}

func TestFSStore_CancelledPutLeavesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store, root := newTestFSStore(t)

	_, err := store.Put(ctx, bytes.NewReader(payload(64)), "audio/mpeg")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, visibleBlobs(t, root))
}

func TestFSStore_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestFSStore(t)

	res, err := store.Put(ctx, bytes.NewReader([]byte("x")), "audio/mpeg")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, res.Ref))
	require.NoError(t, store.Delete(ctx, res.Ref))
	require.NoError(t, store.Delete(ctx, "not-a-ref"))

	ok, err := store.Exists(ctx, res.Ref)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Open(ctx, res.Ref, nil)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFSStore_MalformedRef(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestFSStore(t)

	ok, err := store.Exists(ctx, "../../etc/passwd")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Open(ctx, "../../etc/passwd", nil)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFSStore_EmptyBlob(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestFSStore(t)

	res, err := store.Put(ctx, bytes.NewReader(nil), "audio/mpeg")
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Size)

	obj, err := store.Open(ctx, res.Ref, nil)
	require.NoError(t, err)
	defer obj.Close()
	assert.Equal(t, int64(0), obj.Length())

	got, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Empty(t, got)
}

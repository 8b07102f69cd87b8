package service

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/soundsphere/trackstore/cmd/trackstore/models"
	"github.com/soundsphere/trackstore/common/clients"
	"github.com/soundsphere/trackstore/common/logger"
	"github.com/soundsphere/trackstore/common/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	hit *clients.SearchHit
	err error
}

func (s *fakeSearcher) Search(ctx context.Context, query string) (*clients.SearchHit, error) {
	return s.hit, s.err
}

func TestSearchResolver(t *testing.T) {
	r := NewSearchResolver(&fakeSearcher{hit: &clients.SearchHit{ID: "abc123", Title: "Song X"}},
		"https://www.youtube.com/watch?v=", logger.Discard())

	locator, err := r.Resolve(context.Background(), "Song X")
	require.NoError(t, err)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", locator)
}

func TestSearchResolver_Errors(t *testing.T) {
	r := NewSearchResolver(&fakeSearcher{err: clients.ErrNoMatch}, "https://x/?v=", logger.Discard())
	_, err := r.Resolve(context.Background(), "nothing")
	assert.True(t, errors.Is(err, models.ErrNoSource))
	assert.False(t, errors.Is(err, models.ErrResolution))

	r = NewSearchResolver(&fakeSearcher{err: clients.ErrMalformedOutput}, "https://x/?v=", logger.Discard())
	_, err = r.Resolve(context.Background(), "garbled")
	assert.True(t, errors.Is(err, models.ErrResolution))

	r = NewSearchResolver(&fakeSearcher{err: clients.ErrToolFailed}, "https://x/?v=", logger.Discard())
	_, err = r.Resolve(context.Background(), "offline")
	assert.True(t, errors.Is(err, models.ErrResolution))
}

// fakeDownloader writes content into the scratch dir it is given
type fakeDownloader struct {
	content []byte
	err     error
	lastDir string
}

func (d *fakeDownloader) Download(ctx context.Context, locator, dir string) (string, error) {
	d.lastDir = dir
	if d.err != nil {
		return "", d.err
	}
	path := filepath.Join(dir, "track.mp3")
	return path, os.WriteFile(path, d.content, 0o600)
}

func publicLookup(ctx context.Context, host string) ([]net.IP, error) {
	return []net.IP{net.ParseIP("142.250.74.78")}, nil
}

func TestScratchFetcher_CloseRemovesScratch(t *testing.T) {
	root := t.TempDir()
	dl := &fakeDownloader{content: []byte("mp3 bytes")}
	f := NewScratchFetcher(dl, root, security.NewLocatorValidator(security.WithLookup(publicLookup)), logger.Discard())

	media, err := f.Fetch(context.Background(), testLocator)
	require.NoError(t, err)
	assert.Equal(t, int64(len("mp3 bytes")), media.Size)

	got, err := io.ReadAll(media)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3 bytes"), got)

	require.DirExists(t, dl.lastDir)
	require.NoError(t, media.Close())
	require.NoError(t, media.Close())
	assert.NoDirExists(t, dl.lastDir)
}

func TestScratchFetcher_FailureRemovesScratch(t *testing.T) {
	root := t.TempDir()
	dl := &fakeDownloader{err: errors.New("exit status 1")}
	f := NewScratchFetcher(dl, root, nil, logger.Discard())

	_, err := f.Fetch(context.Background(), testLocator)
	require.True(t, errors.Is(err, models.ErrFetch))
	assert.NoDirExists(t, dl.lastDir)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestScratchFetcher_RejectsInternalLocator(t *testing.T) {
	dl := &fakeDownloader{content: []byte("x")}
	f := NewScratchFetcher(dl, t.TempDir(), security.NewLocatorValidator(security.WithLookup(publicLookup)), logger.Discard())

	_, err := f.Fetch(context.Background(), "http://127.0.0.1:9000/secret")
	require.True(t, errors.Is(err, models.ErrFetch))
	assert.Empty(t, dl.lastDir, "downloader must not run")
}

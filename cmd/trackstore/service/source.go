package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/soundsphere/trackstore/cmd/trackstore/models"
	"github.com/soundsphere/trackstore/common/clients"
	"github.com/soundsphere/trackstore/common/logger"
	"github.com/soundsphere/trackstore/common/security"
)

// Resolver maps a display name to a source locator.
// Returns models.ErrNoSource for zero matches, models.ErrResolution otherwise.
type Resolver interface {
	Resolve(ctx context.Context, displayName string) (string, error)
}

// Fetcher downloads a source locator into a scratch area.
// The caller must Close the result, which removes the scratch area.
type Fetcher interface {
	Fetch(ctx context.Context, locator string) (*FetchedMedia, error)
}

// Searcher is the search half of the download tool
type Searcher interface {
	Search(ctx context.Context, query string) (*clients.SearchHit, error)
}

// Downloader is the download half of the download tool
type Downloader interface {
	Download(ctx context.Context, locator, dir string) (string, error)
}

// FetchedMedia is a downloaded file backed by a scratch directory
type FetchedMedia struct {
	io.Reader
	Size int64

	closeOnce sync.Once
	closeErr  error
	cleanup   func() error
}

// NewFetchedMedia wraps r; cleanup runs once on Close
func NewFetchedMedia(r io.Reader, size int64, cleanup func() error) *FetchedMedia {
	return &FetchedMedia{Reader: r, Size: size, cleanup: cleanup}
}

// Close releases the file and removes the scratch area
func (m *FetchedMedia) Close() error {
	m.closeOnce.Do(func() {
		if m.cleanup != nil {
			m.closeErr = m.cleanup()
		}
	})
	return m.closeErr
}

// SearchResolver resolves names with the first hit of a search
type SearchResolver struct {
	searcher  Searcher
	watchBase string
	log       *logger.Logger
}

// NewSearchResolver creates a resolver that builds locators as watchBase + id
func NewSearchResolver(searcher Searcher, watchBase string, log *logger.Logger) *SearchResolver {
	return &SearchResolver{searcher: searcher, watchBase: watchBase, log: log}
}

// Resolve returns the locator of the first search hit
func (r *SearchResolver) Resolve(ctx context.Context, displayName string) (string, error) {
	hit, err := r.searcher.Search(ctx, displayName)
	switch {
	case errors.Is(err, clients.ErrNoMatch):
		return "", fmt.Errorf("%w: %q", models.ErrNoSource, displayName)
	case err != nil:
		return "", fmt.Errorf("%w: %w", models.ErrResolution, err)
	}

	locator := r.watchBase + url.QueryEscape(hit.ID)
	r.log.Info("source resolved", "display_name", displayName, "title", hit.Title, "locator", locator)
	return locator, nil
}

// ScratchFetcher downloads into a fresh directory under a scratch root
type ScratchFetcher struct {
	downloader Downloader
	root       string
	validator  *security.LocatorValidator
	log        *logger.Logger
}

// NewScratchFetcher creates a fetcher; validator may be nil
func NewScratchFetcher(downloader Downloader, root string, validator *security.LocatorValidator, log *logger.Logger) *ScratchFetcher {
	return &ScratchFetcher{downloader: downloader, root: root, validator: validator, log: log}
}

// Fetch downloads locator and opens the result
func (f *ScratchFetcher) Fetch(ctx context.Context, locator string) (*FetchedMedia, error) {
	if f.validator != nil {
		if err := f.validator.Validate(ctx, locator); err != nil {
			return nil, fmt.Errorf("%w: rejected locator: %w", models.ErrFetch, err)
		}
	}

	dir := filepath.Join(f.root, "fetch-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: failed to create scratch dir: %w", models.ErrFetch, err)
	}
	removeDir := func() error {
		if err := os.RemoveAll(dir); err != nil {
			f.log.Warn("failed to remove scratch dir", "dir", dir, "error", err)
			return err
		}
		return nil
	}

	path, err := f.downloader.Download(ctx, locator, dir)
	if err != nil {
		_ = removeDir()
		return nil, fmt.Errorf("%w: %w", models.ErrFetch, err)
	}

	file, err := os.Open(path)
	if err != nil {
		_ = removeDir()
		return nil, fmt.Errorf("%w: failed to open download: %w", models.ErrFetch, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		_ = removeDir()
		return nil, fmt.Errorf("%w: failed to stat download: %w", models.ErrFetch, err)
	}

	return NewFetchedMedia(file, info.Size(), func() error {
		closeErr := file.Close()
		if err := removeDir(); err != nil {
			return err
		}
		return closeErr
	}), nil
}

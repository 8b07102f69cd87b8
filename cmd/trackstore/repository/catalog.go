package repository

import (
	"context"
	"strings"

	"github.com/soundsphere/trackstore/cmd/trackstore/models"
)

// TrackCatalog is the metadata index keyed by catalog key.
// Insert enforces key uniqueness at the storage boundary; acquisition
// relies on that constraint to settle concurrent acquisitions of one key.
type TrackCatalog interface {
	// Get returns models.ErrTrackNotFound when key is absent
	Get(ctx context.Context, key string) (*models.Track, error)

	// Insert returns models.ErrDuplicateKey when key is already present
	Insert(ctx context.Context, track *models.Track) error

	// BatchExists returns summaries for the subset of keys present
	BatchExists(ctx context.Context, keys []string) ([]models.TrackSummary, error)

	// Delete removes key and returns the removed record
	Delete(ctx context.Context, key string) (*models.Track, error)
}

// trackColumns is the column order used by every SELECT and RETURNING
var trackColumns = []string{
	"key",
	"display_name",
	"source_locator",
	"blob_ref",
	"size_bytes",
	"content_digest",
	"content_type",
	"created_at",
}

// batchChunk bounds the number of bind parameters per IN query
const batchChunk = 500

func chunk(keys []string, size int) [][]string {
	var out [][]string
	for len(keys) > size {
		out = append(out, keys[:size])
		keys = keys[size:]
	}
	if len(keys) > 0 {
		out = append(out, keys)
	}
	return out
}

func joinColumns() string {
	return strings.Join(trackColumns, ", ")
}

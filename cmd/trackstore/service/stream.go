package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/soundsphere/trackstore/cmd/trackstore/models"
	"github.com/soundsphere/trackstore/cmd/trackstore/repository"
	"github.com/soundsphere/trackstore/common/blobstore"
	"github.com/soundsphere/trackstore/common/logger"
)

// StreamService opens stored tracks for range reads
type StreamService struct {
	catalog repository.TrackCatalog
	blobs   blobstore.Store
	log     *logger.Logger
}

// NewStreamService creates a new stream service
func NewStreamService(catalog repository.TrackCatalog, blobs blobstore.Store, log *logger.Logger) *StreamService {
	return &StreamService{catalog: catalog, blobs: blobs, log: log}
}

// Lookup returns the record for key
func (s *StreamService) Lookup(ctx context.Context, key string) (*models.Track, error) {
	return s.catalog.Get(ctx, key)
}

// Open opens the blob behind track over rng (nil for the whole blob).
//
// A record whose blob is gone is reported as models.ErrIntegrity.
// An unsatisfiable range wraps models.ErrInvalidRange and a
// *blobstore.RangeError carrying the blob size.
func (s *StreamService) Open(ctx context.Context, track *models.Track, rng *blobstore.Range) (*blobstore.Object, error) {
	obj, err := s.blobs.Open(ctx, track.BlobRef, rng)
	switch {
	case err == nil:
		return obj, nil
	case errors.Is(err, blobstore.ErrNotFound):
		s.log.WithContext(ctx).Warn("integrity violation: record without blob",
			"track_key", track.Key,
			"blob_ref", track.BlobRef,
		)
		return nil, fmt.Errorf("%w: %s", models.ErrIntegrity, track.Key)
	case errors.Is(err, blobstore.ErrInvalidRange):
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidRange, err)
	default:
		return nil, fmt.Errorf("%w: %w", models.ErrStorage, err)
	}
}

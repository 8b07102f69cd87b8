package service

import (
	"context"

	"github.com/soundsphere/trackstore/cmd/trackstore/models"
	"github.com/soundsphere/trackstore/cmd/trackstore/repository"
	"github.com/soundsphere/trackstore/common/blobstore"
	"github.com/soundsphere/trackstore/common/logger"
)

// TrackService answers catalog queries and performs cascade deletes
type TrackService struct {
	catalog repository.TrackCatalog
	blobs   blobstore.Store
	log     *logger.Logger
}

// NewTrackService creates a new track service
func NewTrackService(catalog repository.TrackCatalog, blobs blobstore.Store, log *logger.Logger) *TrackService {
	return &TrackService{catalog: catalog, blobs: blobs, log: log}
}

// Get returns the record for key
func (s *TrackService) Get(ctx context.Context, key string) (*models.Track, error) {
	return s.catalog.Get(ctx, key)
}

// CheckExisting returns the subset of keys already stored, in request order.
// It never acquires anything.
func (s *TrackService) CheckExisting(ctx context.Context, keys []string) (*models.CheckExistingResponse, error) {
	resp := &models.CheckExistingResponse{
		ExistingKeys: []string{},
		Records:      []models.TrackSummary{},
	}
	if len(keys) == 0 {
		return resp, nil
	}

	found, err := s.catalog.BatchExists(ctx, keys)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]models.TrackSummary, len(found))
	for _, f := range found {
		byKey[f.Key] = f
	}
	for _, k := range keys {
		if summary, ok := byKey[k]; ok {
			resp.ExistingKeys = append(resp.ExistingKeys, k)
			resp.Records = append(resp.Records, summary)
		}
	}

	s.log.WithContext(ctx).Debug("checked existing tracks", "requested", len(keys), "existing", len(resp.ExistingKeys))
	return resp, nil
}

// Remove deletes the record for key, then its blob.
// A blob that cannot be removed is logged as orphaned; the record stays gone.
func (s *TrackService) Remove(ctx context.Context, key string) (*models.Track, error) {
	log := s.log.WithContext(ctx).WithTrackKey(key)

	track, err := s.catalog.Delete(ctx, key)
	if err != nil {
		return nil, err
	}

	if err := s.blobs.Delete(ctx, track.BlobRef); err != nil {
		log.Error("blob delete failed, blob orphaned", "blob_ref", track.BlobRef, "error", err)
		return track, nil
	}

	log.Info("track removed", "blob_ref", track.BlobRef)
	return track, nil
}


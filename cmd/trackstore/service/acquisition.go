package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soundsphere/trackstore/cmd/trackstore/models"
	"github.com/soundsphere/trackstore/cmd/trackstore/repository"
	"github.com/soundsphere/trackstore/common/blobstore"
	"github.com/soundsphere/trackstore/common/clients"
	"github.com/soundsphere/trackstore/common/logger"
	"github.com/soundsphere/trackstore/common/telemetry"
	"golang.org/x/sync/singleflight"
)

// Acquisition states, logged as each step starts
const (
	stateCheck    = "CHECK"
	stateResolve  = "RESOLVE"
	stateFetch    = "FETCH"
	stateStore    = "STORE"
	stateCommit   = "COMMIT"
	stateRollback = "ROLLBACK"
	stateDone     = "DONE"
	stateError    = "ERROR"
)

// AcquireResult is the outcome of a successful acquisition
type AcquireResult struct {
	Status string // models.StatusExists or models.StatusAcquired
	Track  *models.Track
}

// AcquisitionService fetches each catalog key at most once and keeps
// the catalog and blob store consistent.
//
// Blobs are written before records. Concurrent acquisitions of one key
// in this process share a single flight; across processes the catalog's
// unique key decides the winner at COMMIT and the loser rolls back its blob.
type AcquisitionService struct {
	catalog     repository.TrackCatalog
	blobs       blobstore.Store
	resolver    Resolver
	fetcher     Fetcher
	log         *logger.Logger
	telemetry   *telemetry.Telemetry
	contentType string

	flights singleflight.Group
}

// NewAcquisitionService creates a new acquisition service
func NewAcquisitionService(
	catalog repository.TrackCatalog,
	blobs blobstore.Store,
	resolver Resolver,
	fetcher Fetcher,
	tel *telemetry.Telemetry,
	log *logger.Logger,
) *AcquisitionService {
	return &AcquisitionService{
		catalog:     catalog,
		blobs:       blobs,
		resolver:    resolver,
		fetcher:     fetcher,
		log:         log,
		telemetry:   tel,
		contentType: models.DefaultContentType,
	}
}

// Acquire returns the stored track for key, acquiring it first if needed.
// The work is detached from ctx cancellation: a caller that goes away
// still leaves a populated catalog behind.
func (s *AcquisitionService) Acquire(ctx context.Context, key, displayName string) (*AcquireResult, error) {
	v, err, shared := s.flights.Do(key, func() (interface{}, error) {
		return s.acquire(context.WithoutCancel(ctx), key, displayName)
	})
	if err != nil {
		return nil, err
	}

	res := v.(*AcquireResult)
	if shared {
		s.log.WithContext(ctx).Debug("joined in-flight acquisition", "track_key", key)
	}

	// Callers must not share a mutable record
	track := *res.Track
	return &AcquireResult{Status: res.Status, Track: &track}, nil
}

func (s *AcquisitionService) acquire(ctx context.Context, key, displayName string) (*AcquireResult, error) {
	log := s.log.WithContext(ctx).WithTrackKey(key)
	if who, ok := clients.GetUserID(ctx); ok {
		log = log.WithFields(map[string]any{"requested_by": who})
	}
	started := time.Now()
	defer s.telemetry.RecordDuration("acquire", started)

	// CHECK
	log.Debug("acquisition step", "state", stateCheck)
	existing, err := s.catalog.Get(ctx, key)
	if err == nil {
		log.Info("track already stored", "state", stateDone, "blob_ref", existing.BlobRef)
		return &AcquireResult{Status: models.StatusExists, Track: existing}, nil
	}
	if !errors.Is(err, models.ErrTrackNotFound) {
		return nil, s.fail(log, stateCheck, err)
	}

	// RESOLVE
	log.Info("acquisition step", "state", stateResolve, "display_name", displayName)
	locator, err := s.resolver.Resolve(ctx, displayName)
	if err != nil {
		return nil, s.fail(log, stateResolve, err)
	}

	// FETCH
	log.Info("acquisition step", "state", stateFetch, "locator", locator)
	fetchStart := time.Now()
	media, err := s.fetcher.Fetch(ctx, locator)
	if err != nil {
		return nil, s.fail(log, stateFetch, err)
	}
	defer func() {
		if err := media.Close(); err != nil {
			log.Warn("failed to release fetched media", "error", err)
		}
	}()
	s.telemetry.RecordDuration("acquire.fetch", fetchStart)

	// STORE
	log.Info("acquisition step", "state", stateStore, "size", media.Size)
	put, err := s.blobs.Put(ctx, media, s.contentType)
	if err != nil {
		return nil, s.fail(log, stateStore, fmt.Errorf("%w: %w", models.ErrStorage, err))
	}

	// COMMIT
	log.Info("acquisition step", "state", stateCommit, "blob_ref", put.Ref)
	track := &models.Track{
		Key:           key,
		DisplayName:   displayName,
		SourceLocator: locator,
		BlobRef:       put.Ref,
		SizeBytes:     put.Size,
		ContentDigest: put.Digest,
		ContentType:   s.contentType,
		CreatedAt:     time.Now().UTC(),
	}

	err = s.catalog.Insert(ctx, track)
	switch {
	case err == nil:
		log.Info("track acquired",
			"state", stateDone,
			"blob_ref", put.Ref,
			"size", put.Size,
			"digest", put.Digest,
			"duration_ms", time.Since(started).Milliseconds(),
		)
		s.telemetry.RecordEvent("track_acquired", map[string]any{"track_key": key, "size": put.Size})
		return &AcquireResult{Status: models.StatusAcquired, Track: track}, nil

	case errors.Is(err, models.ErrDuplicateKey):
		// Another acquisition committed first; ours is surplus
		log.Info("lost commit race, discarding blob", "blob_ref", put.Ref)
		s.telemetry.RecordEvent("commit_race_lost", map[string]any{"track_key": key})
		s.rollback(ctx, log, put.Ref)

		winner, getErr := s.catalog.Get(ctx, key)
		if getErr != nil {
			return nil, s.fail(log, stateCheck, getErr)
		}
		log.Info("track already stored", "state", stateDone, "blob_ref", winner.BlobRef)
		return &AcquireResult{Status: models.StatusExists, Track: winner}, nil

	default:
		s.rollback(ctx, log, put.Ref)
		return nil, s.fail(log, stateCommit, err)
	}
}

// rollback deletes a blob no record points at. Failures are logged only.
func (s *AcquisitionService) rollback(ctx context.Context, log *logger.Logger, ref string) {
	log.Info("acquisition step", "state", stateRollback, "blob_ref", ref)
	if err := s.blobs.Delete(ctx, ref); err != nil {
		log.Error("rollback failed, blob orphaned", "blob_ref", ref, "error", err)
	}
}

func (s *AcquisitionService) fail(log *logger.Logger, state string, err error) error {
	switch {
	case errors.Is(err, models.ErrNoSource):
		log.Warn("acquisition failed", "state", stateError, "step", state, "error", err)
	default:
		log.Error("acquisition failed", "state", stateError, "step", state, "error", err)
	}
	return err
}

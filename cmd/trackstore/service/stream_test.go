package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/soundsphere/trackstore/cmd/trackstore/models"
	"github.com/soundsphere/trackstore/common/blobstore"
	"github.com/soundsphere/trackstore/common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeTrack(t *testing.T, env *testEnv, key string, data []byte) *models.Track {
	ctx := context.Background()
	put, err := env.blobs.Put(ctx, bytes.NewReader(data), models.DefaultContentType)
	require.NoError(t, err)

	track := &models.Track{
		Key:         key,
		DisplayName: "Song " + key,
		BlobRef:     put.Ref,
		SizeBytes:   put.Size,
		ContentType: models.DefaultContentType,
	}
	require.NoError(t, env.catalog.Insert(ctx, track))
	return track
}

func TestStreamService_OpenRange(t *testing.T) {
	env := newTestEnv(t)
	data := audio(1000)
	storeTrack(t, env, "t1", data)
	svc := NewStreamService(env.catalog, env.blobs, logger.Discard())
	ctx := context.Background()

	track, err := svc.Lookup(ctx, "t1")
	require.NoError(t, err)

	obj, err := svc.Open(ctx, track, &blobstore.Range{Start: 0, End: 99})
	require.NoError(t, err)
	defer obj.Close()

	got, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, data[:100], got)
	assert.Equal(t, int64(len(data)), obj.Size)
}

func TestStreamService_UnknownKey(t *testing.T) {
	env := newTestEnv(t)
	svc := NewStreamService(env.catalog, env.blobs, logger.Discard())

	_, err := svc.Lookup(context.Background(), "nope")
	assert.True(t, errors.Is(err, models.ErrTrackNotFound))
}

func TestStreamService_MissingBlobIsIntegrityError(t *testing.T) {
	env := newTestEnv(t)
	track := storeTrack(t, env, "t1", audio(100))
	require.NoError(t, env.blobs.Delete(context.Background(), track.BlobRef))
	svc := NewStreamService(env.catalog, env.blobs, logger.Discard())

	_, err := svc.Open(context.Background(), track, nil)
	assert.True(t, errors.Is(err, models.ErrIntegrity))
}

func TestStreamService_InvalidRange(t *testing.T) {
	env := newTestEnv(t)
	track := storeTrack(t, env, "t1", audio(100))
	svc := NewStreamService(env.catalog, env.blobs, logger.Discard())

	_, err := svc.Open(context.Background(), track, &blobstore.Range{Start: 100, End: -1})
	require.True(t, errors.Is(err, models.ErrInvalidRange))

	var rerr *blobstore.RangeError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, int64(100), rerr.Size)
}

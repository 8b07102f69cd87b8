package blobstore

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/soundsphere/trackstore/common/logger"
)

// S3Config holds connection settings for an S3-compatible endpoint
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	PathStyle bool
	Prefix    string
}

// partSize bounds memory per upload when the stream length is unknown
const partSize = 16 << 20

// S3Store keeps blobs as objects in a single bucket
type S3Store struct {
	cl     *minio.Client
	bucket string
	prefix string
	log    *logger.Logger
}

// NewS3Store creates a client; call EnsureBucket before first use
func NewS3Store(cfg S3Config, log *logger.Logger) (*S3Store, error) {
	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	}
	if cfg.PathStyle {
		opts.BucketLookup = minio.BucketLookupPath
	}

	cl, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	return &S3Store{cl: cl, bucket: cfg.Bucket, prefix: cfg.Prefix, log: log}, nil
}

// EnsureBucket creates the bucket when missing
func (s *S3Store) EnsureBucket(ctx context.Context, region string) error {
	ok, err := s.cl.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if ok {
		return nil
	}

	if err := s.cl.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	s.log.Info("bucket created", "bucket", s.bucket)
	return nil
}

// Health checks that the bucket is reachable
func (s *S3Store) Health(ctx context.Context) error {
	_, err := s.cl.BucketExists(ctx, s.bucket)
	return err
}

func (s *S3Store) key(ref string) (string, error) {
	id, err := uuid.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return s.prefix + id.String(), nil
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

// Exists reports whether ref resolves to an object
func (s *S3Store) Exists(ctx context.Context, ref string) (bool, error) {
	key, err := s.key(ref)
	if err != nil {
		return false, nil
	}

	_, err = s.cl.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object %s: %w", key, err)
	}
	return true, nil
}

// Put uploads r under a new reference. Uploads of unknown length go
// multipart; a failed stream aborts the upload so no object appears.
func (s *S3Store) Put(ctx context.Context, r io.Reader, contentType string) (PutResult, error) {
	ref := uuid.NewString()
	key := s.prefix + ref

	h := sha256.New()
	info, err := s.cl.PutObject(ctx, s.bucket, key, io.TeeReader(r, h), -1, minio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    partSize,
	})
	if err != nil {
		return PutResult{}, fmt.Errorf("failed to upload object %s: %w", key, err)
	}

	res := PutResult{
		Ref:    ref,
		Size:   info.Size,
		Digest: fmt.Sprintf("sha256:%x", h.Sum(nil)),
	}
	s.log.Debug("blob stored", "ref", ref, "bucket", s.bucket, "size", info.Size)
	return res, nil
}

// Open stats the object, then requests only the bytes in rng
func (s *S3Store) Open(ctx context.Context, ref string, rng *Range) (*Object, error) {
	key, err := s.key(ref)
	if err != nil {
		return nil, err
	}

	info, err := s.cl.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("failed to stat object %s: %w", key, err)
	}

	start, end, err := Bounds(rng, info.Size)
	if err != nil {
		return nil, err
	}

	opts := minio.GetObjectOptions{}
	if info.Size > 0 && (start != 0 || end != info.Size-1) {
		// SetRange takes inclusive bounds
		if err := opts.SetRange(start, end); err != nil {
			return nil, &RangeError{Start: start, End: end, Size: info.Size}
		}
	}

	obj, err := s.cl.GetObject(ctx, s.bucket, key, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}

	return NewObject(obj, info.Size, start, end, info.ContentType), nil
}

// Delete removes the object; S3 deletes of absent keys succeed
func (s *S3Store) Delete(ctx context.Context, ref string) error {
	key, err := s.key(ref)
	if err != nil {
		return nil
	}

	if err := s.cl.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil && !isNoSuchKey(err) {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	s.log.Debug("blob deleted", "ref", ref, "bucket", s.bucket)
	return nil
}

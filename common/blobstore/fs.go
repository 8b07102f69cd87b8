package blobstore

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/soundsphere/trackstore/common/logger"
)

// FSStore keeps blobs as files under a root directory, sharded by ref prefix
type FSStore struct {
	root string
	tmp  string
	log  *logger.Logger
}

// NewFSStore creates the root and staging directories if needed
func NewFSStore(root string, log *logger.Logger) (*FSStore, error) {
	tmp := filepath.Join(root, ".staging")
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob dir %s: %w", root, err)
	}

	log.Info("fs blob store ready", "root", root)
	return &FSStore{root: root, tmp: tmp, log: log}, nil
}

// path maps a ref to its file; malformed refs yield ErrNotFound
func (s *FSStore) path(ref string) (string, error) {
	id, err := uuid.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	name := id.String()
	return filepath.Join(s.root, name[0:2], name[2:4], name), nil
}

// Exists reports whether ref resolves to a stored file
func (s *FSStore) Exists(ctx context.Context, ref string) (bool, error) {
	p, err := s.path(ref)
	if err != nil {
		return false, nil
	}

	_, err = os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat blob %s: %w", ref, err)
	}
	return true, nil
}

// Put stages r in a temp file, fsyncs it and renames it into place
func (s *FSStore) Put(ctx context.Context, r io.Reader, contentType string) (PutResult, error) {
	ref := uuid.NewString()
	final, err := s.path(ref)
	if err != nil {
		return PutResult{}, err
	}

	f, err := os.CreateTemp(s.tmp, ref+".*")
	if err != nil {
		return PutResult{}, fmt.Errorf("failed to create staging file: %w", err)
	}
	staged := f.Name()
	committed := false
	defer func() {
		if !committed {
			_ = f.Close()
			_ = os.Remove(staged)
		}
	}()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), ctxReader{ctx: ctx, r: r})
	if err != nil {
		return PutResult{}, fmt.Errorf("failed to write blob: %w", err)
	}
	if err := f.Sync(); err != nil {
		return PutResult{}, fmt.Errorf("failed to sync blob: %w", err)
	}
	if err := f.Close(); err != nil {
		return PutResult{}, fmt.Errorf("failed to close blob: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return PutResult{}, fmt.Errorf("failed to create shard dir: %w", err)
	}
	if err := os.Rename(staged, final); err != nil {
		return PutResult{}, fmt.Errorf("failed to commit blob: %w", err)
	}
	committed = true

	res := PutResult{
		Ref:    ref,
		Size:   n,
		Digest: fmt.Sprintf("sha256:%x", h.Sum(nil)),
	}
	s.log.Debug("blob stored", "ref", ref, "size", n, "digest", res.Digest)
	return res, nil
}

// Open opens ref and positions the reader at the start of rng
func (s *FSStore) Open(ctx context.Context, ref string, rng *Range) (*Object, error) {
	p, err := s.path(ref)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open blob %s: %w", ref, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat blob %s: %w", ref, err)
	}

	start, end, err := Bounds(rng, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	if start > 0 {
		if _, err := f.Seek(start, io.SeekStart); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to seek blob %s: %w", ref, err)
		}
	}

	rc := limitedReadCloser{Reader: io.LimitReader(f, end-start+1), Closer: f}
	return NewObject(rc, info.Size(), start, end, ""), nil
}

// Delete removes ref; missing files are ignored
func (s *FSStore) Delete(ctx context.Context, ref string) error {
	p, err := s.path(ref)
	if err != nil {
		return nil
	}

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete blob %s: %w", ref, err)
	}
	s.log.Debug("blob deleted", "ref", ref)
	return nil
}

// Package blobstore keeps media bytes under opaque references. Every Put mints
// a new reference; stored blobs are never overwritten in place.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

var (
	// ErrNotFound is returned when a reference does not resolve to a blob
	ErrNotFound = errors.New("blob not found")

	// ErrInvalidRange is matched by *RangeError
	ErrInvalidRange = errors.New("invalid range")
)

// Store is durable, reference-addressed blob storage
type Store interface {
	// Exists reports whether ref resolves to a readable blob
	Exists(ctx context.Context, ref string) (bool, error)

	// Put streams r into storage. A failed Put leaves nothing visible.
	Put(ctx context.Context, r io.Reader, contentType string) (PutResult, error)

	// Open returns a reader over rng (nil reads the whole blob)
	Open(ctx context.Context, ref string, rng *Range) (*Object, error)

	// Delete removes ref; unknown refs are not an error
	Delete(ctx context.Context, ref string) error
}

// PutResult describes a newly stored blob
type PutResult struct {
	Ref    string
	Size   int64
	Digest string // sha256:<hex>
}

// Range is an inclusive byte range. End < 0 means "through the last byte".
type Range struct {
	Start int64
	End   int64
}

// RangeError reports a range that does not fit inside a blob of Size bytes
type RangeError struct {
	Start int64
	End   int64
	Size  int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("range %d-%d not satisfiable for %d bytes", e.Start, e.End, e.Size)
}

// Is lets errors.Is(err, ErrInvalidRange) match
func (e *RangeError) Is(target error) bool {
	return target == ErrInvalidRange
}

// Bounds resolves rng against a blob of size bytes.
// A nil range selects everything; for an empty blob that is start 0, end -1.
func Bounds(rng *Range, size int64) (start, end int64, err error) {
	if rng == nil {
		return 0, size - 1, nil
	}

	start, end = rng.Start, rng.End
	if end < 0 {
		end = size - 1
	}

	if start < 0 || start > size-1 || end > size-1 || start > end {
		return 0, 0, &RangeError{Start: rng.Start, End: rng.End, Size: size}
	}

	return start, end, nil
}

// Object is an open read over [Start, End] of a blob of Size bytes.
// Close releases the underlying handle exactly once.
type Object struct {
	Size        int64
	Start       int64
	End         int64
	ContentType string

	rc       io.ReadCloser
	once     sync.Once
	closeErr error
}

// NewObject wraps rc, which must yield exactly End-Start+1 bytes
func NewObject(rc io.ReadCloser, size, start, end int64, contentType string) *Object {
	return &Object{
		Size:        size,
		Start:       start,
		End:         end,
		ContentType: contentType,
		rc:          rc,
	}
}

// Length is the number of bytes this object will yield
func (o *Object) Length() int64 {
	return o.End - o.Start + 1
}

// Partial reports whether the object covers less than the whole blob
func (o *Object) Partial() bool {
	return o.Start != 0 || o.End != o.Size-1
}

func (o *Object) Read(p []byte) (int, error) {
	return o.rc.Read(p)
}

// Close releases the handle; repeated calls return the first result
func (o *Object) Close() error {
	o.once.Do(func() {
		o.closeErr = o.rc.Close()
	})
	return o.closeErr
}

// ctxReader stops a copy once ctx is done
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// limitedReadCloser bounds reads but closes the underlying handle
type limitedReadCloser struct {
	io.Reader
	io.Closer
}

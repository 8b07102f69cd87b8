package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/soundsphere/trackstore/cmd/trackstore/models"
	"github.com/soundsphere/trackstore/cmd/trackstore/service"
	"github.com/soundsphere/trackstore/common/blobstore"
	"github.com/soundsphere/trackstore/common/bootstrap"
	"github.com/soundsphere/trackstore/common/httprange"
)

// streamBufferSize is the chunk size used when copying blobs to clients
const streamBufferSize = 32 * 1024

// StreamHandler serves stored tracks with byte-range support
type StreamHandler struct {
	components *bootstrap.Components
	streams    *service.StreamService
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(components *bootstrap.Components, streams *service.StreamService) *StreamHandler {
	return &StreamHandler{
		components: components,
		streams:    streams,
	}
}

func (h *StreamHandler) fail(c echo.Context, err error) error {
	return respondError(c, h.components.Logger, h.components.Config.IsProduction(), err)
}

// rejectRange answers 416 with the total length of the blob
func (h *StreamHandler) rejectRange(c echo.Context, size int64, err error) error {
	c.Response().Header().Set("Content-Range", httprange.Unsatisfied(size))
	return h.fail(c, err)
}

// Stream sends a stored track, whole or by range
// GET /stream/:key
// HEAD /stream/:key
func (h *StreamHandler) Stream(c echo.Context) error {
	ctx := c.Request().Context()
	key := pathKey(c)
	if err := models.ValidateKey(key); err != nil {
		return h.fail(c, err)
	}
	log := h.components.Logger.WithContext(ctx).WithTrackKey(key)

	track, err := h.streams.Lookup(ctx, key)
	if err != nil {
		return h.fail(c, err)
	}

	rng, err := httprange.Parse(c.Request().Header.Get("Range"))
	if err != nil {
		// A missing blob answers 404 before any range complaint
		obj, openErr := h.streams.Open(ctx, track, nil)
		if openErr != nil {
			return h.fail(c, openErr)
		}
		_ = obj.Close()
		return h.rejectRange(c, obj.Size, fmt.Errorf("%w: %w", models.ErrInvalidRange, err))
	}

	obj, err := h.streams.Open(ctx, track, rng)
	if err != nil {
		var rerr *blobstore.RangeError
		if errors.As(err, &rerr) {
			return h.rejectRange(c, rerr.Size, err)
		}
		return h.fail(c, err)
	}
	defer obj.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = track.ContentType
	}
	if contentType == "" {
		contentType = models.DefaultContentType
	}

	header := c.Response().Header()
	header.Set(echo.HeaderContentType, contentType)
	header.Set("Accept-Ranges", "bytes")
	header.Set(echo.HeaderContentLength, strconv.FormatInt(obj.Length(), 10))

	status := http.StatusOK
	if rng != nil {
		status = http.StatusPartialContent
		header.Set("Content-Range", httprange.ContentRange(obj.Start, obj.End, obj.Size))
	}

	c.Response().WriteHeader(status)
	if c.Request().Method == http.MethodHead {
		return nil
	}

	written, err := copyBody(ctx, c.Response(), obj)
	switch {
	case err == nil:
		log.Debug("stream complete", "status", status, "bytes", written)
	case errors.Is(err, errClientGone), ctx.Err() != nil:
		log.Debug("client disconnected mid-stream", "bytes", written)
	default:
		// Headers are out; the only signal left is dropping the connection
		log.ErrorContext(ctx, "stream read failed", "blob_ref", track.BlobRef, "bytes", written, "error", err)
		panic(http.ErrAbortHandler)
	}

	return nil
}

var errClientGone = errors.New("client gone")

// copyBody copies src to w, telling write failures (client gone) apart
// from read failures (storage broken). It stops at the first chunk after
// ctx is done.
func copyBody(ctx context.Context, w io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, streamBufferSize)
	var written int64

	for {
		if err := ctx.Err(); err != nil {
			return written, errors.Join(errClientGone, err)
		}

		n, rerr := src.Read(buf)
		if n > 0 {
			m, werr := w.Write(buf[:n])
			written += int64(m)
			if werr != nil {
				return written, errors.Join(errClientGone, werr)
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

// Package httprange parses single byte-range Range headers.
package httprange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/soundsphere/trackstore/common/blobstore"
)

// ErrUnsupported is returned for Range values other than "bytes=A-B" or "bytes=A-"
var ErrUnsupported = errors.New("unsupported range")

const unit = "bytes="

// Parse turns a Range header into a blobstore.Range. An empty header
// returns nil. Only single ranges with an explicit start are accepted;
// suffix ranges ("bytes=-N") and multiple ranges are rejected.
// Bounds against the blob size are checked by the store.
func Parse(header string) (*blobstore.Range, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil
	}

	if !strings.HasPrefix(header, unit) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, header)
	}

	value := strings.TrimSpace(strings.TrimPrefix(header, unit))
	if strings.Contains(value, ",") {
		return nil, fmt.Errorf("%w: multiple ranges", ErrUnsupported)
	}

	startStr, endStr, ok := strings.Cut(value, "-")
	if !ok || startStr == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, header)
	}

	start, err := parseOffset(startStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, header)
	}

	if endStr == "" {
		return &blobstore.Range{Start: start, End: -1}, nil
	}

	end, err := parseOffset(endStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, header)
	}

	return &blobstore.Range{Start: start, End: end}, nil
}

// parseOffset accepts only plain decimal digits
func parseOffset(s string) (int64, error) {
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("not a decimal offset: %q", s)
		}
	}
	return strconv.ParseInt(s, 10, 64)
}

// ContentRange formats the Content-Range value for a satisfied range
func ContentRange(start, end, size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", start, end, size)
}

// Unsatisfied formats the Content-Range value sent with a 416
func Unsatisfied(size int64) string {
	return fmt.Sprintf("bytes */%d", size)
}

package blobstore

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBounds(t *testing.T) {
	tests := []struct {
		name      string
		rng       *Range
		size      int64
		wantStart int64
		wantEnd   int64
		wantErr   bool
	}{
		{name: "nil range selects all", rng: nil, size: 1000, wantStart: 0, wantEnd: 999},
		{name: "bounded", rng: &Range{Start: 0, End: 99}, size: 1000, wantStart: 0, wantEnd: 99},
		{name: "open ended", rng: &Range{Start: 990, End: -1}, size: 1000, wantStart: 990, wantEnd: 999},
		{name: "last byte", rng: &Range{Start: 999, End: 999}, size: 1000, wantStart: 999, wantEnd: 999},
		{name: "start past end of blob", rng: &Range{Start: 1000, End: -1}, size: 1000, wantErr: true},
		{name: "end past end of blob", rng: &Range{Start: 0, End: 1000}, size: 1000, wantErr: true},
		{name: "start after end", rng: &Range{Start: 50, End: 10}, size: 1000, wantErr: true},
		{name: "negative start", rng: &Range{Start: -1, End: 10}, size: 1000, wantErr: true},
		{name: "any range on empty blob", rng: &Range{Start: 0, End: -1}, size: 0, wantErr: true},
		{name: "nil range on empty blob", rng: nil, size: 0, wantStart: 0, wantEnd: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := Bounds(tt.rng, tt.size)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidRange))

				var rerr *RangeError
				require.True(t, errors.As(err, &rerr))
				assert.Equal(t, tt.size, rerr.Size)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

type countingCloser struct {
	io.Reader
	closes int
}

func (c *countingCloser) Close() error {
	c.closes++
	return nil
}

func TestObject_CloseOnce(t *testing.T) {
	rc := &countingCloser{Reader: strings.NewReader("abc")}
	obj := NewObject(rc, 3, 0, 2, "audio/mpeg")

	require.NoError(t, obj.Close())
	require.NoError(t, obj.Close())
	assert.Equal(t, 1, rc.closes)
	assert.Equal(t, int64(3), obj.Length())
	assert.False(t, obj.Partial())
}

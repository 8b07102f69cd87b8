package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/soundsphere/trackstore/cmd/trackstore/models"
)

// MemoryCatalog keeps tracks in process memory. For development and tests.
type MemoryCatalog struct {
	mu     sync.RWMutex
	tracks map[string]models.Track
}

// NewMemoryCatalog creates an empty catalog
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{tracks: make(map[string]models.Track)}
}

// Get retrieves a track by key
func (m *MemoryCatalog) Get(ctx context.Context, key string) (*models.Track, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tracks[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrTrackNotFound, key)
	}
	return &t, nil
}

// Insert adds a new track; an existing key yields models.ErrDuplicateKey
func (m *MemoryCatalog) Insert(ctx context.Context, t *models.Track) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tracks[t.Key]; exists {
		return fmt.Errorf("%w: %s", models.ErrDuplicateKey, t.Key)
	}
	m.tracks[t.Key] = *t
	return nil
}

// BatchExists returns summaries for the keys that are present
func (m *MemoryCatalog) BatchExists(ctx context.Context, keys []string) ([]models.TrackSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.TrackSummary, 0, len(keys))
	for _, k := range keys {
		if t, ok := m.tracks[k]; ok {
			out = append(out, t.Summary())
		}
	}
	return out, nil
}

// Delete removes a track and returns it
func (m *MemoryCatalog) Delete(ctx context.Context, key string) (*models.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tracks[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrTrackNotFound, key)
	}
	delete(m.tracks, key)
	return &t, nil
}

// Len returns the number of stored tracks
func (m *MemoryCatalog) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tracks)
}

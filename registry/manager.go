// Package registry tracks the set of live streams being segmented,
// owning one segmenter.Segmenter per stream and the source most
// recently attached to it through Reattach.
package registry

import (
	"fmt"
	"sync"

	"hls-fragmenter/segmenter"
)

// Stream is a live, registered segmenting pipeline.
type Stream struct {
	ID        int64
	Segmenter *segmenter.Segmenter
	source    segmenter.ByteSource
}

// Manager owns the registered streams for a running process. Safe for
// concurrent use.
type Manager struct {
	mu      sync.RWMutex
	streams map[int64]*Stream
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{streams: make(map[int64]*Stream)}
}

// Register creates and tracks a new Stream backed by seg. It is an
// error to register an ID that is already registered; callers must
// Unregister first.
func (m *Manager) Register(streamID int64, seg *segmenter.Segmenter) (*Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.streams[streamID]; exists {
		return nil, fmt.Errorf("registry: stream %d already registered", streamID)
	}

	s := &Stream{ID: streamID, Segmenter: seg}
	m.streams[streamID] = s
	return s, nil
}

// Unregister stops the stream's segmenter (if still registered) and
// drops it from the registry. A no-op if streamID isn't registered.
func (m *Manager) Unregister(streamID int64) {
	m.mu.Lock()
	s, exists := m.streams[streamID]
	if exists {
		delete(m.streams, streamID)
	}
	m.mu.Unlock()

	if exists {
		s.Segmenter.Stop()
	}
}

// Get returns the registered stream for streamID, if any.
func (m *Manager) Get(streamID int64) (*Stream, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.streams[streamID]
	return s, ok
}

// Reattach pipes a new source into an already-registered stream's
// segmenter, replacing whatever source was previously feeding it, and
// marks a discontinuity so the next segment is preceded by
// #EXT-X-DISCONTINUITY and a re-announced #EXT-X-MAP. The init
// segment is unaffected (still the one stored at stream start); the
// discontinuity marker is what tells players the timeline just
// jumped.
func (m *Manager) Reattach(streamID int64, newSource segmenter.ByteSource) error {
	m.mu.Lock()
	s, ok := m.streams[streamID]
	if ok {
		s.source = newSource
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("registry: stream %d not registered", streamID)
	}
	if err := s.Segmenter.MarkDiscontinuity(); err != nil {
		return fmt.Errorf("registry: stream %d: mark discontinuity: %w", streamID, err)
	}
	if err := s.Segmenter.Pipe(newSource); err != nil {
		return fmt.Errorf("registry: stream %d: pipe new source: %w", streamID, err)
	}
	return nil
}

// List returns the IDs of all currently registered streams.
func (m *Manager) List() []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int64, 0, len(m.streams))
	for id := range m.streams {
		ids = append(ids, id)
	}
	return ids
}

package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hls-fragmenter/segmenter"
	"hls-fragmenter/store"
)

func newTestSegmenter(t *testing.T, streamID int64) *segmenter.Segmenter {
	t.Helper()
	s, err := segmenter.New(segmenter.Config{
		StreamID:        streamID,
		SegmentDuration: time.Second,
		MaxSegments:     3,
	}, store.NewMemory(), nil, nil)
	require.NoError(t, err)
	return s
}

func TestManager_RegisterAndGet(t *testing.T) {
	m := NewManager()
	seg := newTestSegmenter(t, 1)

	_, err := m.Register(1, seg)
	require.NoError(t, err)

	got, ok := m.Get(1)
	require.True(t, ok)
	assert.Same(t, seg, got.Segmenter)
}

func TestManager_RegisterDuplicateFails(t *testing.T) {
	m := NewManager()
	_, err := m.Register(1, newTestSegmenter(t, 1))
	require.NoError(t, err)

	_, err = m.Register(1, newTestSegmenter(t, 1))
	assert.Error(t, err)
}

func TestManager_UnregisterStopsSegmenter(t *testing.T) {
	m := NewManager()
	seg := newTestSegmenter(t, 1)
	_, err := m.Register(1, seg)
	require.NoError(t, err)

	m.Unregister(1)
	_, ok := m.Get(1)
	assert.False(t, ok)
	assert.ErrorIs(t, seg.MarkDiscontinuity(), segmenter.ErrStopped)

	// re-registering the same ID now succeeds
	_, err = m.Register(1, newTestSegmenter(t, 1))
	assert.NoError(t, err)
}

func TestManager_ReattachUnknownStreamErrors(t *testing.T) {
	m := NewManager()
	err := m.Reattach(99, nil)
	assert.Error(t, err)
}

func TestManager_List(t *testing.T) {
	m := NewManager()
	_, _ = m.Register(1, newTestSegmenter(t, 1))
	_, _ = m.Register(2, newTestSegmenter(t, 2))

	ids := m.List()
	assert.ElementsMatch(t, []int64{1, 2}, ids)
}

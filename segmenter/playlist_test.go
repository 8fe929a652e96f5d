package segmenter

import (
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPlaylist_TagOrderAndMap(t *testing.T) {
	store := newFakeStore()
	clk := clock.NewMock()
	s, err := New(validConfig(store, clk), store, nil, nil)
	require.NoError(t, err)

	src := &fakeSource{}
	s.Pipe(src)
	src.onData(box("ftyp", nil))
	src.onData(box("moov", nil))
	src.onData(box("moof", []byte("f1")))
	src.onData(box("mdat", []byte("d1")))
	clk.Add(6 * time.Second)
	src.onData(box("moof", []byte("f2")))

	lines := strings.Split(strings.TrimRight(store.Playlist(), "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 7)
	assert.Equal(t, "#EXTM3U", lines[0])
	assert.Equal(t, "#EXT-X-VERSION:7", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "#EXT-X-TARGETDURATION:"))
	assert.Equal(t, "#EXT-X-MEDIA-SEQUENCE:0", lines[3])
	assert.Equal(t, `#EXT-X-MAP:URI="init.mp4"`, lines[4])
	assert.True(t, strings.HasPrefix(lines[5], "#EXTINF:"))
	assert.Equal(t, "segment0.m4s", lines[6])
}

func TestBuildPlaylist_TargetDurationFloorsAtConfiguredDuration(t *testing.T) {
	store := newFakeStore()
	clk := clock.NewMock()
	s, err := New(validConfig(store, clk), store, nil, nil)
	require.NoError(t, err)

	src := &fakeSource{}
	s.Pipe(src)
	src.onData(box("ftyp", nil))
	src.onData(box("moov", nil))
	src.onData(box("moof", []byte("f1")))
	src.onData(box("mdat", []byte("d1")))
	// advance less than the configured 6s target
	clk.Add(2 * time.Second)
	src.onData(box("moof", []byte("f2")))

	assert.Contains(t, store.Playlist(), "#EXT-X-TARGETDURATION:6")
}

func TestBuildPlaylist_DiscontinuityReannouncesMap(t *testing.T) {
	store := newFakeStore()
	clk := clock.NewMock()
	s, err := New(validConfig(store, clk), store, nil, nil)
	require.NoError(t, err)

	src := &fakeSource{}
	s.Pipe(src)
	src.onData(box("ftyp", nil))
	src.onData(box("moov", nil))

	// segment0: fast first segment, emitted as soon as the next moof arrives.
	src.onData(box("moof", []byte("f1")))
	src.onData(box("mdat", []byte("d1")))
	src.onData(box("moof", []byte("f2")))
	require.Equal(t, 1, store.SegmentCount())

	// MarkDiscontinuity flushes the fragment in flight as segment1 (no
	// discontinuity tag on segment1 itself) and arms the flag for segment2.
	src.onData(box("mdat", []byte("d2")))
	err = s.MarkDiscontinuity()
	require.NoError(t, err)
	require.Equal(t, 2, store.SegmentCount())
	require.NotContains(t, store.Playlist(), "#EXT-X-DISCONTINUITY")

	// segment2 is the first one emitted after MarkDiscontinuity, so it
	// carries the marker and a re-announced #EXT-X-MAP.
	src.onData(box("moof", []byte("f3")))
	src.onData(box("mdat", []byte("d3")))
	clk.Add(6 * time.Second)
	src.onData(box("moof", []byte("f4")))
	require.Equal(t, 3, store.SegmentCount())

	playlist := store.Playlist()
	idx := strings.Index(playlist, "#EXT-X-DISCONTINUITY")
	require.True(t, idx >= 0)
	rest := playlist[idx:]
	lines := strings.SplitN(rest, "\n", 4)
	assert.Equal(t, `#EXT-X-MAP:URI="init.mp4"`, lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "#EXTINF:"))
	assert.Equal(t, "segment2.m4s", strings.TrimRight(lines[3], "\n"))
}

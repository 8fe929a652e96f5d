package segmenter

import (
	"fmt"
	"math"
	"strings"
)

// buildPlaylist renders the current sliding window as HLS v7 playlist
// text. Must be called with s.mu held.
func (s *Segmenter) buildPlaylist() string {
	start := s.windowStartLocked()
	segDurSeconds := s.cfg.SegmentDuration.Seconds()

	maxDur := segDurSeconds
	for i := start; i < s.segmentIndex; i++ {
		d, ok := s.segmentDurations[i]
		if !ok {
			d = segDurSeconds
		}
		if d > maxDur {
			maxDur = d
		}
	}
	targetDuration := int(math.Ceil(maxDur))

	var b strings.Builder
	lines := []string{
		"#EXTM3U",
		"#EXT-X-VERSION:7",
		fmt.Sprintf("#EXT-X-TARGETDURATION:%d", targetDuration),
		fmt.Sprintf("#EXT-X-MEDIA-SEQUENCE:%d", start),
		`#EXT-X-MAP:URI="init.mp4"`,
	}

	for i := start; i < s.segmentIndex; i++ {
		if _, disc := s.discontinuityIndices[i]; disc {
			lines = append(lines, "#EXT-X-DISCONTINUITY", `#EXT-X-MAP:URI="init.mp4"`)
		}
		d, ok := s.segmentDurations[i]
		if !ok {
			d = segDurSeconds
		}
		lines = append(lines, fmt.Sprintf("#EXTINF:%.3f,", d), fmt.Sprintf("segment%d.m4s", i))
	}

	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// windowStartLocked returns max(0, segmentIndex-maxSegments). Must be
// called with s.mu held.
func (s *Segmenter) windowStartLocked() uint64 {
	max := uint64(s.cfg.MaxSegments)
	if s.segmentIndex > max {
		return s.segmentIndex - max
	}
	return 0
}

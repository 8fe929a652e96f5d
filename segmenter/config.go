package segmenter

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
)

// ErrInvalidConfig is returned by New when a Config is missing a
// required, positive setting.
var ErrInvalidConfig = errors.New("segmenter: invalid config")

// Config holds the externally-supplied configuration recognized by the
// segmenter.
type Config struct {
	// StreamID partitions the blob store.
	StreamID int64
	// SegmentDuration is the target media-segment duration and the
	// TARGETDURATION floor (hls.segmentDuration).
	SegmentDuration time.Duration
	// MaxSegments is the sliding playlist window size (hls.maxSegments).
	MaxSegments int
	// StartingSegmentIndex continues the segment counter after a hot
	// restart. Defaults to 0.
	StartingSegmentIndex uint64
	// PendingDiscontinuity forces a discontinuity marker before the
	// first segment this instance emits.
	PendingDiscontinuity bool
	// KeyframeDebug enables the moof keyframe classification pass and
	// its accumulated KeyframeStats.
	KeyframeDebug bool
	// Clock supplies monotonic time; defaults to clock.New() (wall
	// clock). Tests inject clock.NewMock().
	Clock clock.Clock
}

func (c Config) validate() error {
	if c.SegmentDuration <= 0 {
		return fmt.Errorf("SegmentDuration must be positive: %w", ErrInvalidConfig)
	}
	if c.MaxSegments <= 0 {
		return fmt.Errorf("MaxSegments must be positive: %w", ErrInvalidConfig)
	}
	return nil
}

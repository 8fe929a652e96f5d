package segmenter

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"hls-fragmenter/box"
	"hls-fragmenter/keyframe"
)

// state models a segmenter's lifecycle: it starts in statePreInit,
// moves to stateInit once it has seen ftyp+moov, and moves to
// stateStopped once Stop is called or the upstream source ends or
// errors. stateStopped is terminal.
type state int

const (
	statePreInit state = iota
	stateInit
	stateStopped
)

// Segmenter consumes an opaque fMP4 byte stream from a ByteSource,
// splits it into an init segment plus a sequence of media segments at
// moof boundaries, and maintains a rolling HLS v7 playlist in a
// BlobStore. One Segmenter serves exactly one stream.
type Segmenter struct {
	cfg   Config
	store BlobStore
	clock clock.Clock

	onStop  func()
	onError func(error)

	mu sync.Mutex

	state    state
	parser   *box.Parser
	source   ByteSource

	initBuf []byte // ftyp + moov, concatenated; stored as the init segment when moov arrives

	pendingFragment []byte // moof bytes buffered until the matching mdat arrives
	currentFragment []byte // moof+mdat for the segment being assembled

	segmentIndex         uint64
	firstSegmentEmitted  bool
	pendingDiscontinuity bool
	discontinuityIndices map[uint64]struct{}
	segmentDurations     map[uint64]float64
	segmentStartTime     time.Time

	keyframeDebug  bool
	stats          KeyframeStats
	lastKeyframeAt time.Time
	haveLastKeyframe bool
	segmentHasLeadingKeyframe bool
	segmentSawAnyBox          bool
}

// New constructs a Segmenter for the given stream configuration. store
// must not be nil. onStop is invoked at most once, when the segmenter
// transitions to stateStopped for any reason; onError is invoked before
// onStop whenever the transition was caused by a processing error. Both
// callbacks may be nil.
func New(cfg Config, store BlobStore, onStop func(), onError func(error)) (*Segmenter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("store must not be nil: %w", ErrInvalidConfig)
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	s := &Segmenter{
		cfg:                   cfg,
		store:                 store,
		clock:                 clk,
		onStop:                onStop,
		onError:               onError,
		state:                 statePreInit,
		segmentIndex:          cfg.StartingSegmentIndex,
		pendingDiscontinuity:  cfg.PendingDiscontinuity,
		discontinuityIndices:  make(map[uint64]struct{}),
		segmentDurations:      make(map[uint64]float64),
		keyframeDebug:         cfg.KeyframeDebug,
		segmentStartTime:      clk.Now(),
	}
	s.parser = box.New(s.onBox)
	return s, nil
}

// Pipe attaches source as the upstream byte supplier. Any previously
// attached source is unsubscribed first. Pipe returns ErrStopped
// without attaching source once the segmenter has stopped.
func (s *Segmenter) Pipe(source ByteSource) error {
	s.mu.Lock()
	if s.state == stateStopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.source != nil {
		s.source.Unsubscribe()
	}
	s.source = source
	s.mu.Unlock()

	source.Subscribe(s.handleData, s.handleEnd, s.handleError)
	return nil
}

// MarkDiscontinuity flushes whatever fragment is currently being
// assembled as a short segment (without a discontinuity marker, since
// the break is announced starting with the segment after it), then
// requests that the next segment emitted be preceded by
// #EXT-X-DISCONTINUITY and a re-announced #EXT-X-MAP. Returns
// ErrStopped once the segmenter has stopped; returns the flush's store
// error, if any, and stops the segmenter in that case.
func (s *Segmenter) MarkDiscontinuity() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateStopped {
		return ErrStopped
	}
	if len(s.currentFragment) > 0 {
		if err := s.outputSegment(); err != nil {
			s.terminateLocked(err)
			return err
		}
		s.firstSegmentEmitted = true
	}
	s.pendingDiscontinuity = true
	return nil
}

// Stop terminates the segmenter: the upstream source is unsubscribed,
// no further boxes are processed, and onStop fires exactly once. Stop
// is idempotent.
func (s *Segmenter) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminateLocked(nil)
}

// SegmentIndex returns the index that will be assigned to the next
// media segment emitted.
func (s *Segmenter) SegmentIndex() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.segmentIndex
}

// KeyframeStats returns a snapshot of the keyframe diagnostics
// accumulated so far. The zero value is returned when KeyframeDebug is
// disabled.
func (s *Segmenter) KeyframeStats() KeyframeStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Segmenter) handleData(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateStopped {
		return
	}
	if err := s.parser.Push(chunk); err != nil {
		s.terminateLocked(err)
	}
}

func (s *Segmenter) handleEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateStopped {
		return
	}
	s.parser.Flush()
	if len(s.currentFragment) > 0 {
		if err := s.outputSegment(); err != nil {
			s.terminateLocked(err)
			return
		}
	}
	s.terminateLocked(nil)
}

func (s *Segmenter) handleError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateStopped {
		return
	}
	s.terminateLocked(err)
}

// onBox is the parser callback; it runs with s.mu held (invoked only
// from handleData, which holds the lock for the duration of Push).
func (s *Segmenter) onBox(b box.Box) error {
	s.segmentSawAnyBox = true
	typ := b.TypeString()

	switch s.state {
	case statePreInit:
		switch typ {
		case "ftyp", "moov":
			s.initBuf = append(s.initBuf, b.Bytes...)
			if typ == "moov" {
				if err := s.store.StoreInitSegment(s.cfg.StreamID, s.initBuf); err != nil {
					return fmt.Errorf("store init segment: %w", err)
				}
				s.state = stateInit
				s.segmentStartTime = s.clock.Now()
			}
		default:
			// Anything before ftyp+moov is ignored rather than treated
			// as an error: some muxers emit a leading free/styp box.
		}
	case stateInit:
		switch typ {
		case "moof":
			if len(s.currentFragment) > 0 {
				elapsed := s.clock.Now().Sub(s.segmentStartTime)
				if !s.firstSegmentEmitted || elapsed >= s.cfg.SegmentDuration {
					if err := s.outputSegment(); err != nil {
						return err
					}
					s.firstSegmentEmitted = true
				}
			}
			s.pendingFragment = append([]byte(nil), b.Bytes...)
			s.classifyMoof(b.Bytes)
		case "mdat":
			if s.pendingFragment == nil {
				// mdat without a preceding moof in this session; drop it
				// rather than emit a malformed fragment.
				return nil
			}
			s.currentFragment = append(s.currentFragment, s.pendingFragment...)
			s.currentFragment = append(s.currentFragment, b.Bytes...)
			s.pendingFragment = nil
		case "moov":
			// A mid-stream moov (encoder reconfiguration) is logged
			// but does not replace the stored init segment (Open
			// Question, decided in DESIGN.md): the existing init
			// segment keeps serving this stream.
			log.Printf("segmenter: stream %d: ignoring mid-stream moov", s.cfg.StreamID)
		default:
		}
	case stateStopped:
	}
	return nil
}

// outputSegment finalizes currentFragment as a stored media segment and
// rolls the playlist window forward. Must be called with s.mu held.
func (s *Segmenter) outputSegment() error {
	index := s.segmentIndex
	discontinuity := s.pendingDiscontinuity
	s.pendingDiscontinuity = false

	duration := s.clock.Now().Sub(s.segmentStartTime).Seconds()
	if duration < 0.1 {
		duration = 0.1
	}

	name := fmt.Sprintf("segment%d.m4s", index)
	if err := s.store.StoreSegment(s.cfg.StreamID, name, s.currentFragment); err != nil {
		return fmt.Errorf("store segment %d: %w", index, err)
	}

	if discontinuity {
		s.discontinuityIndices[index] = struct{}{}
	}
	s.segmentDurations[index] = duration
	if !s.segmentHasLeadingKeyframe && s.keyframeDebug {
		s.stats.SegmentsWithoutLeadingKeyframe++
	}

	s.segmentIndex++
	s.currentFragment = nil
	s.segmentStartTime = s.clock.Now()
	s.segmentHasLeadingKeyframe = false
	s.pruneWindowLocked()

	playlist := s.buildPlaylist()
	if err := s.store.UpdatePlaylist(s.cfg.StreamID, playlist); err != nil {
		return fmt.Errorf("update playlist: %w", err)
	}
	return nil
}

// pruneWindowLocked discards bookkeeping for segments that have aged
// out of the sliding window. Must be called with s.mu held.
func (s *Segmenter) pruneWindowLocked() {
	start := s.windowStartLocked()
	for idx := range s.segmentDurations {
		if idx < start {
			delete(s.segmentDurations, idx)
			delete(s.discontinuityIndices, idx)
		}
	}
}

// classifyMoof runs keyframe classification on a moof when enabled and
// updates the running stats. Must be called with s.mu held.
func (s *Segmenter) classifyMoof(moofBytes []byte) {
	if !s.keyframeDebug {
		return
	}
	class := keyframe.DetectMoofKeyframe(moofBytes)
	now := s.clock.Now()

	switch class {
	case keyframe.Keyframe:
		s.stats.KeyframeCount++
		s.segmentHasLeadingKeyframe = s.segmentHasLeadingKeyframe || len(s.currentFragment) == 0
		if s.haveLastKeyframe {
			intervalMs := now.Sub(s.lastKeyframeAt).Seconds() * 1000
			if s.stats.MinKeyframeIntervalMs == 0 || intervalMs < s.stats.MinKeyframeIntervalMs {
				s.stats.MinKeyframeIntervalMs = intervalMs
			}
			if intervalMs > s.stats.MaxKeyframeIntervalMs {
				s.stats.MaxKeyframeIntervalMs = intervalMs
			}
			n := float64(s.stats.KeyframeCount - 2) // intervals already averaged
			s.stats.AverageKeyframeIntervalMs = (s.stats.AverageKeyframeIntervalMs*n + intervalMs) / (n + 1)
		}
		s.lastKeyframeAt = now
		s.haveLastKeyframe = true
	case keyframe.NonKeyframe:
		s.stats.NonKeyframeCount++
	default:
		s.stats.IndeterminateCount++
	}
}

// terminateLocked moves the segmenter to stateStopped, unsubscribes the
// source, and fires onError (if err != nil) then onStop, each at most
// once across the segmenter's lifetime. Must be called with s.mu held.
func (s *Segmenter) terminateLocked(err error) {
	if s.state == stateStopped {
		return
	}
	s.state = stateStopped
	if s.source != nil {
		s.source.Unsubscribe()
		s.source = nil
	}
	if err != nil && s.onError != nil {
		s.onError(err)
	}
	if s.onStop != nil {
		s.onStop()
	}
}

// Package models holds the data-transfer types used by the database
// and HTTP layers: stream registration and keyframe-diagnostics DTOs.
package models

import "time"

// StreamConfig is the persisted, externally-configurable description
// of one stream's segmenting parameters.
type StreamConfig struct {
	StreamID             int64     `json:"streamId"`
	Name                 string    `json:"name"`
	SegmentDurationMs    int64     `json:"segmentDurationMs"`
	MaxSegments          int       `json:"maxSegments"`
	KeyframeDebug        bool      `json:"keyframeDebug"`
	StartingSegmentIndex uint64    `json:"startingSegmentIndex"`
	PendingDiscontinuity bool      `json:"pendingDiscontinuity"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// StreamStatus is the lifecycle state of a registered stream. The
// registry does not track or set it.
type StreamStatus string

const (
	StatusPending StreamStatus = "pending"
	StatusLive    StreamStatus = "live"
	StatusStopped StreamStatus = "stopped"
)

// StreamInfo is a runtime snapshot shape: persisted configuration plus
// live segmenter state. No handler in the handlers package returns it.
type StreamInfo struct {
	Config        StreamConfig   `json:"config"`
	Status        StreamStatus   `json:"status"`
	SegmentIndex  uint64         `json:"segmentIndex"`
	KeyframeStats *KeyframeStats `json:"keyframeStats,omitempty"`
}

// KeyframeStats mirrors segmenter.KeyframeStats for JSON transport,
// keeping the models package free of a dependency on segmenter.
type KeyframeStats struct {
	KeyframeCount                 uint64  `json:"keyframeCount"`
	NonKeyframeCount               uint64  `json:"nonKeyframeCount"`
	IndeterminateCount             uint64  `json:"indeterminateCount"`
	MinKeyframeIntervalMs          float64 `json:"minKeyframeIntervalMs"`
	MaxKeyframeIntervalMs          float64 `json:"maxKeyframeIntervalMs"`
	AverageKeyframeIntervalMs      float64 `json:"averageKeyframeIntervalMs"`
	SegmentsWithoutLeadingKeyframe uint64  `json:"segmentsWithoutLeadingKeyframe"`
}

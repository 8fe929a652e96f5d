package segmenter

// BlobStore is the downstream collaborator that durably stores init
// segments, media segments, and playlist text. It is an external
// interface the segmenter consumes — not a behavior it implements — so
// concrete adapters (in-memory, S3-backed, ...) live outside this
// package (see the store package).
type BlobStore interface {
	// StoreInitSegment overwrites any prior init blob for streamID.
	StoreInitSegment(streamID int64, data []byte) error
	// StoreSegment is idempotent by name for a given streamID.
	StoreSegment(streamID int64, name string, data []byte) error
	// UpdatePlaylist overwrites the current playlist text for streamID.
	UpdatePlaylist(streamID int64, text string) error
}

// ByteSource is the upstream collaborator supplying the opaque MP4 byte
// stream. Segmenter.Pipe calls Unsubscribe on the previously attached
// source before calling Subscribe on a new one; callbacks are delivered
// serially so the segmenter never needs its own locking around a single
// source's events.
type ByteSource interface {
	Subscribe(onData func([]byte), onEnd func(), onError func(error))
	Unsubscribe()
}

// Package store provides BlobStore implementations that satisfy
// segmenter.BlobStore structurally, without importing the segmenter
// package: an in-process map-backed store for local development and
// tests, and an S3-backed store for production.
package store

import "fmt"

// keyPrefix returns the per-stream object-key prefix used by every
// implementation in this package, keeping layout consistent between
// Memory and S3.
func keyPrefix(streamID int64) string {
	return fmt.Sprintf("streams/%d", streamID)
}

func initKey(streamID int64) string {
	return fmt.Sprintf("%s/init.mp4", keyPrefix(streamID))
}

func segmentKey(streamID int64, name string) string {
	return fmt.Sprintf("%s/%s", keyPrefix(streamID), name)
}

func playlistKey(streamID int64) string {
	return fmt.Sprintf("%s/stream.m3u8", keyPrefix(streamID))
}

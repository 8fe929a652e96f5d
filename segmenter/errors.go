package segmenter

import "errors"

// ErrStopped is returned by operations attempted after Stop, or after
// the segmenter has self-terminated on error.
var ErrStopped = errors.New("segmenter: stopped")

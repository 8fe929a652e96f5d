// Package box implements a streaming, resyncing parser for top-level
// ISO/IEC 14496-12 boxes, plus a zero-copy iterator over a box's
// immediate children.
package box

// Box is a single top-level box recovered from the stream. Bytes covers
// the full box, header included, and is owned independently of any
// internal parser buffer: callers may retain it across subsequent Push
// calls.
type Box struct {
	Type  [4]byte
	Size  uint64
	Bytes []byte
}

// TypeString returns the box type as a 4-character ASCII string.
func (b Box) TypeString() string {
	return string(b.Type[:])
}

func typeAt(buf []byte, off int) [4]byte {
	var t [4]byte
	copy(t[:], buf[off:off+4])
	return t
}

package box

import "encoding/binary"

// Child describes one immediate child of a container box, as an
// offset/size pair into the parent's own byte slice — no copying.
type Child struct {
	Type   [4]byte
	Offset int
	Size   int
}

// Bytes returns the child's bytes, aliasing parent.
func (c Child) Bytes(parent []byte) []byte {
	return parent[c.Offset : c.Offset+c.Size]
}

// WalkChildren walks the immediate children of a box given its full
// bytes (header included), starting at offset 8. fn is called once per
// child in order; returning false stops the walk early.
//
// Unlike the top-level Parser, WalkChildren terminates rather than
// resyncs on a malformed child header — a bad child means the rest of
// the parent can no longer be reliably delimited.
func WalkChildren(parent []byte, fn func(c Child) bool) {
	off := 8
	for off+8 <= len(parent) {
		sizeField := binary.BigEndian.Uint32(parent[off : off+4])
		headerLen := 8
		size := uint64(sizeField)

		if sizeField == 0 {
			return
		}
		if sizeField == 1 {
			if off+16 > len(parent) {
				return
			}
			ext := binary.BigEndian.Uint64(parent[off+8 : off+16])
			if ext>>32 != 0 {
				return
			}
			size = ext
			headerLen = 16
		}
		if size < uint64(headerLen) {
			return
		}
		if off+int(size) > len(parent) {
			return
		}

		c := Child{Type: typeAt(parent, off+4), Offset: off, Size: int(size)}
		if !fn(c) {
			return
		}
		off += int(size)
	}
}

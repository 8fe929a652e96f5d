package box

import (
	"encoding/binary"
	"fmt"
)

// ParseCallbackError wraps an error raised by the onBox callback given to
// Parser. It is propagated out of Push, never swallowed.
type ParseCallbackError struct {
	Err error
}

func (e *ParseCallbackError) Error() string {
	return fmt.Sprintf("box: callback error: %v", e.Err)
}

func (e *ParseCallbackError) Unwrap() error {
	return e.Err
}

// Parser consumes arbitrary byte chunks and emits every complete
// top-level box it discovers, in source order, via onBox. It tolerates
// malformed or misaligned input by resyncing one byte at a time rather
// than failing the whole stream.
type Parser struct {
	onBox func(Box) error
	buf   []byte
}

// New creates a Parser that reports complete top-level boxes to onBox.
func New(onBox func(Box) error) *Parser {
	return &Parser{onBox: onBox}
}

// Push appends chunk to the parser's buffer and emits every complete box
// that becomes available. It returns a *ParseCallbackError if onBox
// returns an error; the box handed to the failing callback has already
// been consumed from the buffer, and any bytes after it stay buffered
// (the caller is expected to treat this as terminal and stop pushing).
func (p *Parser) Push(chunk []byte) error {
	p.buf = append(p.buf, chunk...)

	for {
		if len(p.buf) < 8 {
			return nil
		}

		sizeField := binary.BigEndian.Uint32(p.buf[0:4])
		headerLen := 8
		boxSize := uint64(sizeField)

		switch sizeField {
		case 1:
			if len(p.buf) < 16 {
				return nil // await more input before we can read the extended size
			}
			ext := binary.BigEndian.Uint64(p.buf[8:16])
			if ext>>32 != 0 {
				// unrealistic (>4GiB) extended size: resync rather than trust it
				p.resync()
				continue
			}
			boxSize = ext
			headerLen = 16
		case 0:
			// "to end of file" is invalid in a streaming context
			p.resync()
			continue
		}

		if boxSize < uint64(headerLen) {
			p.resync()
			continue
		}

		if uint64(len(p.buf)) < boxSize {
			return nil // await more input
		}

		emitted := make([]byte, boxSize)
		copy(emitted, p.buf[:boxSize])
		p.buf = p.buf[boxSize:]

		if err := p.onBox(Box{Type: typeAt(emitted, 4), Size: boxSize, Bytes: emitted}); err != nil {
			return &ParseCallbackError{Err: err}
		}
	}
}

// Flush discards any buffered, incomplete tail. Call on stream
// termination; there is nothing useful to recover from a partial box.
func (p *Parser) Flush() {
	p.buf = nil
}

func (p *Parser) resync() {
	p.buf = p.buf[1:]
}

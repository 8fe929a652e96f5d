// Package source provides ByteSource implementations: upstream
// suppliers of the opaque fMP4 byte stream a segmenter consumes. The
// read side is an io.Reader (typically an HTTP request body) and each
// source feeds a single subscriber, matching the one-segmenter-per-
// stream model.
package source

import (
	"errors"
	"io"
	"log"
	"sync"
)

// ErrAlreadySubscribed names the case of a source that already has an
// active subscriber. Reader.Subscribe does not return it: a second
// Subscribe is logged and ignored, and the first subscriber keeps
// receiving callbacks.
var ErrAlreadySubscribed = errors.New("source: already subscribed")

// Reader adapts an io.Reader (an HTTP chunked request body, a pipe, a
// file) into a segmenter.ByteSource. It pumps bytes on its own
// goroutine once subscribed, stopping on Unsubscribe, read error, or
// EOF.
type Reader struct {
	r         io.Reader
	chunkSize int

	mu         sync.Mutex
	onData     func([]byte)
	onEnd      func()
	onError    func(error)
	stopCh     chan struct{}
	subscribed bool
}

// NewReader wraps r. chunkSize bounds how much is read per pump
// iteration; callers that don't care can pass 0 to get a 64KiB
// default.
func NewReader(r io.Reader, chunkSize int) *Reader {
	if chunkSize <= 0 {
		chunkSize = 64 * 1024
	}
	return &Reader{r: r, chunkSize: chunkSize}
}

// Subscribe starts the pump goroutine. Subscribing a second time
// without an intervening Unsubscribe has no effect beyond logging;
// the original subscriber keeps receiving callbacks.
func (s *Reader) Subscribe(onData func([]byte), onEnd func(), onError func(error)) {
	s.mu.Lock()
	if s.subscribed {
		s.mu.Unlock()
		log.Printf("source: Subscribe called while already subscribed, ignoring")
		return
	}
	s.onData = onData
	s.onEnd = onEnd
	s.onError = onError
	s.stopCh = make(chan struct{})
	s.subscribed = true
	stopCh := s.stopCh
	s.mu.Unlock()

	go s.pump(stopCh)
}

// Unsubscribe stops the pump. Safe to call more than once and safe to
// call when never subscribed.
func (s *Reader) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.subscribed {
		return
	}
	s.subscribed = false
	close(s.stopCh)
}

func (s *Reader) pump(stopCh chan struct{}) {
	buf := make([]byte, s.chunkSize)
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		n, err := s.r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if !s.deliverData(stopCh, chunk) {
				return
			}
		}
		if err != nil {
			if err == io.EOF {
				s.deliverEnd(stopCh)
			} else {
				s.deliverError(stopCh, err)
			}
			return
		}
	}
}

// deliverData invokes onData unless a concurrent Unsubscribe raced it;
// returns false if the pump should stop.
func (s *Reader) deliverData(stopCh chan struct{}, chunk []byte) bool {
	select {
	case <-stopCh:
		return false
	default:
	}
	s.mu.Lock()
	onData := s.onData
	s.mu.Unlock()
	if onData != nil {
		onData(chunk)
	}
	return true
}

func (s *Reader) deliverEnd(stopCh chan struct{}) {
	select {
	case <-stopCh:
		return
	default:
	}
	s.mu.Lock()
	onEnd := s.onEnd
	s.subscribed = false
	s.mu.Unlock()
	if onEnd != nil {
		onEnd()
	}
}

func (s *Reader) deliverError(stopCh chan struct{}, err error) {
	select {
	case <-stopCh:
		return
	default:
	}
	s.mu.Lock()
	onError := s.onError
	s.subscribed = false
	s.mu.Unlock()
	if onError != nil {
		onError(err)
	}
}

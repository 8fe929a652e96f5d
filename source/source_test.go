package source

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errReader struct {
	err error
}

func (e errReader) Read(p []byte) (int, error) { return 0, e.err }

func TestReader_DeliversAllDataThenEnd(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("hello world")), 4)

	var mu sync.Mutex
	var got []byte
	ended := make(chan struct{})

	r.Subscribe(func(chunk []byte) {
		mu.Lock()
		got = append(got, chunk...)
		mu.Unlock()
	}, func() {
		close(ended)
	}, func(error) {
		t.Fatal("unexpected error callback")
	})

	select {
	case <-ended:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for end")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []byte("hello world"), got)
}

func TestReader_DeliversReadErrors(t *testing.T) {
	wantErr := errors.New("boom")
	r := NewReader(errReader{err: wantErr}, 16)

	errCh := make(chan error, 1)
	r.Subscribe(func([]byte) {}, func() {}, func(err error) {
		errCh <- err
	})

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, wantErr)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for error")
	}
}

func TestReader_UnsubscribeStopsDelivery(t *testing.T) {
	pr, pw := io.Pipe()
	r := NewReader(pr, 4)

	delivered := make(chan struct{}, 10)
	r.Subscribe(func([]byte) { delivered <- struct{}{} }, func() {}, func(error) {})

	pw.Write([]byte("abcd"))
	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first chunk")
	}

	r.Unsubscribe()
	pw.Write([]byte("efgh"))
	pw.Close()

	select {
	case <-delivered:
		t.Fatal("received data after Unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestReader_DoubleSubscribeIgnored(t *testing.T) {
	r := NewReader(bytes.NewReader(nil), 4)
	r.Subscribe(func([]byte) {}, func() {}, func(error) {})
	require.NotPanics(t, func() {
		r.Subscribe(func([]byte) {}, func() {}, func(error) {})
	})
}

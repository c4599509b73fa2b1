package audio

import (
	"bytes"
	"sync"
)

// PendingBuffer accumulates raw audio bytes between ingest flushes. Appends
// and drains are atomic with respect to each other, so a flush never observes
// a partially written payload.
type PendingBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewPendingBuffer creates an empty pending-audio buffer.
func NewPendingBuffer() *PendingBuffer {
	return &PendingBuffer{}
}

// Append adds audio bytes to the buffer.
func (b *PendingBuffer) Append(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(p)
}

// Drain returns all accumulated bytes and resets the buffer.
// Returns nil if the buffer is empty.
func (b *PendingBuffer) Drain() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.buf.Len() == 0 {
		return nil
	}
	out := make([]byte, b.buf.Len())
	copy(out, b.buf.Bytes())
	b.buf.Reset()
	return out
}

// Len returns the number of buffered bytes.
func (b *PendingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

package audio

import (
	"bytes"
	"testing"
)

func TestPendingBufferDrainResets(t *testing.T) {
	t.Parallel()

	b := NewPendingBuffer()
	b.Append([]byte{1, 2})
	b.Append([]byte{3})

	got := b.Drain()
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Fatalf("unexpected drained bytes: %v", got)
	}
	if b.Len() != 0 {
		t.Fatalf("drain must reset the buffer")
	}
	if b.Drain() != nil {
		t.Fatalf("draining an empty buffer must return nil")
	}
}

func TestPendingBufferDrainIsCopy(t *testing.T) {
	t.Parallel()

	b := NewPendingBuffer()
	b.Append([]byte{7, 8})
	got := b.Drain()

	b.Append([]byte{9})
	if !bytes.Equal(got, []byte{7, 8}) {
		t.Fatalf("drained bytes must not alias the buffer: %v", got)
	}
}

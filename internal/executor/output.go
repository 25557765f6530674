package executor

import (
	"bytes"
	"fmt"
	"sync"
)

// cappedBuffer keeps the first limit bytes written to it and counts the rest.
// Writes never fail, so the child process is not killed by a broken pipe once
// the limit is reached.
type cappedBuffer struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	limit   int
	dropped int
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.limit - b.buf.Len()
	if room <= 0 {
		b.dropped += len(p)
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.dropped += len(p) - room
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.dropped == 0 {
		return b.buf.String()
	}
	return fmt.Sprintf("%s\n... [truncated %d bytes]", b.buf.String(), b.dropped)
}

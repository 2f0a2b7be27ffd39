package runner

import (
	"sync"
)

const (
	defaultStdoutTailBytes = 1024 * 1024 // 1MB kept in memory per group
	defaultStderrTailBytes = 64 * 1024
)

// tailBuffer keeps only the last N bytes written to it. The engine's result
// line is the last line of its output, so the tail is all the classifier
// needs, and engines that log heavily do not grow the harness.
type tailBuffer struct {
	maxBytes int

	mu       sync.Mutex
	total    int64
	contents []byte
	overflow bool
}

func newTailBuffer(maxBytes int) *tailBuffer {
	if maxBytes <= 0 {
		maxBytes = defaultStdoutTailBytes
	}
	return &tailBuffer{
		maxBytes: maxBytes,
	}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total += int64(len(p))
	if len(p) >= b.maxBytes {
		b.contents = append(b.contents[:0], p[len(p)-b.maxBytes:]...)
		b.overflow = true
		return len(p), nil
	}

	// Append then trim front to keep the most recent bytes
	b.contents = append(b.contents, p...)
	if len(b.contents) > b.maxBytes {
		b.contents = append(b.contents[:0], b.contents[len(b.contents)-b.maxBytes:]...)
		b.overflow = true
	}
	return len(p), nil
}

func (b *tailBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := make([]byte, len(b.contents))
	copy(cp, b.contents)
	return cp
}

func (b *tailBuffer) TotalBytes() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

func (b *tailBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overflow || int64(len(b.contents)) < b.total
}

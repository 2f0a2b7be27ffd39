package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTailBuffer(t *testing.T) {
	b := newTailBuffer(8)

	_, _ = b.Write([]byte("abc"))
	assert.Equal(t, "abc", string(b.Bytes()))
	assert.False(t, b.Truncated())

	_, _ = b.Write([]byte("defghij"))
	assert.Equal(t, "cdefghij", string(b.Bytes()))
	assert.True(t, b.Truncated())
	assert.Equal(t, int64(10), b.TotalBytes())

	n, err := b.Write([]byte("0123456789XY"))
	assert.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.Equal(t, "456789XY", string(b.Bytes()))
}

func TestTailBufferDefaultSize(t *testing.T) {
	b := newTailBuffer(0)
	assert.Equal(t, defaultStdoutTailBytes, b.maxBytes)
}

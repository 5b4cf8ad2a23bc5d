package socketpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboundBufferExtendConsume(t *testing.T) {
	var b OutboundBuffer
	require.Equal(t, 0, b.Len())

	b.Extend([]byte("hello"))
	require.Equal(t, 5, b.Len())
	assert.Equal(t, []byte("hello"), b.Bytes())

	b.Consume(2)
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, []byte("llo"), b.Bytes())

	b.Extend([]byte("world"))
	assert.Equal(t, []byte("lloworld"), b.Bytes())

	b.Consume(8)
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Bytes())
}

func TestOutboundBufferCompaction(t *testing.T) {
	var b OutboundBuffer
	b.Extend([]byte("0123456789"))
	b.Consume(6) // head (6) * 2 >= len(10) triggers compaction

	assert.Equal(t, 4, b.Len())
	assert.Equal(t, []byte("6789"), b.Bytes())

	b.Extend([]byte("AB"))
	assert.Equal(t, []byte("6789AB"), b.Bytes())
}

func TestOutboundBufferExtendEmptyIsNoop(t *testing.T) {
	var b OutboundBuffer
	b.Extend(nil)
	assert.Equal(t, 0, b.Len())
}

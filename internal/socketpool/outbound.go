package socketpool

// OutboundBuffer is a byte FIFO backed by a plain slice with head-index
// trimming, the Go analogue of cSocketThreads::sSlot's AString outgoing
// buffer. It supports exactly two operations from the outside: Extend
// (called by a callback's OnDrain to append bytes) and Consume (called by
// the worker after a partial or full send to remove bytes from the head).
//
// The backing array is only compacted once its already-sent head reaches
// half the buffer, so a steady stream of small appends and removals
// amortizes to O(1) per byte instead of re-slicing on every send.
type OutboundBuffer struct {
	buf  []byte
	head int
}

// Extend appends tail to the buffer. Called by ClientCallback.OnDrain.
func (b *OutboundBuffer) Extend(tail []byte) {
	if len(tail) == 0 {
		return
	}
	b.buf = append(b.buf, tail...)
}

// Consume removes n bytes from the head of the buffer after a successful
// send. n must not exceed Len().
func (b *OutboundBuffer) Consume(n int) {
	if n <= 0 {
		return
	}
	b.head += n
	if b.head >= len(b.buf) {
		b.buf = b.buf[:0]
		b.head = 0
		return
	}
	// Reclaim space once the consumed head dominates the buffer so
	// repeated small consumes don't grow the backing array unbounded.
	if b.head*2 >= len(b.buf) {
		n := copy(b.buf, b.buf[b.head:])
		b.buf = b.buf[:n]
		b.head = 0
	}
}

// Len returns the number of unsent bytes currently queued.
func (b *OutboundBuffer) Len() int {
	return len(b.buf) - b.head
}

// Bytes returns the unsent portion of the buffer. The returned slice is
// only valid until the next Extend or Consume call.
func (b *OutboundBuffer) Bytes() []byte {
	return b.buf[b.head:]
}

// reset clears the buffer for reuse in a freshly inserted slot.
func (b *OutboundBuffer) reset() {
	b.buf = b.buf[:0]
	b.head = 0
}

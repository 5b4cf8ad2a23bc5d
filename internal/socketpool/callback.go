package socketpool

// ClientCallback is the narrow contract between the socket multiplexer and
// the upper-layer protocol handler that owns a connection's semantics. The
// pool holds a non-owning reference to a ClientCallback and never invokes
// a method on it after OnSocketClosed has returned.
//
// All three methods are invoked on a worker goroutine with the pool's lock
// held (see Pool.mu), so implementations must be quick and must never
// call back into a Pool method that would itself need the lock — that
// would deadlock. The recommended idiom, per the design notes, is for the
// callback to buffer work into its own queue and hand it to another
// goroutine for the actual heavy lifting.
type ClientCallback interface {
	// OnDataReceived delivers inbound bytes read from the socket. It is
	// called zero or more times, strictly in socket order, before
	// OnSocketClosed. The byte slice is only valid for the duration of the
	// call — implementations that need to keep the bytes must copy them.
	OnDataReceived(data []byte)

	// OnDrain is called when the socket is writable and the slot's
	// outbound buffer is empty. The callback appends zero or more bytes
	// to buf via buf.Extend. Leaving buf empty is the idiomatic way to
	// say "nothing to send right now."
	OnDrain(buf *OutboundBuffer)

	// OnSocketClosed is called exactly once per slot lifetime when the
	// socket closes gracefully or errors out. It is the slot's retirement
	// signal: no further callback method will be invoked for it once this
	// call returns. An explicit Pool.DetachBySocket/DetachByCallback is not
	// itself a close — it removes the slot without necessarily triggering
	// OnSocketClosed.
	OnSocketClosed()
}

package socketpool

// slot is the binding of one client socket, its callback, and its
// outbound byte buffer inside a Worker. Slots live in a fixed-size array
// indexed [0, numSlots) with no gaps; removal is always by swapping in the
// last used slot and decrementing the count (invariant 3), so a slot's
// index is not stable across any insert/remove/retire call.
type slot struct {
	socket   *RawSocket
	callback ClientCallback
	outbound OutboundBuffer
}

package socketpool

import "errors"

// ErrPoolClosed is returned by Attach, DetachBySocket, DetachByCallback,
// and NotifyWrite once Close has completed.
var ErrPoolClosed = errors.New("socketpool: pool is closed")

// ErrNotAttached is returned by DetachByCallback/DetachBySocket/NotifyWrite
// when the given callback or socket is not currently attached to any
// worker in the pool.
var ErrNotAttached = errors.New("socketpool: not attached")

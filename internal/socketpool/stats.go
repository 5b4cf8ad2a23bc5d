package socketpool

import "sync/atomic"

// Stats is a point-in-time snapshot of pool-wide counters, returned by
// Pool.Stats(). All fields are lifetime totals except ActiveSlots and
// Workers, which are instantaneous.
type Stats struct {
	Workers      int
	ActiveSlots  int
	Attached     int64
	Detached     int64
	ClosedByPeer int64
}

// poolStats holds the lock-free counters a Pool updates on its hot paths,
// mirroring the teacher's atomic.Int32/atomic.Bool fields used for
// observability without touching the mutex.
type poolStats struct {
	attached     atomic.Int64
	detached     atomic.Int64
	closedByPeer atomic.Int64
}

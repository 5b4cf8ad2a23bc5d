// Package echocallback provides a minimal socketpool.ClientCallback that
// echoes every received byte back to its sender. It exists to exercise
// the socketpool package end to end in cmd/socketserver, standing in for the upper-layer protocol handler the real game server
// would attach in its place.
package echocallback

import (
	"log/slog"

	"github.com/stpinker/mcserver-go/internal/socketpool"
)

// Callback echoes received bytes back to the client that sent them. Its
// methods are invoked on the owning worker's goroutine with the pool
// lock held, so it must never call back into the Pool.
type Callback struct {
	logger *slog.Logger
	remote string

	pending []byte
	closed  bool
}

// New returns a Callback that will echo everything it receives back to
// remote.
func New(logger *slog.Logger, remote string) *Callback {
	return &Callback{logger: logger, remote: remote}
}

// OnDataReceived queues data to be written straight back to the sender.
// It must not call back into Pool: this method runs on the owning
// worker's goroutine with the pool lock already held, and the worker's
// own run loop services writes in the very same pass right after reads,
// so the queued bytes go out without needing an external wakeup.
func (c *Callback) OnDataReceived(data []byte) {
	c.pending = append(c.pending, data...)
}

// OnDrain hands any buffered bytes to the worker's outbound buffer.
func (c *Callback) OnDrain(buf *socketpool.OutboundBuffer) {
	if len(c.pending) == 0 {
		return
	}
	buf.Extend(c.pending)
	c.pending = c.pending[:0]
}

// OnSocketClosed logs the disconnect. Called exactly once per connection.
func (c *Callback) OnSocketClosed() {
	c.closed = true
	c.logger.Info("client disconnected", "remote", c.remote)
}

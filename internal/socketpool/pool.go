package socketpool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Pool owns a growing list of Workers and is the only thing upper layers
// talk to. It is the direct port of cSocketThreads, down to the single
// mutex serializing every slot-table read and mutation across every
// worker, including from inside each worker's own readiness loop.
type Pool struct {
	mu      sync.Mutex
	logger  *slog.Logger
	stats   poolStats
	workers []*Worker

	closed bool
}

// NewPool constructs a pool with no running workers. Workers are created
// lazily by Attach, exactly as cSocketThreads::StartThread spins up a new
// cSocketThread only when every existing one is full.
func NewPool(logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{logger: logger}
}

// Attach binds socket to callback on some worker with a free slot,
// starting a new worker if every existing one is full. socket and
// callback, once attached, are only ever touched again from that
// worker's own goroutine (with the pool lock held) until detach.
func (p *Pool) Attach(socket *RawSocket, callback ClientCallback) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}

	for _, w := range p.workers {
		if w.valid() && w.hasEmptySlot() {
			w.insert(socket, callback)
			p.stats.attached.Add(1)
			return nil
		}
	}

	w := newWorker(&p.mu, p.logger.With("worker", len(p.workers)), &p.stats)
	// start() dials/accepts the control pair while p.mu is held: the
	// handshake only touches the new worker's own probe/wake fields, not
	// the slot table, so it never contends with any running worker's
	// locked sections.
	if err := w.start(); err != nil {
		p.logger.Error("starting worker failed", "error", err)
		socket.Close()
		return fmt.Errorf("starting worker: %w", err)
	}
	w.insert(socket, callback)
	p.workers = append(p.workers, w)
	p.stats.attached.Add(1)
	p.logger.Info("worker started", "workers", len(p.workers))
	return nil
}

// DetachByCallback removes the slot owned by callback from whichever
// worker holds it, without invoking OnSocketClosed. It returns
// ErrNotAttached if callback is not currently attached.
func (p *Pool) DetachByCallback(callback ClientCallback) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	for _, w := range p.workers {
		if w.removeByCallback(callback) {
			p.stats.detached.Add(1)
			return nil
		}
	}
	return ErrNotAttached
}

// DetachBySocket removes the slot owned by socket from whichever worker
// holds it, without invoking OnSocketClosed.
func (p *Pool) DetachBySocket(socket *RawSocket) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	for _, w := range p.workers {
		if w.removeBySocket(socket) {
			p.stats.detached.Add(1)
			return nil
		}
	}
	return ErrNotAttached
}

// NotifyWrite signals the worker owning callback's slot to attempt a
// write on its next readiness pass, coalescing with any other pending
// signal into a single wakeup. It returns ErrNotAttached if callback is
// not currently attached to any worker.
func (p *Pool) NotifyWrite(callback ClientCallback) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	for _, w := range p.workers {
		if w.notifyWrite(callback) {
			return nil
		}
	}
	return ErrNotAttached
}

// Stats returns a snapshot of pool-wide counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	active := 0
	workers := len(p.workers)
	for _, w := range p.workers {
		active += w.numSlots
	}
	p.mu.Unlock()

	return Stats{
		Workers:      workers,
		ActiveSlots:  active,
		Attached:     p.stats.attached.Load(),
		Detached:     p.stats.detached.Load(),
		ClosedByPeer: p.stats.closedByPeer.Load(),
	}
}

// Close requests every worker to shut down and waits for all of them to
// exit, or until ctx is done. After Close returns, all attached sockets
// have been closed and their callbacks' OnSocketClosed invoked; further
// calls to Attach/DetachBySocket/DetachByCallback/NotifyWrite return
// ErrPoolClosed.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	workers := p.workers
	for _, w := range workers {
		w.requestShutdown()
	}
	p.mu.Unlock()

	group, groupCtx := errgroup.WithContext(ctx)
	for _, w := range workers {
		w := w
		group.Go(func() error {
			select {
			case <-w.done:
				return nil
			case <-groupCtx.Done():
				return groupCtx.Err()
			}
		})
	}
	if err := group.Wait(); err != nil {
		return fmt.Errorf("waiting for workers to stop: %w", err)
	}
	p.logger.Info("pool closed", "workers", len(workers))
	return nil
}

package socketpool

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Worker is one I/O thread servicing up to SlotsPerWorker client sockets
// with a single blocking select() wait, plus its control-pair "probe" end
// for cross-thread wakeup. It is the direct port of cSocketThreads::
// cSocketThread.
//
// Every exported-looking method below (hasEmptySlot, insert, removeBy*,
// notifyWrite) assumes the caller already holds the shared lock — they
// are only ever called from Pool's locked methods, mirroring the original
// comment "All these methods assume parent's m_CS is locked".
type Worker struct {
	// lock is the Pool's own mutex, captured by shared reference at
	// construction time instead of a raw back-pointer to the Pool.
	lock   *sync.Mutex
	logger *slog.Logger
	stats  *poolStats

	probe *RawSocket // registered in the read set, drained each wakeup
	wake  *RawSocket // written to by Pool operations to unblock select()

	slots    [SlotsPerWorker]slot
	numSlots int

	shuttingDown atomic.Bool
	done         chan struct{}
}

func newWorker(lock *sync.Mutex, logger *slog.Logger, stats *poolStats) *Worker {
	return &Worker{
		lock:   lock,
		logger: logger,
		stats:  stats,
		done:   make(chan struct{}),
	}
}

// listenControlPair opens the loopback listener a Worker's control pair
// handshakes through. It is a variable rather than a direct call to Listen
// so tests can inject a listen failure to exercise start()'s cleanup path
// without needing to actually exhaust file descriptors.
var listenControlPair = func() (*Listener, error) {
	return Listen(0, 1)
}

// start performs the three-step control-pair handshake and, only once both
// ends are confirmed good, launches the worker goroutine. It mirrors
// cSocketThread::Start()/Execute(): a loopback listener is opened, the
// "probe" end connects in, and the listener's accept of that connection
// becomes the "wake" end.
//
// The connect and accept happen sequentially rather than concurrently: a
// loopback connect() completes as soon as the kernel finishes the TCP
// handshake and queues the connection on the listen backlog, independent
// of whether anyone has called accept() yet, so there is no need to run
// either half in its own goroutine to avoid a deadlock. Keeping both
// steps on the same goroutine that calls start() means an error on
// either side is caught before run() ever starts, so a failed handshake
// can never leave a goroutine blocked forever in unix.Select on a wake
// end nobody can signal.
func (w *Worker) start() error {
	ln, err := listenControlPair()
	if err != nil {
		return fmt.Errorf("creating control listener: %w", err)
	}
	defer ln.Close()

	probe, err := dialLoopback(ln.Port())
	if err != nil {
		return fmt.Errorf("connecting control socket: %w", err)
	}

	wake, err := ln.Accept()
	if err != nil {
		probe.Close()
		return fmt.Errorf("accepting control connection: %w", err)
	}

	w.probe = probe
	w.wake = wake
	go w.run()
	return nil
}

func (w *Worker) valid() bool {
	return w.wake != nil && w.wake.Valid()
}

func (w *Worker) hasEmptySlot() bool {
	return w.numSlots < SlotsPerWorker
}

func (w *Worker) isEmpty() bool {
	return w.numSlots == 0
}

// insert binds socket+callback into the next free slot and signals the
// worker to rebuild its readiness set.
func (w *Worker) insert(socket *RawSocket, callback ClientCallback) {
	s := &w.slots[w.numSlots]
	s.socket = socket
	s.callback = callback
	s.outbound.reset()
	w.numSlots++
	w.signal(controlByteAttach)
}

func (w *Worker) removeByCallback(callback ClientCallback) bool {
	for i := w.numSlots - 1; i >= 0; i-- {
		if w.slots[i].callback != callback {
			continue
		}
		w.slots[i] = w.slots[w.numSlots-1]
		w.numSlots--
		w.signal(controlByteRemove)
		return true
	}
	return false
}

func (w *Worker) removeBySocket(socket *RawSocket) bool {
	for i := w.numSlots - 1; i >= 0; i-- {
		if w.slots[i].socket != socket {
			continue
		}
		w.slots[i] = w.slots[w.numSlots-1]
		w.numSlots--
		w.signal(controlByteRemove)
		return true
	}
	return false
}

func (w *Worker) hasClient(callback ClientCallback) bool {
	for i := w.numSlots - 1; i >= 0; i-- {
		if w.slots[i].callback == callback {
			return true
		}
	}
	return false
}

func (w *Worker) notifyWrite(callback ClientCallback) bool {
	if !w.hasClient(callback) {
		return false
	}
	w.signal(controlByteWriteWanted)
	return true
}

// signal writes one control byte to the wake end. Callers already hold
// the pool lock, matching the policy that the wake end is only ever
// written to while the lock is held.
func (w *Worker) signal(b byte) {
	if _, err := w.wake.Send([]byte{b}); err != nil {
		w.logger.Warn("signaling worker failed", "error", err)
	}
}

// requestShutdown marks the worker for termination and wakes its blocked
// select() so it notices on its next loop check, rather than waiting for
// unrelated socket activity. Called by Pool.Close with the lock held.
func (w *Worker) requestShutdown() {
	w.shuttingDown.Store(true)
	w.signal(controlByteRemove)
}

// run is the worker's main loop: build read set, block for readiness,
// service reads, build write set, poll writability, service writes,
// retire closed slots. Mirrors cSocketThread::Execute almost line for
// line.
func (w *Worker) run() {
	defer close(w.done)
	defer w.probe.Close()
	defer w.wake.Close()
	defer w.closeAllSlots()

	for !w.shuttingDown.Load() {
		var readSet unix.FdSet
		highest := w.prepareSet(&readSet)

		if err := unix.Select(highest+1, &readSet, nil, nil, nil); err != nil {
			if err == unix.EINTR {
				continue
			}
			w.logger.Warn("select(read) failed", "error", err)
			continue
		}

		w.serviceReads(&readSet)

		var writeSet unix.FdSet
		highest = w.prepareSet(&writeSet)
		zero := unix.Timeval{}
		if err := unix.Select(highest+1, nil, &writeSet, nil, &zero); err != nil {
			if err == unix.EINTR {
				continue
			}
			w.logger.Warn("select(write) failed", "error", err)
			continue
		}

		w.serviceWrites(&writeSet)
		w.retireClosedSlots()
	}
}

// prepareSet zeroes set, adds the probe socket, then every valid slot
// socket, returning the highest descriptor number seen — select()'s nfds
// argument is that value plus one. Mirrors cSocketThread::PrepareSet,
// including its quirk of adding the control socket to both the read and
// the write sets even though nothing is ever written to it from outside
// the worker's own control-pair handshake.
func (w *Worker) prepareSet(set *unix.FdSet) int {
	fdZero(set)
	fdSetAdd(set, w.probe.FD())
	highest := w.probe.FD()

	w.lock.Lock()
	defer w.lock.Unlock()
	for i := 0; i < w.numSlots; i++ {
		s := &w.slots[i]
		if !s.socket.Valid() {
			continue
		}
		fdSetAdd(set, s.socket.FD())
		if s.socket.FD() > highest {
			highest = s.socket.FD()
		}
	}
	return highest
}

// serviceReads drains the control socket if it woke us and delivers
// OnDataReceived/OnSocketClosed for every readable slot.
func (w *Worker) serviceReads(set *unix.FdSet) {
	if fdIsSet(set, w.probe.FD()) {
		var dummy [ControlDrainSize]byte
		if n, err := w.probe.Recv(dummy[:]); err == nil && n > 0 {
			w.logger.Debug("control socket drained", "bytes", n, "codes", string(dummy[:n]))
		}
	}

	w.lock.Lock()
	defer w.lock.Unlock()
	for i := 0; i < w.numSlots; i++ {
		s := &w.slots[i]
		if !s.socket.Valid() || !fdIsSet(set, s.socket.FD()) {
			continue
		}

		var buf [ReadBufferSize]byte
		n, err := s.socket.Recv(buf[:])
		switch {
		case err != nil || n == 0:
			w.stats.closedByPeer.Add(1)
			w.closeSlot(s)
		default:
			s.callback.OnDataReceived(buf[:n])
		}
	}
}

// serviceWrites drains the outbound buffer (pulling more from OnDrain when
// empty) for every writable slot. It deliberately stops at the first send
// error in the pass, matching cSocketThread::WriteToSockets.
func (w *Worker) serviceWrites(set *unix.FdSet) {
	w.lock.Lock()
	defer w.lock.Unlock()
	for i := 0; i < w.numSlots; i++ {
		s := &w.slots[i]
		if !s.socket.Valid() || !fdIsSet(set, s.socket.FD()) {
			continue
		}

		if s.outbound.Len() == 0 {
			s.callback.OnDrain(&s.outbound)
			if s.outbound.Len() == 0 {
				continue
			}
		}

		n, err := s.socket.Send(s.outbound.Bytes())
		if err != nil {
			w.logger.Warn("write to client failed, disconnecting", "remote", s.socket.IP(), "error", err)
			w.stats.closedByPeer.Add(1)
			w.closeSlot(s)
			return
		}
		s.outbound.Consume(n)

		// No self-signal here even if bytes remain queued: a slow reader
		// that keeps the socket persistently half-writable would spin the
		// loop at 100% CPU. Residual bytes flush on the next natural
		// wakeup — any readable socket, or any external attach/detach/
		// notify-write.
	}
}

// retireClosedSlots compacts every invalidated slot out of the array by
// swapping it with the last used slot, mirroring
// cSocketThread::RemoveClosedSockets.
func (w *Worker) retireClosedSlots() {
	w.lock.Lock()
	defer w.lock.Unlock()
	for i := w.numSlots - 1; i >= 0; i-- {
		if w.slots[i].socket.Valid() {
			continue
		}
		w.slots[i] = w.slots[w.numSlots-1]
		w.numSlots--
	}
}

// closeAllSlots runs once the worker's loop exits for shutdown, closing
// every socket still attached and delivering its OnSocketClosed so Pool
// can guarantee the callback fires exactly once per slot lifetime even
// when the pool itself is torn down.
func (w *Worker) closeAllSlots() {
	w.lock.Lock()
	defer w.lock.Unlock()
	for i := 0; i < w.numSlots; i++ {
		w.closeSlot(&w.slots[i])
	}
	w.numSlots = 0
}

// closeSlot closes the socket and delivers the one allowed OnSocketClosed
// call. Always invoked with the lock already held, so the callback runs
// with pool.lock held per the concurrency model.
func (w *Worker) closeSlot(s *slot) {
	s.socket.Close()
	cb := s.callback
	s.callback = nil
	cb.OnSocketClosed()
}

package socketpool

// SlotsPerWorker is the reference MAX_SLOTS value from cSocketThreads: the
// number of client sockets one worker thread will multiplex before the
// pool spins up another worker. It must stay comfortably under the
// platform's select() descriptor limit (1024 on Linux) to leave room for
// the worker's own control socket.
const SlotsPerWorker = 63

// ReadBufferSize is the size of the stack buffer each worker uses for a
// single recv() call per readable slot per loop iteration.
const ReadBufferSize = 1024

// ControlDrainSize is how many bytes a worker drains from its control
// socket's probe end per wakeup. Draining more than one notification byte
// at a time is what makes the wakeup coalescing: many external
// attach/detach/notify-write calls collapse into a single loop iteration.
const ControlDrainSize = 128

// Control-byte codes written to a worker's wake socket. The worker drains
// and discards these; they carry no dispatch logic, only debuggability —
// see the Open Question note in DESIGN.md.
const (
	controlByteAttach      byte = 'a'
	controlByteRemove      byte = 'r'
	controlByteWriteWanted byte = 'q'
)

// Package socketpool implements the socket multiplexing core of the game
// server: a small, bounded pool of I/O worker threads that each multiplex
// up to SlotsPerWorker client sockets through a single blocking readiness
// wait, bridging every connection to an upper-layer protocol handler
// through the ClientCallback contract.
//
// The package deliberately knows nothing about any wire protocol, game
// state, or encryption — those are the caller's concern, reached only
// through ClientCallback. See cSocketThreads in the original MCServer
// source for the C++ design this package is a direct port of.
package socketpool

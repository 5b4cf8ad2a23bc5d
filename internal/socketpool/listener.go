package socketpool

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Listener is a raw TCP listening socket. It exists so both client
// connections and a Worker's control pair go through the same small,
// direct syscall surface instead of mixing Go's net.Listener/net.Conn
// (with its own runtime poller) into a component that is, by design, its
// own readiness multiplexer.
type Listener struct {
	fd   int
	port int
}

// Listen opens a TCP listener on the loopback interface, binding to port
// 0 (any free port) when port is 0 — the same "any free port is okay" idiom
// cSocketThread::Start uses for its control socket. This is the constructor
// a Worker's own control-pair handshake uses; it is deliberately
// loopback-only, since the control pair never needs to be reachable from
// outside the process. Callers that need to accept real client
// connections on a configured address should use ListenAddr instead.
func Listen(port int, backlog int) (*Listener, error) {
	return ListenAddr("127.0.0.1", port, backlog)
}

// ListenAddr opens a TCP listener bound to address:port, parsing address
// the way the teacher's gslistener/gameserver servers do when they build
// a listen address out of cfg.BindAddress. "0.0.0.0" binds to every
// interface, matching config.SocketPool's default.
func ListenAddr(address string, port int, backlog int) (*Listener, error) {
	ip := net.ParseIP(address)
	if ip == nil {
		return nil, fmt.Errorf("invalid bind address %q", address)
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("bind address %q is not an IPv4 address", address)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("creating listen socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("setting SO_REUSEADDR: %w", err)
	}

	addr := &unix.SockaddrInet4{Port: port, Addr: [4]byte{ip4[0], ip4[1], ip4[2], ip4[3]}}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("binding listen socket to %s:%d: %w", address, port, err)
	}

	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listening: %w", err)
	}

	sa, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("reading assigned port: %w", err)
	}
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		unix.Close(fd)
		return nil, fmt.Errorf("unexpected sockaddr type %T for listener", sa)
	}

	return &Listener{fd: fd, port: in4.Port}, nil
}

// Port returns the port the listener is bound to.
func (l *Listener) Port() int { return l.port }

// Accept blocks until a connection arrives and returns it as a RawSocket.
func (l *Listener) Accept() (*RawSocket, error) {
	nfd, _, err := unix.Accept(l.fd)
	if err != nil {
		return nil, fmt.Errorf("accepting connection: %w", err)
	}
	return newRawSocket(nfd), nil
}

// Close shuts down and closes the listening socket. The shutdown makes an
// Accept blocked on it in another goroutine return with an error.
func (l *Listener) Close() error {
	unix.Shutdown(l.fd, unix.SHUT_RDWR)
	return unix.Close(l.fd)
}

// dialLoopback connects to 127.0.0.1:port, the connecting half of the
// control-pair handshake (cSocketThread::Execute's connect()). Worker.start
// calls it on its own goroutine, before the worker goroutine is launched.
func dialLoopback(port int) (*RawSocket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("creating dial socket: %w", err)
	}
	addr := &unix.SockaddrInet4{Port: port, Addr: [4]byte{127, 0, 0, 1}}
	if err := unix.Connect(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("connecting to loopback port %d: %w", port, err)
	}
	return newRawSocket(fd), nil
}

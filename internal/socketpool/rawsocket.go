package socketpool

import (
	"net"

	"golang.org/x/sys/unix"
)

// RawSocket wraps a connected unix socket file descriptor for use with the
// pool's own select()-based readiness loop. Sockets stay in blocking mode,
// exactly like cSocket in the original: select() is solely responsible for
// telling a worker when a Recv/Send call won't block, so there is no need
// to juggle EAGAIN the way a non-blocking, edge-triggered design would.
type RawSocket struct {
	fd int
	ip string
}

func newRawSocket(fd int) *RawSocket {
	ip := ""
	if sa, err := unix.Getpeername(fd); err == nil {
		ip = sockaddrIP(sa)
	}
	return &RawSocket{fd: fd, ip: ip}
}

func sockaddrIP(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.IP(a.Addr[:]).String()
	case *unix.SockaddrInet6:
		return net.IP(a.Addr[:]).String()
	default:
		return ""
	}
}

// FD returns the underlying file descriptor. Only meant for building the
// worker's select() sets; callers outside this package have no business
// reading or writing it directly.
func (s *RawSocket) FD() int { return s.fd }

// IP returns the remote peer's address, or "" if it couldn't be resolved.
func (s *RawSocket) IP() string { return s.ip }

// Recv reads into buf. Returning (0, nil) means the peer closed the
// connection gracefully, matching cSocket::Receive's 0-means-EOF contract.
func (s *RawSocket) Recv(buf []byte) (int, error) {
	return unix.Read(s.fd, buf)
}

// Send writes buf and returns how many bytes the kernel accepted.
func (s *RawSocket) Send(buf []byte) (int, error) {
	return unix.Write(s.fd, buf)
}

// Close closes the descriptor. Safe to call more than once.
func (s *RawSocket) Close() error {
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	return err
}

// Valid reports whether the socket has not yet been closed.
func (s *RawSocket) Valid() bool {
	return s.fd >= 0
}

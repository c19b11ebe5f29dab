package netpoll

import (
	"context"
	"errors"

	"golang.org/x/sys/unix"
)

// Socket is a non-blocking stream socket. Read and Write never block; a socket
// that cannot make progress returns ErrWouldBlock.
type Socket struct {
	fd     int
	remote Addr
	closed bool
}

func newSocket(fd int, remote Addr) *Socket {
	return &Socket{fd: fd, remote: remote}
}

func (s *Socket) Fd() int { return s.fd }

func (s *Socket) RemoteAddr() Addr { return s.remote }

// Read reads at most len(p) bytes. A zero-byte read is reported as
// ErrPeerClosed.
func (s *Socket) Read(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	for {
		n, err := unix.Read(s.fd, p)
		switch {
		case err == nil && n == 0:
			return 0, ErrPeerClosed
		case err == nil:
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case isWouldBlock(err):
			return 0, ErrWouldBlock
		default:
			return 0, ioError("read", err)
		}
	}
}

// Write offers p to the kernel once and reports how much was accepted.
func (s *Socket) Write(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	for {
		n, err := unix.Write(s.fd, p)
		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case isWouldBlock(err):
			return 0, ErrWouldBlock
		default:
			return 0, ioError("write", err)
		}
	}
}

// ConnectError reports the outcome of a non-blocking connect once the socket
// has become writable.
func (s *Socket) ConnectError() error {
	v, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return ioError("getsockopt", err)
	}
	if v != 0 {
		return ioError("connect", unix.Errno(v))
	}
	return nil
}

// Close is idempotent.
func (s *Socket) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := unix.Close(s.fd); err != nil {
		return ioError("close", err)
	}
	return nil
}

// Dial starts a non-blocking connect to host:port. The returned socket is
// connected once it polls writable and ConnectError returns nil.
func Dial(ctx context.Context, host string, port int) (*Socket, error) {
	ip, err := resolve(ctx, host)
	if err != nil {
		return nil, ioError("resolve", err)
	}
	sa, domain, err := sockaddrFor(ip, port)
	if err != nil {
		return nil, err
	}
	fd, err := openStream(domain)
	if err != nil {
		return nil, err
	}
	if err := unix.Connect(fd, sa); err != nil && !errors.Is(err, unix.EINPROGRESS) && !errors.Is(err, unix.EINTR) {
		_ = unix.Close(fd)
		return nil, ioError("connect", err)
	}
	return newSocket(fd, Addr{Host: ip.String(), Port: port}), nil
}

// Pair returns two connected non-blocking sockets.
func Pair() (*Socket, *Socket, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, nil, ioError("socketpair", err)
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return nil, nil, ioError("nonblock", err)
		}
	}
	a := newSocket(fds[0], Addr{Host: "pair", Port: fds[1]})
	b := newSocket(fds[1], Addr{Host: "pair", Port: fds[0]})
	return a, b, nil
}

func openStream(domain int) (int, error) {
	fd, err := unix.Socket(domain, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, ioError("socket", err)
	}
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return -1, ioError("nonblock", err)
	}
	return fd, nil
}

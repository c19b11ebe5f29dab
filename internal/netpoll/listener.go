package netpoll

import (
	"context"
	"errors"

	"golang.org/x/sys/unix"
)

// Listener is a non-blocking passive socket.
type Listener struct {
	fd     int
	addr   Addr
	closed bool
}

// Listen binds host:port with SO_REUSEADDR. Port 0 picks an ephemeral port;
// Addr reports the bound one.
func Listen(host string, port int) (*Listener, error) {
	ip, err := resolve(context.Background(), host)
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
	fail := func(op string, err error) (*Listener, error) {
		_ = unix.Close(fd)
		return nil, ioError(op, err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fail("setsockopt", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		return fail("bind", err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		return fail("listen", err)
	}
	local, err := unix.Getsockname(fd)
	if err != nil {
		return fail("getsockname", err)
	}
	return &Listener{fd: fd, addr: addrFromSockaddr(local)}, nil
}

func (l *Listener) Fd() int { return l.fd }

func (l *Listener) Addr() Addr { return l.addr }

// Accept takes one pending connection. It returns ErrWouldBlock when none is
// queued.
func (l *Listener) Accept() (*Socket, error) {
	if l.closed {
		return nil, ErrClosed
	}
	for {
		fd, sa, err := unix.Accept(l.fd)
		switch {
		case err == nil:
			unix.CloseOnExec(fd)
			if err := unix.SetNonblock(fd, true); err != nil {
				_ = unix.Close(fd)
				return nil, ioError("nonblock", err)
			}
			return newSocket(fd, addrFromSockaddr(sa)), nil
		case errors.Is(err, unix.EINTR), errors.Is(err, unix.ECONNABORTED):
			continue
		case isWouldBlock(err):
			return nil, ErrWouldBlock
		default:
			return nil, ioError("accept", err)
		}
	}
}

func (l *Listener) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	if err := unix.Close(l.fd); err != nil {
		return ioError("close", err)
	}
	return nil
}

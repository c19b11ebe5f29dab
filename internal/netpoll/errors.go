package netpoll

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

var (
	ErrWouldBlock        = errors.New("netpoll: would block")
	ErrPeerClosed        = errors.New("netpoll: peer closed")
	ErrIO                = errors.New("netpoll: io error")
	ErrClosed            = errors.New("netpoll: socket closed")
	ErrAlreadyRegistered = errors.New("netpoll: fd already registered")
	ErrNotRegistered     = errors.New("netpoll: fd not registered")
)

func ioError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}

func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

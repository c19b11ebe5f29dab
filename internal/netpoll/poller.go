package netpoll

import (
	"errors"
	"slices"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// Interest is the set of readiness conditions a registration watches.
type Interest uint8

const (
	Readable Interest = 1 << iota
	Writable
)

func (i Interest) String() string {
	if i == 0 {
		return "none"
	}
	var parts []string
	if i&Readable != 0 {
		parts = append(parts, "read")
	}
	if i&Writable != 0 {
		parts = append(parts, "write")
	}
	return strings.Join(parts, "|")
}

// Event reports readiness for one registration.
type Event[T any] struct {
	Fd    int
	Ready Interest
	Data  T
}

type registration[T any] struct {
	interest Interest
	data     T
}

// Poller multiplexes readiness for a set of file descriptors. Each fd carries
// an opaque Data value that is handed back with its events.
type Poller[T any] struct {
	regs map[int]registration[T]
	fds  []unix.PollFd
}

func NewPoller[T any]() *Poller[T] {
	return &Poller[T]{regs: make(map[int]registration[T])}
}

func (p *Poller[T]) Register(fd int, interest Interest, data T) error {
	if _, ok := p.regs[fd]; ok {
		return ErrAlreadyRegistered
	}
	p.regs[fd] = registration[T]{interest: interest, data: data}
	return nil
}

func (p *Poller[T]) Modify(fd int, interest Interest, data T) error {
	if _, ok := p.regs[fd]; !ok {
		return ErrNotRegistered
	}
	p.regs[fd] = registration[T]{interest: interest, data: data}
	return nil
}

func (p *Poller[T]) Unregister(fd int) error {
	if _, ok := p.regs[fd]; !ok {
		return ErrNotRegistered
	}
	delete(p.regs, fd)
	return nil
}

// Interest returns the current interest for fd.
func (p *Poller[T]) Interest(fd int) (Interest, bool) {
	r, ok := p.regs[fd]
	return r.interest, ok
}

func (p *Poller[T]) Len() int { return len(p.regs) }

// Wait blocks for at most timeout and returns the registrations that became
// ready. A negative timeout waits indefinitely. An interrupted wait returns no
// events and no error.
//
// Hang-up and error conditions are reported as whatever the registration is
// interested in, so the owner observes the failure on its next read or write.
func (p *Poller[T]) Wait(timeout time.Duration) ([]Event[T], error) {
	p.fds = p.fds[:0]
	order := make([]int, 0, len(p.regs))
	for fd := range p.regs {
		order = append(order, fd)
	}
	slices.Sort(order)
	for _, fd := range order {
		p.fds = append(p.fds, unix.PollFd{Fd: int32(fd), Events: pollEvents(p.regs[fd].interest)})
	}

	n, err := unix.Poll(p.fds, pollTimeout(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, ioError("poll", err)
	}
	if n == 0 {
		return nil, nil
	}

	events := make([]Event[T], 0, n)
	for _, pfd := range p.fds {
		if pfd.Revents == 0 {
			continue
		}
		fd := int(pfd.Fd)
		reg := p.regs[fd]
		ready := readyFrom(pfd.Revents, reg.interest)
		if ready == 0 {
			continue
		}
		events = append(events, Event[T]{Fd: fd, Ready: ready, Data: reg.data})
	}
	return events, nil
}

func pollEvents(i Interest) int16 {
	var ev int16
	if i&Readable != 0 {
		ev |= unix.POLLIN
	}
	if i&Writable != 0 {
		ev |= unix.POLLOUT
	}
	return ev
}

func readyFrom(revents int16, interest Interest) Interest {
	var ready Interest
	if revents&unix.POLLIN != 0 {
		ready |= Readable
	}
	if revents&unix.POLLOUT != 0 {
		ready |= Writable
	}
	if revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
		ready |= interest
	}
	return ready & interest
}

func pollTimeout(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := int(d / time.Millisecond)
	if ms == 0 && d > 0 {
		ms = 1
	}
	return ms
}

package server

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/danmuck/netchat/internal/netpoll"
)

var ErrDuplicatePeer = errors.New("server: duplicate peer address")

// PeerInfo is a read-only snapshot of one registered connection.
type PeerInfo struct {
	Addr    netpoll.Addr
	Name    string
	Color   string
	State   State
	Pending int
}

// Registry maps peer address to connection state. Closed connections are
// erased, never left behind as placeholders.
type Registry struct {
	conns map[netpoll.Addr]*Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[netpoll.Addr]*Conn)}
}

func (r *Registry) Add(c *Conn) error {
	if _, ok := r.conns[c.addr]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePeer, c.addr)
	}
	r.conns[c.addr] = c
	return nil
}

// Remove erases c if it is the connection registered under its address.
func (r *Registry) Remove(c *Conn) bool {
	cur, ok := r.conns[c.addr]
	if !ok || cur != c {
		return false
	}
	delete(r.conns, c.addr)
	return true
}

func (r *Registry) Get(addr netpoll.Addr) (*Conn, bool) {
	c, ok := r.conns[addr]
	return c, ok
}

func (r *Registry) Len() int {
	return len(r.conns)
}

// Conns returns the registered connections ordered by address. The slice is
// a copy, so callers may close connections while iterating it.
func (r *Registry) Conns() []*Conn {
	out := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b *Conn) int {
		if c := strings.Compare(a.addr.Host, b.addr.Host); c != 0 {
			return c
		}
		return a.addr.Port - b.addr.Port
	})
	return out
}

// Broadcast queues one encoded frame on every registered connection and
// returns the number of recipients.
func (r *Registry) Broadcast(encoded []byte) int {
	for _, c := range r.conns {
		c.buf.Queue(encoded)
	}
	return len(r.conns)
}

// AllDrained reports whether no registered connection has outbound bytes.
// It is used for logging and tests only. Write interest is decided per
// connection by wantInterest; once AllDrained holds, every connection that is
// not answering a request watches read only.
func (r *Registry) AllDrained() bool {
	for _, c := range r.conns {
		if c.buf.Pending() > 0 {
			return false
		}
	}
	return true
}

func (r *Registry) Peers() []PeerInfo {
	conns := r.Conns()
	out := make([]PeerInfo, 0, len(conns))
	for _, c := range conns {
		out = append(out, c.Info())
	}
	return out
}

package client

import (
	"io"

	"github.com/danmuck/netchat/internal/netbuf"
	"github.com/danmuck/netchat/internal/netpoll"
	"github.com/danmuck/netchat/internal/protocol/chat"
	"github.com/danmuck/netchat/internal/protocol/frame"
)

// State is the client connection's position in its receive cycle.
type State int

const (
	StateConnecting State = iota
	StateAwaitingHeaderLength
	StateAwaitingHeader
	StateAwaitingPayload
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingHeaderLength:
		return "awaiting_header_length"
	case StateAwaitingHeader:
		return "awaiting_header"
	case StateAwaitingPayload:
		return "awaiting_payload"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stream is the socket surface the client drives.
type Stream interface {
	io.ReadWriteCloser
	Fd() int
	ConnectError() error
}

// Conn is the client-side connection state machine.
//
// Outbound bytes are at most two requests: the unsent tail of a request the
// socket has already taken part of, followed by one untouched request. A new
// request replaces the untouched one and never splices into the tail.
type Conn struct {
	sock  Stream
	buf   netbuf.Buffer
	dec   *frame.Decoder
	state State

	tail int
	next int

	latest    string
	hasLatest bool

	interest netpoll.Interest
}

func newConn(sock Stream, limits frame.Limits) *Conn {
	return &Conn{
		sock:  sock,
		dec:   frame.NewDecoder(limits),
		state: StateConnecting,
	}
}

func (c *Conn) State() State { return c.state }

// Pending is the number of request bytes not yet accepted by the socket.
func (c *Conn) Pending() int { return c.buf.Pending() }

// LatestText is the most recent chat text decoded from the server.
func (c *Conn) LatestText() (string, bool) { return c.latest, c.hasLatest }

// queue installs encoded as the pending request. It reports whether an
// untouched pending request was overwritten.
func (c *Conn) queue(encoded []byte) bool {
	replaced := c.next > 0
	c.buf.Replace(c.tail, encoded)
	c.next = len(encoded)
	return replaced
}

// sent accounts for n bytes the socket accepted from the front of the queue.
func (c *Conn) sent(n int) {
	d := min(n, c.tail)
	c.tail -= d
	n -= d
	if n > 0 {
		c.tail = c.next - n
		c.next = 0
	}
}

// flush offers queued bytes to the socket once.
func (c *Conn) flush() error {
	n, err := c.buf.Drain(c.sock)
	c.sent(n)
	return err
}

// connected completes a non-blocking connect.
func (c *Conn) connected() error {
	if err := c.sock.ConnectError(); err != nil {
		return err
	}
	c.state = StateAwaitingHeaderLength
	return nil
}

// receive appends p and decodes every complete response it finishes. Chat text
// is returned in arrival order; other frames are reported through other.
func (c *Conn) receive(p []byte, other func(frame.Frame)) ([]string, error) {
	c.buf.Append(p)
	var lines []string
	for {
		f, n, ok, err := c.dec.Next(c.buf.Inbound())
		c.buf.Consume(n)
		if err != nil {
			return lines, err
		}
		if !ok {
			c.state = stateForStage(c.dec.Stage())
			return lines, nil
		}
		if !f.IsJSON() {
			other(f)
			continue
		}
		text, has, err := chat.DecodeResponse(f)
		if err != nil {
			return lines, err
		}
		if !has {
			other(f)
			continue
		}
		c.latest, c.hasLatest = text, true
		lines = append(lines, text)
	}
}

func (c *Conn) wantInterest() netpoll.Interest {
	if c.state == StateConnecting {
		return netpoll.Writable
	}
	if c.buf.Pending() > 0 {
		return netpoll.Readable | netpoll.Writable
	}
	return netpoll.Readable
}

func stateForStage(s frame.Stage) State {
	switch s {
	case frame.StageHeader:
		return StateAwaitingHeader
	case frame.StagePayload:
		return StateAwaitingPayload
	default:
		return StateAwaitingHeaderLength
	}
}

package server

import (
	"errors"
	"io"

	"github.com/danmuck/netchat/internal/netbuf"
	"github.com/danmuck/netchat/internal/netpoll"
	"github.com/danmuck/netchat/internal/protocol/frame"
)

// State is a connection's position in its read/respond cycle.
type State int

const (
	StateAwaitingHeaderLength State = iota
	StateAwaitingHeader
	StateAwaitingPayload
	StateRequestReady
	StateResponseBuilt
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateAwaitingHeaderLength:
		return "awaiting_header_length"
	case StateAwaitingHeader:
		return "awaiting_header"
	case StateAwaitingPayload:
		return "awaiting_payload"
	case StateRequestReady:
		return "request_ready"
	case StateResponseBuilt:
		return "response_built"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Close reasons reported to logs and metrics.
const (
	ReasonQuit            = "quit"
	ReasonPeerClosed      = "peer_closed"
	ReasonMalformedHeader = "malformed_header"
	ReasonDecodeError     = "decode_error"
	ReasonIOError         = "io_error"
	ReasonPanic           = "panic"
	ReasonShutdown        = "shutdown"
)

// Stream is the socket surface a connection is serviced through.
type Stream interface {
	io.ReadWriteCloser
	Fd() int
	RemoteAddr() netpoll.Addr
}

// Conn is the server-side state for one accepted socket.
type Conn struct {
	addr netpoll.Addr
	sock Stream
	buf  netbuf.Buffer
	dec  *frame.Decoder

	state   State
	request frame.Frame

	name  string
	color string

	// interest is what the poller currently watches for this socket.
	interest netpoll.Interest
	closed   bool
}

func newConn(sock Stream, cfg Config) *Conn {
	return &Conn{
		addr:  sock.RemoteAddr(),
		sock:  sock,
		dec:   frame.NewDecoder(cfg.Limits),
		state: StateAwaitingHeaderLength,
		name:  cfg.DefaultName,
		color: cfg.DefaultColor,
	}
}

func (c *Conn) Addr() netpoll.Addr { return c.addr }
func (c *Conn) Name() string       { return c.name }
func (c *Conn) Color() string      { return c.color }
func (c *Conn) State() State       { return c.state }

func (c *Conn) Info() PeerInfo {
	return PeerInfo{
		Addr:    c.addr,
		Name:    c.name,
		Color:   c.color,
		State:   c.state,
		Pending: c.buf.Pending(),
	}
}

// decode runs the incremental decoder over buffered bytes. It is a no-op while
// a request is waiting for its response.
func (c *Conn) decode() error {
	if c.awaitingResponse() {
		return nil
	}
	f, n, ok, err := c.dec.Next(c.buf.Inbound())
	c.buf.Consume(n)
	if err != nil {
		return err
	}
	if ok {
		c.request = f
		c.state = StateRequestReady
		return nil
	}
	c.state = stateForStage(c.dec.Stage())
	return nil
}

// takeRequest hands the decoded request to dispatch and marks the response
// as built.
func (c *Conn) takeRequest() frame.Frame {
	f := c.request
	c.request = frame.Frame{}
	c.state = StateResponseBuilt
	return f
}

// settle ends a response cycle once this connection's own outbound bytes are
// gone, then resumes decoding whatever is already buffered.
func (c *Conn) settle() error {
	if c.state != StateResponseBuilt && c.state != StateDraining {
		return nil
	}
	if c.buf.Pending() > 0 {
		c.state = StateDraining
		return nil
	}
	c.state = stateForStage(c.dec.Stage())
	return c.decode()
}

func (c *Conn) awaitingResponse() bool {
	switch c.state {
	case StateRequestReady, StateResponseBuilt, StateDraining:
		return true
	}
	return false
}

// wantInterest is read-only while receiving, write-only while a request is
// being answered, and adds write whenever broadcast bytes are queued.
func (c *Conn) wantInterest() netpoll.Interest {
	if c.awaitingResponse() {
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

func closeReason(err error) string {
	switch {
	case errors.Is(err, netpoll.ErrPeerClosed):
		return ReasonPeerClosed
	case errors.Is(err, frame.ErrMalformedHeader):
		return ReasonMalformedHeader
	case errors.Is(err, frame.ErrDecode),
		errors.Is(err, frame.ErrPayloadTooLarge),
		errors.Is(err, frame.ErrHeaderTooLarge),
		errors.Is(err, frame.ErrLengthMismatch):
		return ReasonDecodeError
	default:
		return ReasonIOError
	}
}

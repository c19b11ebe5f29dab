package client

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/danmuck/netchat/internal/logging"
	"github.com/danmuck/netchat/internal/netpoll"
	"github.com/danmuck/netchat/internal/protocol/chat"
	"github.com/danmuck/netchat/internal/protocol/frame"
	"github.com/rs/zerolog"
)

var ErrClientClosed = errors.New("client: closed")

// Client is the single-connection chat client loop.
type Client struct {
	cfg      Config
	log      zerolog.Logger
	sink     Sink
	poller   *netpoll.Poller[*Conn]
	conn     *Conn
	chunk    []byte
	handlers int
	quitting bool
	closed   bool
	err      error
}

// Dial starts a non-blocking connect to the configured server and queues the
// on_connection handshake. The connect completes inside Update.
func Dial(ctx context.Context, cfg Config, sink Sink) (*Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sock, err := netpoll.Dial(ctx, cfg.ServerHost, cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", netpoll.Addr{Host: cfg.ServerHost, Port: cfg.Port}, err)
	}
	c, err := newClient(sock, cfg, sink)
	if err != nil {
		_ = sock.Close()
		return nil, err
	}
	return c, nil
}

func newClient(sock Stream, cfg Config, sink Sink) (*Client, error) {
	cfg = cfg.WithDefaults()
	if sink == nil {
		sink = discardSink{}
	}
	c := &Client{
		cfg:    cfg,
		log:    logging.Component("client"),
		sink:   sink,
		poller: netpoll.NewPoller[*Conn](),
		conn:   newConn(sock, cfg.Limits),
		chunk:  make([]byte, cfg.RecvChunkBytes),
	}
	hello, err := chat.EncodeRequest(chat.ActionOnConnection.String(), cfg.ServerHost)
	if err != nil {
		return nil, err
	}
	c.conn.queue(hello)
	c.conn.interest = c.conn.wantInterest()
	if err := c.poller.Register(sock.Fd(), c.conn.interest, c.conn); err != nil {
		return nil, err
	}
	c.handlers++
	c.log.Info().Str("server", netpoll.Addr{Host: cfg.ServerHost, Port: cfg.Port}.String()).Msg("connecting")
	return c, nil
}

// Conn exposes the connection state machine for inspection.
func (c *Client) Conn() *Conn { return c.conn }

func (c *Client) LatestText() (string, bool) { return c.conn.LatestText() }

// Closed reports whether the connection has ended.
func (c *Client) Closed() bool { return c.closed }

// Err is the failure that closed the connection, or nil after a quit or an
// explicit Close.
func (c *Client) Err() error { return c.err }

func (c *Client) SendChatMessage(text string) error {
	return c.request(chat.ActionSendMessage, text)
}

func (c *Client) SendNameChange(name string) error {
	return c.request(chat.ActionChangeName, name)
}

func (c *Client) FirstEntry(name string) error {
	return c.request(chat.ActionFirstEntry, name)
}

// Quit sends quit and closes the connection once it has been written.
func (c *Client) Quit() error {
	if err := c.request(chat.ActionQuit, ""); err != nil {
		return err
	}
	c.quitting = true
	return nil
}

// Send queues an arbitrary action. Actions outside the chat vocabulary travel
// as binary requests.
func (c *Client) Send(action, value string) error {
	if c.closed {
		return ErrClientClosed
	}
	encoded, err := chat.EncodeRequest(action, value)
	if err != nil {
		return err
	}
	if c.conn.queue(encoded) {
		c.log.Debug().Str("action", action).Msg("replaced pending request")
	}
	c.syncInterest()
	return nil
}

func (c *Client) request(action chat.Action, value string) error {
	if c.quitting {
		return ErrClientClosed
	}
	return c.Send(action.String(), value)
}

// Update polls once for at most the configured timeout and services the
// connection.
func (c *Client) Update() error {
	if c.closed {
		return ErrClientClosed
	}
	if c.handlers == 0 {
		return nil
	}
	events, err := c.poller.Wait(c.cfg.PollTimeout)
	if err != nil {
		return err
	}
	for _, ev := range events {
		c.service(ev.Ready)
	}
	return nil
}

// Run calls Update until ctx is done or the connection ends. It returns the
// error that ended the connection, if any.
func (c *Client) Run(ctx context.Context) error {
	defer c.Close()
	for !c.closed {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := c.Update(); err != nil && !errors.Is(err, ErrClientClosed) {
			return err
		}
	}
	return c.err
}

// Close drops the connection without sending anything. It is idempotent.
func (c *Client) Close() error {
	c.shutdown("close", nil)
	return nil
}

func (c *Client) service(ready netpoll.Interest) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("connection panicked")
			c.shutdown("panic", fmt.Errorf("client: panic: %v", r))
		}
	}()

	if c.closed {
		return
	}
	if c.conn.state == StateConnecting {
		if err := c.conn.connected(); err != nil {
			c.shutdown("io_error", err)
			return
		}
		c.log.Info().Msg("connected")
	}
	if ready&netpoll.Readable != 0 {
		if !c.onReadable() {
			return
		}
	}
	if ready&netpoll.Writable != 0 {
		if err := c.conn.flush(); err != nil && !errors.Is(err, netpoll.ErrWouldBlock) {
			c.shutdown("io_error", err)
			return
		}
		if c.quitting && c.conn.Pending() == 0 {
			c.shutdown("quit", nil)
			return
		}
	}
	c.syncInterest()
}

func (c *Client) onReadable() bool {
	n, err := c.conn.sock.Read(c.chunk)
	if err != nil {
		if errors.Is(err, netpoll.ErrWouldBlock) {
			return true
		}
		c.shutdown(reasonFor(err), err)
		return false
	}
	lines, err := c.conn.receive(c.chunk[:n], c.onOther)
	for _, line := range lines {
		c.sink.OnChatLine(line)
	}
	if err != nil {
		c.shutdown(reasonFor(err), err)
		return false
	}
	return true
}

func (c *Client) onOther(f frame.Frame) {
	c.log.Debug().
		Str("content_type", f.Header.ContentType).
		Int("bytes", len(f.Payload)).
		Msg("non-chat response")
}

func (c *Client) syncInterest() {
	if c.closed {
		return
	}
	want := c.conn.wantInterest()
	if want == c.conn.interest {
		return
	}
	if err := c.poller.Modify(c.conn.sock.Fd(), want, c.conn); err != nil {
		c.shutdown("io_error", err)
		return
	}
	c.conn.interest = want
}

func (c *Client) shutdown(reason string, cause error) {
	if c.closed {
		return
	}
	c.closed = true
	c.err = cause
	if err := c.poller.Unregister(c.conn.sock.Fd()); err == nil {
		c.handlers--
	}
	_ = c.conn.sock.Close()
	c.conn.state = StateClosed

	event := c.log.Info()
	if cause != nil {
		event = c.log.Warn().Err(cause)
	}
	event.Str("reason", reason).Msg("disconnected")
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, netpoll.ErrPeerClosed):
		return "peer_closed"
	case errors.Is(err, frame.ErrMalformedHeader):
		return "malformed_header"
	case errors.Is(err, netpoll.ErrIO):
		return "io_error"
	default:
		return "decode_error"
	}
}

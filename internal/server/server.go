package server

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/danmuck/netchat/internal/logging"
	"github.com/danmuck/netchat/internal/netpoll"
	"github.com/danmuck/netchat/internal/observability"
	"github.com/rs/zerolog"
)

var ErrServerClosed = errors.New("server: closed")

// Server is the single-threaded chat server loop. The listener is registered
// with nil data; every other registration carries its *Conn.
type Server struct {
	cfg      Config
	log      zerolog.Logger
	ln       *netpoll.Listener
	poller   *netpoll.Poller[*Conn]
	registry *Registry
	chunk    []byte
	handlers int
	closed   bool
}

// New binds the listener and registers it for read readiness.
func New(cfg Config) (*Server, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	host := cfg.ListenHost
	if host == "" {
		host = netpoll.OutboundIP()
	}
	port := cfg.Port
	if port == EphemeralPort {
		port = 0
	}
	ln, err := netpoll.Listen(host, port)
	if err != nil {
		return nil, fmt.Errorf("server: listen %s: %w", netpoll.Addr{Host: host, Port: port}, err)
	}

	observability.RegisterMetrics()
	s := &Server{
		cfg:      cfg,
		log:      logging.Component("server"),
		ln:       ln,
		poller:   netpoll.NewPoller[*Conn](),
		registry: NewRegistry(),
		chunk:    make([]byte, cfg.RecvChunkBytes),
	}
	if err := s.poller.Register(ln.Fd(), netpoll.Readable, nil); err != nil {
		_ = ln.Close()
		return nil, err
	}
	s.handlers++
	s.log.Info().Str("addr", ln.Addr().String()).Msg("listening")
	return s, nil
}

func (s *Server) Addr() netpoll.Addr { return s.ln.Addr() }

func (s *Server) Registry() *Registry { return s.registry }

func (s *Server) Peers() []PeerInfo { return s.registry.Peers() }

// Handlers is the number of registrations with the multiplexer, listener
// included.
func (s *Server) Handlers() int { return s.handlers }

// Update polls once for at most the configured timeout and services every
// ready registration.
func (s *Server) Update() error {
	if s.closed {
		return ErrServerClosed
	}
	if s.handlers == 0 {
		return nil
	}
	events, err := s.poller.Wait(s.cfg.PollTimeout)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if ev.Data == nil {
			s.accept()
			continue
		}
		s.service(ev.Data, ev.Ready)
	}
	return nil
}

// Run calls Update until ctx is done, then closes the server.
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := s.Update(); err != nil {
			return err
		}
	}
}

// Close closes every connection and the listener. It is idempotent.
func (s *Server) Close() error {
	if s.closed {
		return nil
	}
	for _, c := range s.registry.Conns() {
		s.closeConn(c, ReasonShutdown, nil)
	}
	_ = s.poller.Unregister(s.ln.Fd())
	s.handlers--
	s.closed = true
	s.log.Info().Str("addr", s.ln.Addr().String()).Msg("stopped")
	return s.ln.Close()
}

// accept takes one pending connection per listener readiness event.
func (s *Server) accept() {
	sock, err := s.ln.Accept()
	if err != nil {
		if !errors.Is(err, netpoll.ErrWouldBlock) {
			s.log.Warn().Err(err).Msg("accept failed")
		}
		return
	}
	if _, err := s.adopt(sock); err != nil {
		s.log.Warn().Err(err).Str("addr", sock.RemoteAddr().String()).Msg("rejecting connection")
		_ = sock.Close()
	}
}

// adopt registers an already connected stream with read interest.
func (s *Server) adopt(sock Stream) (*Conn, error) {
	c := newConn(sock, s.cfg)
	if err := s.registry.Add(c); err != nil {
		return nil, err
	}
	if err := s.poller.Register(sock.Fd(), netpoll.Readable, c); err != nil {
		s.registry.Remove(c)
		return nil, err
	}
	c.interest = netpoll.Readable
	s.handlers++
	observability.RecordAccepted()
	s.log.Info().Str("addr", c.addr.String()).Int("peers", s.registry.Len()).Msg("accepted")
	return c, nil
}

// service runs one readiness event for c. Any failure, including a panic,
// closes c alone.
func (s *Server) service(c *Conn, ready netpoll.Interest) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Str("addr", c.addr.String()).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("connection panicked")
			s.closeConn(c, ReasonPanic, fmt.Errorf("server: panic: %v", r))
		}
	}()

	if c.closed {
		return
	}
	if ready&netpoll.Readable != 0 {
		s.onReadable(c)
		if c.closed {
			return
		}
	}
	if ready&netpoll.Writable != 0 {
		s.onWritable(c)
	}
}

func (s *Server) onReadable(c *Conn) {
	if c.awaitingResponse() {
		return
	}
	n, err := c.sock.Read(s.chunk)
	if err != nil {
		if errors.Is(err, netpoll.ErrWouldBlock) {
			return
		}
		s.closeConn(c, closeReason(err), err)
		return
	}
	c.buf.Append(s.chunk[:n])
	if err := c.decode(); err != nil {
		s.closeConn(c, closeReason(err), err)
		return
	}
	if c.state == StateRequestReady {
		s.log.Debug().
			Str("addr", c.addr.String()).
			Str("content_type", c.request.Header.ContentType).
			Int("bytes", len(c.request.Payload)).
			Msg("request ready")
	}
	s.syncInterest(c)
}

func (s *Server) onWritable(c *Conn) {
	if c.state == StateRequestReady {
		s.respond(c)
		return
	}
	if !s.drain(c) {
		return
	}
	s.settle(c)
}

// respond dispatches the pending request and fans the response out to every
// registered connection, sender included.
func (s *Server) respond(c *Conn) {
	r, err := s.dispatch(c, c.takeRequest())
	if err != nil {
		s.closeConn(c, closeReason(err), err)
		return
	}
	observability.RecordRequest(r.action)
	if r.quit {
		s.closeConn(c, ReasonQuit, nil)
		return
	}
	if r.encoded != nil {
		n := s.registry.Broadcast(r.encoded)
		observability.RecordBroadcast(len(r.encoded), n)
		s.log.Debug().
			Str("addr", c.addr.String()).
			Str("action", r.action).
			Int("bytes", len(r.encoded)).
			Int("recipients", n).
			Msg("broadcast")
	}
	s.drainAll()
}

// drainAll offers every queued outbound buffer to its socket once, then
// recomputes each connection's interest.
func (s *Server) drainAll() {
	conns := s.registry.Conns()
	for _, c := range conns {
		s.drain(c)
	}
	for _, c := range conns {
		s.settle(c)
	}
	if s.registry.AllDrained() {
		s.log.Trace().Int("peers", s.registry.Len()).Msg("all outbound buffers drained")
	}
}

// drain writes what the socket accepts. It reports false if c was closed.
func (s *Server) drain(c *Conn) bool {
	if c.closed {
		return false
	}
	if c.buf.Pending() == 0 {
		return true
	}
	if _, err := c.buf.Drain(c.sock); err != nil && !errors.Is(err, netpoll.ErrWouldBlock) {
		s.closeConn(c, closeReason(err), err)
		return false
	}
	return true
}

func (s *Server) settle(c *Conn) {
	if c.closed {
		return
	}
	if err := c.settle(); err != nil {
		s.closeConn(c, closeReason(err), err)
		return
	}
	s.syncInterest(c)
}

func (s *Server) syncInterest(c *Conn) {
	want := c.wantInterest()
	if want == c.interest {
		return
	}
	if err := s.poller.Modify(c.sock.Fd(), want, c); err != nil {
		s.closeConn(c, ReasonIOError, err)
		return
	}
	c.interest = want
}

// closeConn unregisters, erases and closes c. Later events for c in the same
// poll batch are skipped by the closed flag.
func (s *Server) closeConn(c *Conn, reason string, cause error) {
	if c.closed {
		return
	}
	c.closed = true
	if err := s.poller.Unregister(c.sock.Fd()); err == nil {
		s.handlers--
	}
	s.registry.Remove(c)
	if err := c.sock.Close(); err != nil {
		s.log.Debug().Err(err).Str("addr", c.addr.String()).Msg("close socket")
	}
	observability.RecordClosed(reason)

	event := s.log.Info()
	if reason != ReasonQuit && reason != ReasonPeerClosed && reason != ReasonShutdown {
		event = s.log.Warn().Err(cause)
	}
	event.
		Str("addr", c.addr.String()).
		Str("reason", reason).
		Int("peers", s.registry.Len()).
		Msg("closed")
}

package netpoll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danmuck/netchat/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func newPair(t *testing.T) (*Socket, *Socket) {
	t.Helper()
	a, b, err := Pair()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return a, b
}

func TestSocketReadWouldBlockAndPeerClosed(t *testing.T) {
	testlog.Start(t)

	a, b := newPair(t)
	buf := make([]byte, 16)

	_, err := a.Read(buf)
	require.ErrorIs(t, err, ErrWouldBlock)

	n, err := b.Write([]byte("ping"))
	require.NoError(t, err)
	require.Equal(t, 4, n)

	n, err = a.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf[:n]))

	require.NoError(t, b.Close())
	_, err = a.Read(buf)
	require.ErrorIs(t, err, ErrPeerClosed)
}

func TestSocketCloseIdempotent(t *testing.T) {
	testlog.Start(t)

	a, _ := newPair(t)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	_, err := a.Read(make([]byte, 1))
	require.ErrorIs(t, err, ErrClosed)
	_, err = a.Write([]byte("x"))
	require.ErrorIs(t, err, ErrClosed)
}

func TestWriteUntilWouldBlock(t *testing.T) {
	testlog.Start(t)

	a, _ := newPair(t)
	chunk := make([]byte, 64*1024)
	for i := 0; ; i++ {
		if i > 1024 {
			t.Fatalf("socket never reported would-block")
		}
		_, err := a.Write(chunk)
		if errors.Is(err, ErrWouldBlock) {
			break
		}
		require.NoError(t, err)
	}
}

func TestPollerReadiness(t *testing.T) {
	testlog.Start(t)

	a, b := newPair(t)
	p := NewPoller[string]()
	require.NoError(t, p.Register(a.Fd(), Readable, "a"))
	require.ErrorIs(t, p.Register(a.Fd(), Readable, "a"), ErrAlreadyRegistered)

	events, err := p.Wait(5 * time.Millisecond)
	require.NoError(t, err)
	require.Empty(t, events)

	_, err = b.Write([]byte("x"))
	require.NoError(t, err)
	events, err = p.Wait(time.Second)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, Readable, events[0].Ready)
	require.Equal(t, "a", events[0].Data)

	require.NoError(t, p.Modify(a.Fd(), Readable|Writable, "a2"))
	events, err = p.Wait(time.Second)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, Readable|Writable, events[0].Ready)
	require.Equal(t, "a2", events[0].Data)

	require.NoError(t, p.Unregister(a.Fd()))
	require.ErrorIs(t, p.Unregister(a.Fd()), ErrNotRegistered)
	require.ErrorIs(t, p.Modify(a.Fd(), Readable, "a"), ErrNotRegistered)
	require.Zero(t, p.Len())
}

func TestPollerHangupReportsInterest(t *testing.T) {
	testlog.Start(t)

	a, b := newPair(t)
	p := NewPoller[int]()
	require.NoError(t, p.Register(a.Fd(), Readable, 1))
	require.NoError(t, b.Close())

	events, err := p.Wait(time.Second)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, Readable, events[0].Ready)

	_, err = a.Read(make([]byte, 8))
	require.ErrorIs(t, err, ErrPeerClosed)
}

func TestListenAcceptDial(t *testing.T) {
	testlog.Start(t)

	ln, err := Listen("127.0.0.1", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	require.NotZero(t, ln.Addr().Port)

	_, err = ln.Accept()
	require.ErrorIs(t, err, ErrWouldBlock)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	cli, err := Dial(ctx, "127.0.0.1", ln.Addr().Port)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cli.Close() })

	p := NewPoller[string]()
	require.NoError(t, p.Register(ln.Fd(), Readable, "listener"))
	require.NoError(t, p.Register(cli.Fd(), Writable, "client"))

	var srv *Socket
	connected := false
	deadline := time.Now().Add(2 * time.Second)
	for (srv == nil || !connected) && time.Now().Before(deadline) {
		events, err := p.Wait(10 * time.Millisecond)
		require.NoError(t, err)
		for _, ev := range events {
			switch ev.Data {
			case "listener":
				srv, err = ln.Accept()
				require.NoError(t, err)
			case "client":
				require.NoError(t, cli.ConnectError())
				connected = true
				require.NoError(t, p.Unregister(cli.Fd()))
			}
		}
	}
	require.NotNil(t, srv, "no connection accepted")
	require.True(t, connected, "connect never completed")
	t.Cleanup(func() { _ = srv.Close() })
	require.Equal(t, "127.0.0.1", srv.RemoteAddr().Host)

	_, err = cli.Write([]byte("hello"))
	require.NoError(t, err)
	buf := make([]byte, 8)
	var n int
	for time.Now().Before(deadline) {
		n, err = srv.Read(buf)
		if !errors.Is(err, ErrWouldBlock) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))
}

func TestDialRefused(t *testing.T) {
	testlog.Start(t)

	ln, err := Listen("127.0.0.1", 0)
	require.NoError(t, err)
	port := ln.Addr().Port
	require.NoError(t, ln.Close())

	cli, err := Dial(context.Background(), "127.0.0.1", port)
	if err != nil {
		require.ErrorIs(t, err, ErrIO)
		return
	}
	defer cli.Close()

	p := NewPoller[struct{}]()
	require.NoError(t, p.Register(cli.Fd(), Writable, struct{}{}))
	events, err := p.Wait(time.Second)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.ErrorIs(t, cli.ConnectError(), ErrIO)
}

func TestAddrString(t *testing.T) {
	testlog.Start(t)

	require.Equal(t, "127.0.0.1:25574", Addr{Host: "127.0.0.1", Port: 25574}.String())
	require.Equal(t, "[::1]:80", Addr{Host: "::1", Port: 80}.String())
	require.Equal(t, "read|write", (Readable | Writable).String())
	require.Equal(t, "none", Interest(0).String())
}

func TestPollTimeoutRounding(t *testing.T) {
	testlog.Start(t)

	require.Equal(t, -1, pollTimeout(-1))
	require.Equal(t, 0, pollTimeout(0))
	require.Equal(t, 1, pollTimeout(time.Microsecond))
	require.Equal(t, 5, pollTimeout(5*time.Millisecond))
}

func TestOutboundIPNotEmpty(t *testing.T) {
	testlog.Start(t)

	require.NotEmpty(t, OutboundIP())
}

package server

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/netchat/internal/netpoll"
	"github.com/danmuck/netchat/internal/testutil/testlog"
)

func registryConn(host string, port int) *Conn {
	return newConn(&fakeStream{addr: netpoll.Addr{Host: host, Port: port}}, DefaultConfig())
}

func TestRegistryAddRemove(t *testing.T) {
	testlog.Start(t)

	r := NewRegistry()
	a := registryConn("10.0.0.1", 5000)
	if err := r.Add(a); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := r.Add(registryConn("10.0.0.1", 5000)); !errors.Is(err, ErrDuplicatePeer) {
		t.Fatalf("expected duplicate peer error, got %v", err)
	}
	if r.Remove(registryConn("10.0.0.1", 5000)) {
		t.Fatalf("removed a connection that was not registered")
	}
	if !r.Remove(a) {
		t.Fatalf("remove registered connection failed")
	}
	if _, ok := r.Get(a.Addr()); ok || r.Len() != 0 {
		t.Fatalf("entry still present after remove")
	}
}

func TestRegistryBroadcastQueuesEveryConnection(t *testing.T) {
	testlog.Start(t)

	r := NewRegistry()
	conns := []*Conn{
		registryConn("10.0.0.2", 1),
		registryConn("10.0.0.1", 2),
		registryConn("10.0.0.1", 1),
	}
	for _, c := range conns {
		if err := r.Add(c); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if !r.AllDrained() {
		t.Fatalf("fresh registry reports pending bytes")
	}

	msg := []byte("frame-bytes")
	if n := r.Broadcast(msg); n != 3 {
		t.Fatalf("broadcast recipients = %d", n)
	}
	for _, c := range conns {
		if !bytes.Equal(c.buf.Outbound(), msg) {
			t.Fatalf("%s outbound = %q", c.Addr(), c.buf.Outbound())
		}
	}
	if r.AllDrained() {
		t.Fatalf("AllDrained true with queued bytes")
	}

	peers := r.Peers()
	if len(peers) != 3 || peers[0].Addr.Port != 1 || peers[0].Addr.Host != "10.0.0.1" || peers[2].Addr.Host != "10.0.0.2" {
		t.Fatalf("peers not ordered by address: %+v", peers)
	}
	if peers[0].Name != DefaultName || peers[0].Color != DefaultColor || peers[0].Pending != len(msg) {
		t.Fatalf("unexpected peer snapshot: %+v", peers[0])
	}
}

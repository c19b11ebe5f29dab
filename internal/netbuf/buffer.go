// Package netbuf holds per-connection byte buffers: inbound bytes waiting to be
// decoded and outbound bytes waiting for the socket to accept them.
package netbuf

import (
	"bytes"
	"io"
)

// Buffer pairs an append-only inbound buffer with an outbound queue.
// The zero value is ready to use.
type Buffer struct {
	in  bytes.Buffer
	out bytes.Buffer
}

// Append adds freshly read bytes to the inbound side.
func (b *Buffer) Append(p []byte) {
	b.in.Write(p)
}

// Inbound returns the undecoded bytes. The slice is valid until the next
// Append or Consume.
func (b *Buffer) Inbound() []byte {
	return b.in.Bytes()
}

// Consume drops n decoded bytes from the front of the inbound side.
func (b *Buffer) Consume(n int) {
	b.in.Next(n)
}

func (b *Buffer) InboundLen() int {
	return b.in.Len()
}

// Queue appends p to the outbound side.
func (b *Buffer) Queue(p []byte) {
	b.out.Write(p)
}

// Pending is the number of outbound bytes not yet accepted by the socket.
func (b *Buffer) Pending() int {
	return b.out.Len()
}

// Outbound returns the queued outbound bytes without removing them.
func (b *Buffer) Outbound() []byte {
	return b.out.Bytes()
}

// Drain offers the outbound bytes to w once and removes exactly the bytes w
// reports as written, including on a partial write that also returns an error.
func (b *Buffer) Drain(w io.Writer) (int, error) {
	if b.out.Len() == 0 {
		return 0, nil
	}
	n, err := w.Write(b.out.Bytes())
	if n > 0 {
		b.out.Next(n)
	}
	return n, err
}

// Replace discards any queued outbound bytes except the first keep bytes and
// queues p after them.
func (b *Buffer) Replace(keep int, p []byte) {
	keep = min(max(keep, 0), b.out.Len())
	b.out.Truncate(keep)
	b.out.Write(p)
}

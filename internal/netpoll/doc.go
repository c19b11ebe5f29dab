// Package netpoll owns non-blocking sockets and the readiness multiplexer.
//
// Ownership boundary:
// - listener/socket setup (non-blocking, close-on-exec)
// - poll-based readiness notification with a bounded timeout
// - mapping of socket results onto ErrWouldBlock, ErrPeerClosed, ErrIO
//
// Everything here is driven from one goroutine. Nothing in this package
// blocks except Poller.Wait, and only for the timeout it is given.
package netpoll

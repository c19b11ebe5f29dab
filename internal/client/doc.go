// Package client owns the chat client role.
//
// Ownership boundary:
// - the non-blocking connection to one server
// - the single pending request slot (last writer wins)
// - response decoding and delivery of chat lines to a Sink
//
// The host application calls Update once per tick, or Run from a dedicated
// goroutine. Client is not safe for concurrent use.
package client

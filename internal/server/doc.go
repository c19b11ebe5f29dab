// Package server owns the chat server role.
//
// Ownership boundary:
// - listener and per-connection state machines
// - the connection registry and broadcast fan-out
// - action dispatch (name, color, chat line formatting)
//
// Lifecycle order:
// - accept -> read/decode -> dispatch -> broadcast -> drain -> read
//
// - one goroutine drives Update; nothing here is safe for concurrent use.
//
// - a failing connection is closed and removed; it never stops the loop.
package server

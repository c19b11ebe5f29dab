// Package protocol owns the chat wire contract.
//
// Ownership boundary:
// - frame: length-prefixed JSON header + payload codec
// - chat: request/response payloads and the action variant
package protocol

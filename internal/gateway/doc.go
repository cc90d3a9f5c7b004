// Package gateway keeps the control connection of a client alive.
//
// A Session resolves the websocket URL, identifies or resumes on HELLO,
// heartbeats with a deadline, and reconnects after transient closes (1001 and
// 1006) while keeping its session id and sequence number. Any other close is
// terminal and published as a Disconnect on the client bus.
package gateway

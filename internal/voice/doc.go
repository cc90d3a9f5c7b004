// Package voice runs the per-guild voice connection: the control websocket
// handshake, IP discovery and keepalives over UDP, and the speaking map
// used to route inbound audio.
//
// A Session starts its handshake once it holds both halves of the join: the
// session id from the gateway voice state and the token and endpoint from the
// voice server update. Callers wait for the outcome with Session.Wait.
package voice

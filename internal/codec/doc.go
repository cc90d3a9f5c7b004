// Package codec encodes and decodes the wire formats used by the client.
//
// Gateway and voice control frames are JSON objects of the form
// {"op": <int>, "d": <payload>} where gateway dispatches also carry a
// sequence number "s" and an event name "t". Voice media travels over UDP as
// a 12-byte header followed by an Opus frame sealed with NaCl secretbox,
// using the header zero-padded to 24 bytes as the nonce.
//
// Everything here is stateless.
package codec

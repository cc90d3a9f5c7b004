// Package opus moves Opus audio between an encoder process, stored clips and
// a voice session.
//
// Stored clips use a minimal binary format: concatenated length-prefixed
// frames ([uint16 LE length][opus bytes]). No headers, no metadata.
//
// Outbound frames are paced at 20ms, wrapped in a voice header and sealed
// with the session key by a Transmitter. A Receiver opens inbound packets and
// decodes them per speaker. A Context ties both to a running encoder process.
package opus

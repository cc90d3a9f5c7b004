package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	DiscoveryPacketSize = 70
	KeepAliveSize       = 8

	// MaxKeepAlive is the largest counter that fits the 6 bytes the
	// keepalive packet reserves for it.
	MaxKeepAlive = 1<<48 - 1
)

var ErrDiscoveryReply = errors.New("malformed ip discovery reply")

// DiscoveryRequest returns the probe sent to learn the external address: the
// SSRC big-endian at offset 0, zeros elsewhere.
func DiscoveryRequest(ssrc uint32) []byte {
	b := make([]byte, DiscoveryPacketSize)
	binary.BigEndian.PutUint32(b[0:4], ssrc)
	return b
}

// ParseDiscoveryResponse reads the NUL-terminated address starting at offset 4
// and the little-endian port in the final two bytes.
func ParseDiscoveryResponse(b []byte) (string, int, error) {
	if len(b) < 8 {
		return "", 0, ErrDiscoveryReply
	}
	body := b[4 : len(b)-2]
	if end := bytes.IndexByte(body, 0); end >= 0 {
		body = body[:end]
	}
	if len(body) == 0 {
		return "", 0, ErrDiscoveryReply
	}
	port := binary.LittleEndian.Uint16(b[len(b)-2:])
	return string(body), int(port), nil
}

// KeepAlivePacket encodes counter little-endian into the first 6 bytes of an
// 8-byte packet.
func KeepAlivePacket(counter uint64) []byte {
	b := make([]byte, KeepAliveSize)
	var full [8]byte
	binary.LittleEndian.PutUint64(full[:], counter&MaxKeepAlive)
	copy(b, full[:6])
	return b
}

// NextKeepAlive increments the keepalive counter, wrapping to zero once it
// would exceed MaxKeepAlive.
func NextKeepAlive(counter uint64) uint64 {
	if counter >= MaxKeepAlive {
		return 0
	}
	return counter + 1
}

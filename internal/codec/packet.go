package codec

import (
	"encoding/binary"
	"errors"
	"time"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	HeaderSize = 12
	NonceSize  = 24

	SampleRate    = 48000
	FrameSamples  = 960
	FrameDuration = 20 * time.Millisecond

	versionFlags = 0x80
	payloadType  = 0x78
)

// SilenceFrame is the Opus frame sent while a stream is open but idle.
var SilenceFrame = []byte{0xF8, 0xFF, 0xFE}

var (
	ErrShortPacket = errors.New("voice packet shorter than header")
	ErrDecrypt     = errors.New("failed to decrypt voice packet")
)

// Header is the RTP-like header prepended to every voice packet.
type Header struct {
	Sequence  uint16
	Timestamp uint32
	SSRC      uint32
}

// Next advances to the following frame. Both counters wrap at their width.
func (h *Header) Next() {
	h.Sequence++
	h.Timestamp += FrameSamples
}

func (h Header) Bytes() [HeaderSize]byte {
	var b [HeaderSize]byte
	b[0] = versionFlags
	b[1] = payloadType
	binary.BigEndian.PutUint16(b[2:4], h.Sequence)
	binary.BigEndian.PutUint32(b[4:8], h.Timestamp)
	binary.BigEndian.PutUint32(b[8:12], h.SSRC)
	return b
}

// Nonce is the header zero-padded to the secretbox nonce width.
func (h Header) Nonce() *[NonceSize]byte {
	var nonce [NonceSize]byte
	b := h.Bytes()
	copy(nonce[:], b[:])
	return &nonce
}

func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrShortPacket
	}
	return Header{
		Sequence:  binary.BigEndian.Uint16(b[2:4]),
		Timestamp: binary.BigEndian.Uint32(b[4:8]),
		SSRC:      binary.BigEndian.Uint32(b[8:12]),
	}, nil
}

// Seal builds a complete voice packet: header followed by the sealed frame.
func Seal(h Header, key *[32]byte, frame []byte) []byte {
	head := h.Bytes()
	out := make([]byte, HeaderSize, HeaderSize+len(frame)+secretbox.Overhead)
	copy(out, head[:])
	return secretbox.Seal(out, frame, h.Nonce(), key)
}

// Open splits a voice packet and decrypts its payload.
func Open(packet []byte, key *[32]byte) (Header, []byte, error) {
	h, err := ParseHeader(packet)
	if err != nil {
		return Header{}, nil, err
	}
	frame, ok := secretbox.Open(nil, packet[HeaderSize:], h.Nonce(), key)
	if !ok {
		return h, nil, ErrDecrypt
	}
	return h, frame, nil
}

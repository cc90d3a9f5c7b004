package opus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/DragonOfMath/discord.io/internal/codec"
	"layeh.com/gopus"
)

const (
	DefaultChannels = 2
	DefaultBitrate  = 64000

	// maxPacket bounds a single encoded frame.
	maxPacket = codec.FrameSamples * DefaultChannels * 2
)

// PCMFrameBytes is the size of one 20ms frame of s16le PCM.
func PCMFrameBytes(channels int) int {
	return 1920 * channels
}

// Decoder turns one Opus frame into interleaved PCM.
type Decoder interface {
	Decode(frame []byte) ([]int16, error)
}

// DecoderFactory creates a decoder for one stream.
type DecoderFactory func() (Decoder, error)

// PCMEncoder encodes 20ms PCM frames with libopus.
type PCMEncoder struct {
	enc      *gopus.Encoder
	channels int
}

func NewPCMEncoder(channels, bitrate int) (*PCMEncoder, error) {
	enc, err := gopus.NewEncoder(codec.SampleRate, channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}
	enc.SetBitrate(bitrate)
	return &PCMEncoder{enc: enc, channels: channels}, nil
}

func (e *PCMEncoder) Encode(pcm []int16) ([]byte, error) {
	return e.enc.Encode(pcm, codec.FrameSamples, maxPacket)
}

// PCMFrames encodes s16le PCM read from r. An incomplete trailing frame is
// padded with silence.
type PCMFrames struct {
	r    io.Reader
	enc  *PCMEncoder
	raw  []byte
	pcm  []int16
	done bool
}

func NewPCMFrames(r io.Reader, enc *PCMEncoder) *PCMFrames {
	return &PCMFrames{
		r:   r,
		enc: enc,
		raw: make([]byte, PCMFrameBytes(enc.channels)),
		pcm: make([]int16, codec.FrameSamples*enc.channels),
	}
}

func (p *PCMFrames) ReadFrame() ([]byte, error) {
	if p.done {
		return nil, io.EOF
	}
	n, err := io.ReadFull(p.r, p.raw)
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF):
		clear(p.raw[n:])
		p.done = true
	case err != nil:
		return nil, err
	}
	for i := range p.pcm {
		p.pcm[i] = int16(binary.LittleEndian.Uint16(p.raw[2*i:]))
	}
	return p.enc.Encode(p.pcm)
}

type pcmDecoder struct {
	dec *gopus.Decoder
}

// NewPCMDecoder returns a libopus backed decoder.
func NewPCMDecoder(channels int) (Decoder, error) {
	dec, err := gopus.NewDecoder(codec.SampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}
	return &pcmDecoder{dec: dec}, nil
}

func (d *pcmDecoder) Decode(frame []byte) ([]int16, error) {
	return d.dec.Decode(frame, codec.FrameSamples, false)
}

// PCMDecoders creates libopus decoders for the given channel count.
func PCMDecoders(channels int) DecoderFactory {
	return func() (Decoder, error) {
		return NewPCMDecoder(channels)
	}
}

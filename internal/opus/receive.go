package opus

import (
	"log/slog"
	"sync"

	"github.com/DragonOfMath/discord.io/internal/codec"
	"github.com/DragonOfMath/discord.io/internal/events"
	"github.com/disgoorg/snowflake/v2"
)

const (
	EventIncoming        = "incoming"
	EventNewMemberStream = "newMemberStream"
	EventDone            = "done"
)

// Incoming is published for every decoded inbound frame. UserID is zero when
// the speaker of the SSRC is not known yet.
type Incoming struct {
	SSRC   uint32
	UserID snowflake.ID
	PCM    []int16
}

// Inbound is the receiving half of a voice session.
type Inbound interface {
	SecretKey() (*[32]byte, bool)
	SelfDeaf() bool
	UserBySSRC(ssrc uint32) (snowflake.ID, bool)
}

// Receiver decrypts inbound packets and decodes them with one decoder per
// known speaker, falling back to a shared decoder.
type Receiver struct {
	link       Inbound
	bus        *events.Bus
	newDecoder DecoderFactory
	logger     *slog.Logger

	mu       sync.Mutex
	mixed    Decoder
	decoders map[snowflake.ID]Decoder
}

func NewReceiver(link Inbound, bus *events.Bus, newDecoder DecoderFactory, logger *slog.Logger) *Receiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Receiver{
		link:       link,
		bus:        bus,
		newDecoder: newDecoder,
		logger:     logger,
		decoders:   make(map[snowflake.ID]Decoder),
	}
}

// HandlePacket processes one datagram. Keepalive replies, packets received
// while deafened and packets that fail to decrypt or decode are dropped.
func (r *Receiver) HandlePacket(pkt []byte) {
	if len(pkt) == codec.KeepAliveSize || r.link.SelfDeaf() {
		return
	}
	key, ok := r.link.SecretKey()
	if !ok {
		return
	}
	h, frame, err := codec.Open(pkt, key)
	if err != nil {
		return
	}

	userID, known := r.link.UserBySSRC(h.SSRC)
	dec, created, err := r.decoder(userID, known)
	if created {
		r.bus.Emit(EventNewMemberStream, userID)
	}
	if err != nil {
		r.logger.Debug("no decoder for inbound audio", "ssrc", h.SSRC, "error", err)
		return
	}
	pcm, err := dec.Decode(frame)
	if err != nil {
		return
	}
	r.bus.Emit(EventIncoming, Incoming{SSRC: h.SSRC, UserID: userID, PCM: pcm})
}

func (r *Receiver) decoder(userID snowflake.ID, known bool) (Decoder, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !known {
		if r.mixed == nil {
			dec, err := r.newDecoder()
			if err != nil {
				return nil, false, err
			}
			r.mixed = dec
		}
		return r.mixed, false, nil
	}

	if dec, ok := r.decoders[userID]; ok {
		return dec, false, nil
	}
	dec, err := r.newDecoder()
	if err != nil {
		return nil, false, err
	}
	r.decoders[userID] = dec
	return dec, true, nil
}

// Reset forgets every decoder.
func (r *Receiver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mixed = nil
	clear(r.decoders)
}

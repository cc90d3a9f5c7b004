package opus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/DragonOfMath/discord.io/internal/codec"
)

var ErrNoKey = errors.New("voice session has no secret key")

// Link is the outbound half of a voice session.
type Link interface {
	SSRC() uint32
	SecretKey() (*[32]byte, bool)
	SelfMute() bool
	WritePacket(b []byte) error
	SetSpeaking(speaking bool) error
}

// Transmitter seals frames and sends them at the frame rate.
type Transmitter struct {
	link   Link
	logger *slog.Logger

	mu     sync.Mutex
	header codec.Header
}

func NewTransmitter(link Link, logger *slog.Logger) *Transmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transmitter{
		link:   link,
		logger: logger,
		header: codec.Header{SSRC: link.SSRC()},
	}
}

// Send advances the header and sends one frame. Nothing is sent while the
// session is self-muted and send errors are dropped.
func (t *Transmitter) Send(frame []byte) error {
	key, ok := t.link.SecretKey()
	if !ok {
		return ErrNoKey
	}

	t.mu.Lock()
	t.header.Next()
	h := t.header
	t.mu.Unlock()

	if t.link.SelfMute() {
		return nil
	}
	if err := t.link.WritePacket(codec.Seal(h, key, frame)); err != nil {
		t.logger.Debug("dropping voice packet", "sequence", h.Sequence, "error", err)
	}
	return nil
}

// Header returns the header of the last frame sent.
func (t *Transmitter) Header() codec.Header {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.header
}

// Play sends frames from src until it is exhausted or ctx is done. Frame n
// goes out at start + n*20ms. Speaking is on for the duration.
func (t *Transmitter) Play(ctx context.Context, src FrameSource) error {
	if _, ok := t.link.SecretKey(); !ok {
		return ErrNoKey
	}
	if err := t.link.SetSpeaking(true); err != nil {
		t.logger.Warn("failed to start speaking", "error", err)
	}
	defer func() {
		if err := t.link.SetSpeaking(false); err != nil {
			t.logger.Warn("failed to stop speaking", "error", err)
		}
	}()

	start := time.Now()
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for n := 1; ; n++ {
		frame, err := src.ReadFrame()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		timer.Reset(time.Until(start.Add(time.Duration(n) * codec.FrameDuration)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		if err := t.Send(frame); err != nil {
			return err
		}
	}
}

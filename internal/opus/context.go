package opus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/DragonOfMath/discord.io/internal/events"
)

var ErrContextClosed = errors.New("audio context is closed")

// Session is what a Context needs from a voice session.
type Session interface {
	Link
	Inbound
	Bus() *events.Bus
	OnClose(fn func())
	SetPacketHandler(fn func([]byte))
}

type ContextConfig struct {
	// Encoder starts the process that turns written audio into frames.
	Encoder ProcessFactory
	// Decoders enables inbound audio when set.
	Decoders DecoderFactory
	// Transmitter is shared with other players of the same session so the
	// packet sequence and timestamp keep counting across them. A new one is
	// created when nil.
	Transmitter *Transmitter
	Logger      *slog.Logger
}

// Context streams audio written to it through an encoder process into the
// voice session. When the encoder output ends the queued frames are played
// out, EventDone is published on the session bus and a fresh encoder is
// started.
type Context struct {
	session Session
	tx      *Transmitter
	rx      *Receiver
	factory ProcessFactory
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	proc   Process
	queue  *Queue
	closed bool
}

func NewContext(s Session, cfg ContextConfig) (*Context, error) {
	if _, ok := s.SecretKey(); !ok {
		return nil, ErrNoKey
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tx := cfg.Transmitter
	if tx == nil {
		tx = NewTransmitter(s, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Context{
		session: s,
		tx:      tx,
		factory: cfg.Encoder,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	if err := c.spawn(); err != nil {
		cancel()
		return nil, err
	}
	if cfg.Decoders != nil {
		c.rx = NewReceiver(s, s.Bus(), cfg.Decoders, logger)
		s.SetPacketHandler(c.rx.HandlePacket)
	}
	s.OnClose(func() { _ = c.Close() })
	return c, nil
}

func (c *Context) spawn() error {
	proc, err := c.factory(c.ctx)
	if err != nil {
		return fmt.Errorf("failed to start encoder: %w", err)
	}
	q := NewQueue()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = proc.Close()
		return ErrContextClosed
	}
	c.proc, c.queue = proc, q
	c.mu.Unlock()

	go c.pump(proc, q)
	return nil
}

// pump moves encoder output into q. Playback starts with the first frame.
func (c *Context) pump(proc Process, q *Queue) {
	var playing chan struct{}
	for {
		frame, err := proc.ReadFrame()
		if err != nil {
			break
		}
		q.Push(frame)
		if playing == nil {
			playing = make(chan struct{})
			go func() {
				defer close(playing)
				if err := c.tx.Play(c.ctx, q); err != nil && !errors.Is(err, context.Canceled) {
					c.logger.Warn("audio playback stopped", "error", err)
				}
			}()
		}
	}
	q.End()
	if playing != nil {
		<-playing
	}
	_ = proc.Close()

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}

	c.session.Bus().Emit(EventDone, nil)
	if err := c.spawn(); err != nil && !errors.Is(err, ErrContextClosed) {
		c.logger.Error("failed to recreate encoder", "error", err)
	}
}

// Write feeds audio to the current encoder.
func (c *Context) Write(p []byte) (int, error) {
	c.mu.Lock()
	proc, closed := c.proc, c.closed
	c.mu.Unlock()
	if closed {
		return 0, ErrContextClosed
	}
	return proc.Write(p)
}

// EndInput marks the end of the current stream. The encoder flushes and the
// stream plays out.
func (c *Context) EndInput() error {
	c.mu.Lock()
	proc, closed := c.proc, c.closed
	c.mu.Unlock()
	if closed {
		return ErrContextClosed
	}
	return proc.CloseInput()
}

// Stop drops whatever is queued and kills the current encoder.
func (c *Context) Stop() {
	c.mu.Lock()
	proc, q := c.proc, c.queue
	c.mu.Unlock()
	if q != nil {
		q.Clear()
	}
	if proc != nil {
		_ = proc.Close()
	}
}

// Play sends already encoded frames, bypassing the encoder. It blocks until
// src is exhausted or ctx is done.
func (c *Context) Play(ctx context.Context, src FrameSource) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()
	return c.tx.Play(ctx, src)
}

func (c *Context) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	proc := c.proc
	c.mu.Unlock()

	c.cancel()
	if proc != nil {
		_ = proc.Close()
	}
	if c.rx != nil {
		c.session.SetPacketHandler(nil)
		c.rx.Reset()
	}
	return nil
}

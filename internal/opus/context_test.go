package opus_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DragonOfMath/discord.io/internal/codec"
	"github.com/DragonOfMath/discord.io/internal/events"
	"github.com/DragonOfMath/discord.io/internal/opus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wait = 2 * time.Second

func newTestContext(t *testing.T) (*opus.Context, *fakeSession, *fakeFactory, *atomic.Int32) {
	t.Helper()
	s := newFakeSession()
	factory := &fakeFactory{}
	var done atomic.Int32
	s.bus.On(opus.EventDone, func(events.Event) { done.Add(1) })

	ac, err := opus.NewContext(s, opus.ContextConfig{
		Encoder:  factory.start,
		Decoders: func() (opus.Decoder, error) { return &fakeDecoder{}, nil },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ac.Close() })
	return ac, s, factory, &done
}

func TestContext_PlaysEncoderOutput(t *testing.T) {
	ac, s, factory, done := newTestContext(t)
	require.Equal(t, 1, factory.count())

	n, err := ac.Write([]byte("pcm"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte("pcm"), factory.proc(0).written)

	proc := factory.proc(0)
	proc.frames <- []byte("a")
	proc.frames <- []byte("b")
	require.NoError(t, ac.EndInput())

	require.Eventually(t, func() bool { return done.Load() == 1 }, wait, 5*time.Millisecond)
	assert.Equal(t, 2, factory.count(), "encoder is recreated after its output ends")

	var payloads []string
	for _, pkt := range s.sent() {
		_, frame, err := codec.Open(pkt, &testKey)
		require.NoError(t, err)
		payloads = append(payloads, string(frame))
	}
	assert.Equal(t, []string{"a", "b"}, payloads)
	assert.Equal(t, []bool{true, false}, s.speakingLog())
}

func TestContext_SharedTransmitterKeepsCounting(t *testing.T) {
	s := newFakeSession()
	factory := &fakeFactory{}
	var done atomic.Int32
	s.bus.On(opus.EventDone, func(events.Event) { done.Add(1) })

	tx := opus.NewTransmitter(s, nil)
	ac, err := opus.NewContext(s, opus.ContextConfig{Encoder: factory.start, Transmitter: tx})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ac.Close() })

	proc := factory.proc(0)
	proc.frames <- []byte("a")
	proc.frames <- []byte("b")
	require.NoError(t, ac.EndInput())
	require.Eventually(t, func() bool { return done.Load() == 1 }, wait, 5*time.Millisecond)

	require.NoError(t, tx.Play(context.Background(), &sliceSource{frames: [][]byte{[]byte("c")}}))

	var seqs []uint16
	var stamps []uint32
	for _, pkt := range s.sent() {
		h, _, err := codec.Open(pkt, &testKey)
		require.NoError(t, err)
		seqs = append(seqs, h.Sequence)
		stamps = append(stamps, h.Timestamp)
	}
	assert.Equal(t, []uint16{1, 2, 3}, seqs)
	assert.Equal(t, []uint32{codec.FrameSamples, 2 * codec.FrameSamples, 3 * codec.FrameSamples}, stamps)
}

func TestContext_Stop(t *testing.T) {
	ac, _, factory, done := newTestContext(t)
	factory.proc(0).frames <- []byte("a")

	ac.Stop()
	require.Eventually(t, func() bool { return done.Load() == 1 }, wait, 5*time.Millisecond)
	assert.Equal(t, 2, factory.count())
}

func TestContext_ReceivesAudio(t *testing.T) {
	_, s, _, _ := newTestContext(t)
	incoming := collect(s.bus, opus.EventIncoming)

	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	require.NotNil(t, handler)

	handler(packet(5, "x"))
	assert.Len(t, *incoming, 1)
}

func TestContext_ClosedWithSession(t *testing.T) {
	ac, s, factory, done := newTestContext(t)
	s.close()

	_, err := ac.Write([]byte("x"))
	assert.ErrorIs(t, err, opus.ErrContextClosed)
	assert.ErrorIs(t, ac.EndInput(), opus.ErrContextClosed)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), done.Load())
	assert.Equal(t, 1, factory.count())
	assert.Nil(t, s.handler)

	err = ac.Play(context.Background(), &sliceSource{frames: [][]byte{[]byte("a")}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewContext_Errors(t *testing.T) {
	s := newFakeSession()
	s.key = nil
	_, err := opus.NewContext(s, opus.ContextConfig{Encoder: (&fakeFactory{}).start})
	assert.ErrorIs(t, err, opus.ErrNoKey)

	boom := errors.New("exec: ffmpeg not found")
	_, err = opus.NewContext(newFakeSession(), opus.ContextConfig{Encoder: (&fakeFactory{err: boom}).start})
	assert.ErrorIs(t, err, boom)
}

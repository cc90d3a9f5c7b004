package opus_test

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/DragonOfMath/discord.io/internal/events"
	"github.com/DragonOfMath/discord.io/internal/opus"
	"github.com/disgoorg/snowflake/v2"
)

var testKey = [32]byte{1, 2, 3, 4}

type fakeSession struct {
	mu       sync.Mutex
	key      *[32]byte
	mute     bool
	deaf     bool
	speakers map[uint32]snowflake.ID
	packets  [][]byte
	speaking []bool
	writeErr error
	handler  func([]byte)
	onClose  []func()
	bus      *events.Bus
}

func newFakeSession() *fakeSession {
	key := testKey
	return &fakeSession{key: &key, speakers: map[uint32]snowflake.ID{}, bus: events.New(nil)}
}

func (f *fakeSession) SSRC() uint32 { return 42 }

func (f *fakeSession) SecretKey() (*[32]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.key, f.key != nil
}

func (f *fakeSession) SelfMute() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mute
}

func (f *fakeSession) SelfDeaf() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deaf
}

func (f *fakeSession) UserBySSRC(ssrc uint32) (snowflake.ID, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.speakers[ssrc]
	return id, ok
}

func (f *fakeSession) WritePacket(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.packets = append(f.packets, b)
	return f.writeErr
}

func (f *fakeSession) SetSpeaking(speaking bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speaking = append(f.speaking, speaking)
	return nil
}

func (f *fakeSession) Bus() *events.Bus { return f.bus }

func (f *fakeSession) OnClose(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onClose = append(f.onClose, fn)
}

func (f *fakeSession) SetPacketHandler(fn func([]byte)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = fn
}

func (f *fakeSession) close() {
	f.mu.Lock()
	hooks := f.onClose
	f.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (f *fakeSession) sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.packets...)
}

func (f *fakeSession) speakingLog() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.speaking...)
}

var _ opus.Session = (*fakeSession)(nil)

// fakeProcess emits the frames pushed to it until its input is closed.
type fakeProcess struct {
	frames  chan []byte
	killed  chan struct{}
	once    sync.Once
	inOnce  sync.Once
	mu      sync.Mutex
	written []byte
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{frames: make(chan []byte, 16), killed: make(chan struct{})}
}

func (p *fakeProcess) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written = append(p.written, b...)
	return len(b), nil
}

func (p *fakeProcess) ReadFrame() ([]byte, error) {
	select {
	case frame, ok := <-p.frames:
		if !ok {
			return nil, io.EOF
		}
		return frame, nil
	case <-p.killed:
		return nil, io.EOF
	}
}

func (p *fakeProcess) CloseInput() error {
	p.inOnce.Do(func() { close(p.frames) })
	return nil
}

func (p *fakeProcess) Close() error {
	p.once.Do(func() { close(p.killed) })
	return nil
}

type fakeFactory struct {
	mu    sync.Mutex
	procs []*fakeProcess
	err   error
}

func (f *fakeFactory) start(context.Context) (opus.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p := newFakeProcess()
	f.procs = append(f.procs, p)
	return p, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.procs)
}

func (f *fakeFactory) proc(i int) *fakeProcess {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.procs[i]
}

// fakeDecoder returns the frame bytes widened to samples.
type fakeDecoder struct {
	fail bool
}

func (d *fakeDecoder) Decode(frame []byte) ([]int16, error) {
	if d.fail {
		return nil, errors.New("corrupt frame")
	}
	pcm := make([]int16, len(frame))
	for i, b := range frame {
		pcm[i] = int16(b)
	}
	return pcm, nil
}

type sliceSource struct {
	frames [][]byte
}

func (s *sliceSource) ReadFrame() ([]byte, error) {
	if len(s.frames) == 0 {
		return nil, io.EOF
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

package opus

import (
	"io"
	"sync"

	"github.com/DragonOfMath/discord.io/internal/codec"
)

// Queue buffers frames for a Transmitter. Reading an empty queue yields a
// silence frame until End is called, then io.EOF once it drains.
type Queue struct {
	mu     sync.Mutex
	frames [][]byte
	ended  bool
}

var _ FrameSource = (*Queue)(nil)

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Push(frame []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.ended {
		q.frames = append(q.frames, frame)
	}
}

func (q *Queue) End() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ended = true
}

// Clear drops every buffered frame.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.frames = nil
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

func (q *Queue) ReadFrame() ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.frames) == 0 {
		if q.ended {
			return nil, io.EOF
		}
		return codec.SilenceFrame, nil
	}
	frame := q.frames[0]
	q.frames[0] = nil
	q.frames = q.frames[1:]
	return frame, nil
}

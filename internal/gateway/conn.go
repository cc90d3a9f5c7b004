package gateway

import (
	"sync"
	"time"

	"github.com/DragonOfMath/discord.io/internal/codec"
	"github.com/gorilla/websocket"
)

type closeIntent struct {
	code      int
	reason    string
	reconnect bool
}

// conn is one websocket connection and the timers bound to it. Timers
// belonging to a replaced connection are stopped in teardown and never touch
// its successor.
type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	mu       sync.Mutex
	intent   *closeIntent
	closed   bool
	beating  bool
	deadline *time.Timer
	lastBeat time.Time
	timers   []*time.Timer
	stop     chan struct{}
	stopOnce sync.Once
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{ws: ws, stop: make(chan struct{})}
}

func (c *conn) send(op codec.Opcode, d any) error {
	data, err := codec.EncodeFrame(op, d)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// close sends a close frame and drops the socket. The first intent wins.
func (c *conn) close(intent closeIntent) {
	c.mu.Lock()
	if c.intent != nil {
		c.mu.Unlock()
		return
	}
	c.intent = &intent
	c.mu.Unlock()

	msg := websocket.FormatCloseMessage(intent.code, intent.reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = c.ws.Close()
}

func (c *conn) closeIntent() *closeIntent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intent
}

// startBeating reports whether the heartbeat loop should be started. It is
// started at most once per connection.
func (c *conn) startBeating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.beating || c.closed {
		return false
	}
	c.beating = true
	return true
}

// arm starts the heartbeat deadline. It reports false when the previous
// heartbeat is still unacknowledged.
func (c *conn) arm(d time.Duration, expire func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	if c.deadline != nil {
		return false
	}
	c.lastBeat = time.Now()
	c.deadline = time.AfterFunc(d, expire)
	return true
}

// ack clears the deadline and returns the round trip of the last heartbeat.
func (c *conn) ack() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deadline == nil {
		return 0, false
	}
	c.deadline.Stop()
	c.deadline = nil
	return time.Since(c.lastBeat), true
}

func (c *conn) stopDeadline() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deadline != nil {
		c.deadline.Stop()
		c.deadline = nil
	}
}

func (c *conn) after(d time.Duration, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.timers = append(c.timers, time.AfterFunc(d, fn))
}

func (c *conn) teardown() {
	c.mu.Lock()
	c.closed = true
	if c.deadline != nil {
		c.deadline.Stop()
		c.deadline = nil
	}
	for _, t := range c.timers {
		t.Stop()
	}
	c.timers = nil
	c.mu.Unlock()

	c.stopOnce.Do(func() { close(c.stop) })
	_ = c.ws.Close()
}

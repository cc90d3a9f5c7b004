package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/DragonOfMath/discord.io/internal/codec"
	"github.com/DragonOfMath/discord.io/internal/events"
	"github.com/gorilla/websocket"
)

const (
	EventAny        = "any"
	EventDebug      = "debug"
	EventReady      = "ready"
	EventDisconnect = "disconnect"

	DefaultReadyTimeout = 3500 * time.Millisecond
)

var (
	ErrNotConnected = errors.New("gateway is not connected")
	ErrAlreadyOpen  = errors.New("gateway session is already open")

	errClosing = errors.New("gateway session is closing")
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingHello
	StateIdentifying
	StateResuming
	StateOnline
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAwaitingHello:
		return "awaiting hello"
	case StateIdentifying:
		return "identifying"
	case StateResuming:
		return "resuming"
	case StateOnline:
		return "online"
	case StateReconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Disconnect is published when the session stops for good.
type Disconnect struct {
	Code   int
	Reason string
	Err    error
}

// Resolver returns the websocket URL to dial, query string included.
type Resolver interface {
	GatewayURL(ctx context.Context) (string, error)
}

// Handler applies dispatches. AllAvailable is polled after every dispatch
// until the session is ready.
type Handler interface {
	HandleDispatch(f codec.Frame)
	AllAvailable() bool
}

type Config struct {
	Token        string
	Shard        []int
	Compress     bool
	Presence     *codec.StatusUpdate
	ReadyTimeout time.Duration
}

type Option func(*Session)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

func WithDialer(d *websocket.Dialer) Option {
	return func(s *Session) {
		s.dialer = d
	}
}

func WithConnectGate(g *ConnectGate) Option {
	return func(s *Session) {
		s.gate = g
	}
}

// WithJitter replaces the delay before re-identifying after a
// non-resumable INVALID_SESSION.
func WithJitter(fn func() time.Duration) Option {
	return func(s *Session) {
		s.jitter = fn
	}
}

func defaultJitter() time.Duration {
	return time.Duration(1000+rand.IntN(4000)) * time.Millisecond
}

type readyWait struct {
	frame   codec.Frame
	timer   *time.Timer
	expired bool
}

type Session struct {
	cfg      Config
	resolver Resolver
	handler  Handler
	bus      *events.Bus
	gate     *ConnectGate
	dialer   *websocket.Dialer
	logger   *slog.Logger
	jitter   func() time.Duration

	mu        sync.Mutex
	state     State
	conn      *conn
	seq       int64
	sessionID string
	pings     []time.Duration
	ready     bool
	waiting   *readyWait
	done      chan struct{}
	closing   bool
	cancel    context.CancelFunc
}

func New(cfg Config, resolver Resolver, handler Handler, bus *events.Bus, opts ...Option) *Session {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = DefaultReadyTimeout
	}
	s := &Session{
		cfg:      cfg,
		resolver: resolver,
		handler:  handler,
		bus:      bus,
		gate:     NewConnectGate(DefaultConnectInterval),
		dialer:   websocket.DefaultDialer,
		logger:   slog.Default(),
		jitter:   defaultJitter,
		done:     make(chan struct{}),
	}
	close(s.done)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects and returns once the websocket is established. The session
// then runs in the background until a terminal close, Close, or until ctx is
// done.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return ErrAlreadyOpen
	}
	s.state = StateConnecting
	done := make(chan struct{})
	s.done = done
	s.closing = false
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	c, err := s.connect(runCtx)
	if err != nil {
		s.terminate(Disconnect{Code: 0, Reason: codec.GatewayCloseReason(0, ""), Err: err})
		return err
	}

	go s.loop(runCtx, c)
	go func() {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			current := s.done == done
			s.mu.Unlock()
			if current {
				_ = s.Close()
			}
		case <-done:
		}
	}()
	return nil
}

// Done is closed when the session has stopped.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

var manualClose = closeIntent{code: websocket.CloseNormalClosure, reason: "Manual disconnect"}

// Close disconnects with a normal close. It does not reconnect, also when
// called while a reconnect is pending.
func (s *Session) Close() error {
	s.mu.Lock()
	c, cancel := s.conn, s.cancel
	if s.state != StateDisconnected {
		s.closing = true
	}
	s.mu.Unlock()

	if c != nil {
		c.close(manualClose)
	}
	if cancel != nil {
		cancel()
	}
	return nil
}

func (s *Session) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// Send writes a command frame on the current connection.
func (s *Session) Send(op codec.Opcode, d any) error {
	s.mu.Lock()
	c := s.conn
	s.mu.Unlock()
	if c == nil {
		return ErrNotConnected
	}
	if err := c.send(op, d); err != nil {
		return fmt.Errorf("failed to send op %d: %w", op, err)
	}
	return nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *Session) Seq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Ping is the mean heartbeat round trip over the last samples.
func (s *Session) Ping() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return meanPing(s.pings)
}

const pingWindow = 10

func meanPing(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	var sum time.Duration
	for _, p := range samples {
		sum += p
	}
	return (sum / time.Duration(len(samples))).Round(time.Millisecond)
}

func (s *Session) recordPing(rtt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pings = append(s.pings, rtt)
	if len(s.pings) > pingWindow {
		s.pings = s.pings[len(s.pings)-pingWindow:]
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) current(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn == c
}

func (s *Session) connect(ctx context.Context) (*conn, error) {
	if err := s.gate.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for connect gate: %w", err)
	}
	url, err := s.resolver.GatewayURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve gateway: %w", err)
	}
	ws, _, err := s.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial gateway: %w", err)
	}

	c := newConn(ws)
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		_ = ws.Close()
		return nil, errClosing
	}
	s.conn = c
	s.state = StateAwaitingHello
	s.mu.Unlock()
	s.logger.Debug("gateway connected", "url", url)
	return c, nil
}

func (s *Session) loop(ctx context.Context, c *conn) {
	for {
		d, reconnect := s.read(c)
		s.teardown(c)
		if !reconnect || ctx.Err() != nil {
			s.terminate(d)
			return
		}

		s.logger.Info("gateway connection lost, resuming", "code", d.Code, "reason", d.Reason)
		s.setState(StateReconnecting)
		next, err := s.connect(ctx)
		if err != nil && s.isClosing() {
			s.terminate(Disconnect{Code: manualClose.code, Reason: manualClose.reason})
			return
		}
		if err != nil {
			s.terminate(Disconnect{Code: 0, Reason: codec.GatewayCloseReason(0, ""), Err: err})
			return
		}
		c = next
	}
}

// read handles frames until the connection fails and reports how it ended.
func (s *Session) read(c *conn) (Disconnect, bool) {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			return closeResult(c, err)
		}
		if mt == websocket.BinaryMessage {
			data, err = codec.Inflate(data)
			if err != nil {
				s.logger.Warn("dropping compressed frame", "error", err)
				continue
			}
		}
		f, err := codec.DecodeFrame(data)
		if err != nil {
			s.logger.Warn("dropping malformed frame", "error", err)
			continue
		}
		s.handle(c, f)
	}
}

func closeResult(c *conn, err error) (Disconnect, bool) {
	if intent := c.closeIntent(); intent != nil {
		return Disconnect{Code: intent.code, Reason: intent.reason}, intent.reconnect
	}
	code, text := codec.CloseAbnormal, err.Error()
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		code, text = ce.Code, ce.Text
	}
	return Disconnect{Code: code, Reason: codec.GatewayCloseReason(code, text)}, codec.IsTransientClose(code)
}

func (s *Session) teardown(c *conn) {
	c.teardown()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == c {
		s.conn = nil
	}
	s.ready = false
	if s.waiting != nil {
		s.waiting.timer.Stop()
		s.waiting = nil
	}
}

func (s *Session) terminate(d Disconnect) {
	s.mu.Lock()
	s.state = StateDisconnected
	s.conn = nil
	s.ready = false
	done, cancel := s.done, s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if d.Err != nil {
		s.logger.Error("gateway disconnected", "code", d.Code, "reason", d.Reason, "error", d.Err)
	} else {
		s.logger.Info("gateway disconnected", "code", d.Code, "reason", d.Reason)
	}
	s.bus.Emit(EventDisconnect, d)

	select {
	case <-done:
	default:
		close(done)
	}
}

func (s *Session) handle(c *conn, f codec.Frame) {
	s.logger.Debug("gateway frame", "op", f.Op, "t", f.T, "s", f.S)
	s.bus.Emit(EventAny, f)
	s.bus.Emit(EventDebug, f)

	switch f.Op {
	case codec.OpDispatch:
		s.dispatch(c, f)
	case codec.OpHeartbeat:
		if err := c.send(codec.OpHeartbeat, codec.HeartbeatPayload(s.Seq())); err != nil {
			s.logger.Warn("failed to answer heartbeat request", "error", err)
		}
	case codec.OpReconnect:
		c.stopDeadline()
		c.close(closeIntent{code: websocket.CloseNormalClosure, reason: "Reconnect requested by Discord", reconnect: true})
	case codec.OpInvalidSession:
		if f.Resumable() {
			s.identifyOrResume(c)
			return
		}
		s.mu.Lock()
		s.seq = 0
		s.sessionID = ""
		s.mu.Unlock()
		c.after(s.jitter(), func() {
			if s.current(c) {
				s.identifyOrResume(c)
			}
		})
	case codec.OpHello:
		var hello codec.Hello
		if err := json.Unmarshal(f.D, &hello); err != nil {
			s.logger.Warn("malformed hello", "error", err)
			return
		}
		s.identifyOrResume(c)
		s.startHeartbeat(c, hello.Interval())
	case codec.OpHeartbeatAck:
		if rtt, ok := c.ack(); ok {
			s.recordPing(rtt)
		}
	}
}

func (s *Session) dispatch(c *conn, f codec.Frame) {
	s.mu.Lock()
	if f.S != 0 {
		s.seq = f.S
	}
	switch f.T {
	case "READY":
		var ready codec.Ready
		if err := json.Unmarshal(f.D, &ready); err == nil {
			s.sessionID = ready.SessionID
		}
		s.state = StateOnline
	case "RESUMED":
		s.state = StateOnline
		s.ready = true
	}
	s.mu.Unlock()

	s.handler.HandleDispatch(f)

	if f.T == "READY" {
		s.waitReady(c, f)
	}
	s.checkReady()
}

func (s *Session) waitReady(c *conn, f codec.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != c {
		return
	}
	if s.waiting != nil {
		s.waiting.timer.Stop()
	}
	w := &readyWait{frame: f}
	w.timer = time.AfterFunc(s.cfg.ReadyTimeout, func() {
		s.mu.Lock()
		if s.waiting == w {
			w.expired = true
		}
		s.mu.Unlock()
		s.checkReady()
	})
	s.waiting = w
}

// checkReady publishes ready once every guild is available or the grace
// timer of the pending READY has run out.
func (s *Session) checkReady() {
	all := s.handler.AllAvailable()

	s.mu.Lock()
	w := s.waiting
	if w == nil || (!w.expired && !all) {
		s.mu.Unlock()
		return
	}
	w.timer.Stop()
	s.waiting = nil
	s.ready = true
	s.mu.Unlock()

	s.bus.Emit(EventReady, w.frame)
}

func (s *Session) identifyOrResume(c *conn) {
	s.mu.Lock()
	seq, sessionID := s.seq, s.sessionID
	resume := seq != 0 && s.cfg.Token != "" && sessionID != ""
	if resume {
		s.state = StateResuming
	} else {
		s.state = StateIdentifying
	}
	s.mu.Unlock()

	var err error
	if resume {
		err = c.send(codec.OpResume, codec.Resume{Token: s.cfg.Token, SessionID: sessionID, Seq: seq})
	} else {
		err = c.send(codec.OpIdentify, codec.NewIdentify(s.cfg.Token, s.cfg.Compress, s.cfg.Shard, s.cfg.Presence))
	}
	if err != nil {
		s.logger.Warn("failed to identify", "resume", resume, "error", err)
	}
}

func (s *Session) startHeartbeat(c *conn, interval time.Duration) {
	if interval <= 0 || !c.startBeating() {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				s.beat(c, interval)
			}
		}
	}()
}

func (s *Session) beat(c *conn, interval time.Duration) {
	expire := func() {
		if s.current(c) {
			c.close(closeIntent{code: websocket.CloseGoingAway, reason: "No heartbeat received", reconnect: true})
		}
	}
	if !c.arm(interval, expire) {
		expire()
		return
	}
	if err := c.send(codec.OpHeartbeat, codec.HeartbeatPayload(s.Seq())); err != nil {
		s.logger.Warn("failed to send heartbeat", "error", err)
	}
}

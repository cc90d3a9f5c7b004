package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/DragonOfMath/discord.io/internal/codec"
	"github.com/DragonOfMath/discord.io/internal/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/gorilla/websocket"
)

const (
	EventSpeaking   = "speaking"
	EventDisconnect = "disconnect"

	DefaultKeepAliveInterval = 5 * time.Second
	DefaultDiscoveryTimeout  = 5 * time.Second
)

var (
	ErrClosed   = errors.New("voice session is closed")
	ErrNotReady = errors.New("voice session is not ready")
)

type State int

const (
	StateIdle State = iota
	StateAwaitingWSOpen
	StateAwaitingReady
	StateDiscovering
	StateAwaitingSessionDescription
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingWSOpen:
		return "awaiting ws open"
	case StateAwaitingReady:
		return "awaiting ready"
	case StateDiscovering:
		return "discovering"
	case StateAwaitingSessionDescription:
		return "awaiting session description"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SpeakingEvent is published on the session bus for every SPEAKING frame.
type SpeakingEvent struct {
	UserID   snowflake.ID
	SSRC     uint32
	Speaking bool
}

// DisconnectEvent is published on the session bus when the session closes.
type DisconnectEvent struct {
	ChannelID snowflake.ID
	Code      int
	Reason    string
}

// Resolver looks up the voice host. *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

var _ Resolver = (*net.Resolver)(nil)

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

func WithResolver(r Resolver) Option {
	return func(s *Session) {
		s.resolver = r
	}
}

// WithControlURL overrides how the control socket URL is derived from the
// endpoint host.
func WithControlURL(fn func(host string) string) Option {
	return func(s *Session) {
		s.controlURL = fn
	}
}

func WithKeepAliveInterval(d time.Duration) Option {
	return func(s *Session) {
		s.keepAliveInterval = d
	}
}

func WithDiscoveryTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.discoveryTimeout = d
	}
}

// WithAudio controls whether the handshake performs IP discovery and waits
// for the session key. Without it the session is ready after READY.
func WithAudio(audio bool) Option {
	return func(s *Session) {
		s.audio = audio
	}
}

func defaultControlURL(host string) string {
	return "wss://" + host
}

// Session is one guild's voice connection.
type Session struct {
	guildID           snowflake.ID
	userID            snowflake.ID
	bus               *events.Bus
	logger            *slog.Logger
	dialer            *websocket.Dialer
	resolver          Resolver
	controlURL        func(host string) string
	keepAliveInterval time.Duration
	discoveryTimeout  time.Duration
	audio             bool

	mu        sync.Mutex
	channelID snowflake.ID
	sessionID string
	token     string
	endpoint  string
	selfMute  bool
	selfDeaf  bool
	state     State
	started   bool
	beating   bool
	ws        *websocket.Conn
	udp       *net.UDPConn
	ssrc      uint32
	mode      string
	key       *[32]byte
	speakers  map[uint32]snowflake.ID
	onPacket  func([]byte)
	onClose   []func()
	release   func()
	closeCode int
	closeText string
	err       error

	writeMu   sync.Mutex
	readyC    chan codec.VoiceReady
	descC     chan codec.SessionDescription
	ready     chan struct{}
	readyOnce sync.Once
	stop      chan struct{}
	closeOnce sync.Once
}

func New(guildID, channelID, userID snowflake.ID, opts ...Option) *Session {
	s := &Session{
		guildID:           guildID,
		userID:            userID,
		channelID:         channelID,
		logger:            slog.Default(),
		dialer:            websocket.DefaultDialer,
		resolver:          net.DefaultResolver,
		controlURL:        defaultControlURL,
		keepAliveInterval: DefaultKeepAliveInterval,
		discoveryTimeout:  DefaultDiscoveryTimeout,
		audio:             true,
		speakers:          make(map[uint32]snowflake.ID),
		readyC:            make(chan codec.VoiceReady, 1),
		descC:             make(chan codec.SessionDescription, 1),
		ready:             make(chan struct{}),
		stop:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("guild_id", guildID)
	s.bus = events.New(s.logger)
	return s
}

// Bus is the session scoped event bus. It is cleared when the session closes.
func (s *Session) Bus() *events.Bus {
	return s.bus
}

func (s *Session) GuildID() snowflake.ID {
	return s.guildID
}

func (s *Session) ChannelID() snowflake.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelID
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateClosed {
		s.state = state
	}
}

func (s *Session) SSRC() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ssrc
}

// SecretKey returns the session key once SESSION_DESCRIPTION has arrived.
func (s *Session) SecretKey() (*[32]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key, s.key != nil
}

func (s *Session) SelfMute() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selfMute
}

func (s *Session) SelfDeaf() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selfDeaf
}

// UserBySSRC returns the user last seen speaking with ssrc.
func (s *Session) UserBySSRC(ssrc uint32) (snowflake.ID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.speakers[ssrc]
	return id, ok
}

// SetVoiceState records the gateway voice state of the client's own user.
func (s *Session) SetVoiceState(sessionID string, selfMute, selfDeaf bool) {
	s.mu.Lock()
	s.sessionID = sessionID
	s.selfMute = selfMute
	s.selfDeaf = selfDeaf
	s.mu.Unlock()
	s.maybeStart()
}

// SetServer records the voice server update. An empty endpoint means the
// server is not allocated yet.
func (s *Session) SetServer(token, endpoint string) {
	s.mu.Lock()
	s.token = token
	s.endpoint = endpoint
	s.mu.Unlock()
	s.maybeStart()
}

func (s *Session) setChannel(channelID snowflake.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelID = channelID
}

func (s *Session) maybeStart() {
	s.mu.Lock()
	start := !s.started && s.state != StateClosed &&
		s.sessionID != "" && s.token != "" && s.endpoint != ""
	if start {
		s.started = true
	}
	s.mu.Unlock()
	if start {
		go s.handshake()
	}
}

// Wait blocks until the handshake has finished and returns its error.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.ready:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.stop
}

func (s *Session) finish(err error) {
	s.readyOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.ready)
	})
}

// OnClose registers fn to run when the session closes, before the session is
// released from its registry. fn runs immediately if the session is closed.
func (s *Session) OnClose(fn func()) {
	s.mu.Lock()
	if s.state != StateClosed {
		s.onClose = append(s.onClose, fn)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	fn()
}

// SetPacketHandler receives every inbound datagram after the handshake.
func (s *Session) SetPacketHandler(fn func([]byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPacket = fn
}

// WritePacket sends one datagram to the voice server.
func (s *Session) WritePacket(b []byte) error {
	s.mu.Lock()
	udp := s.udp
	s.mu.Unlock()
	if udp == nil {
		return ErrNotReady
	}
	_, err := udp.Write(b)
	return err
}

// SetSpeaking toggles the speaking indicator.
func (s *Session) SetSpeaking(speaking bool) error {
	return s.send(codec.VoiceOpSpeaking, codec.Speaking{SSRC: s.SSRC(), Speaking: codec.Flag(speaking)})
}

func (s *Session) send(op codec.VoiceOpcode, d any) error {
	s.mu.Lock()
	ws := s.ws
	s.mu.Unlock()
	if ws == nil {
		return ErrNotReady
	}
	data, err := codec.EncodeVoiceFrame(op, d)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return ws.WriteMessage(websocket.TextMessage, data)
}

// Close tears the session down. It publishes the disconnect event, runs the
// close hooks, stops the keepalives, drops both sockets, clears the bus and
// finally releases the session from its registry.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		ws, udp := s.ws, s.udp
		hooks := s.onClose
		s.onClose = nil
		release := s.release
		evt := DisconnectEvent{ChannelID: s.channelID, Code: s.closeCode, Reason: s.closeText}
		s.mu.Unlock()

		s.logger.Info("voice session closed", "channel_id", evt.ChannelID, "code", evt.Code, "reason", evt.Reason)
		s.bus.Emit(EventDisconnect, evt)
		for _, fn := range hooks {
			fn()
		}
		close(s.stop)
		if udp != nil {
			_ = udp.Close()
		}
		if ws != nil {
			s.writeMu.Lock()
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			s.writeMu.Unlock()
			_ = ws.Close()
		}
		s.finish(ErrClosed)
		s.bus.Clear()
		if release != nil {
			release()
		}
	})
	return nil
}

func hostOf(endpoint string) string {
	host, _, _ := strings.Cut(endpoint, ":")
	return host
}

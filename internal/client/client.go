// Package client ties the gateway session, the entity cache, the voice
// sessions and the control-plane helpers together into one client.
package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/DragonOfMath/discord.io/internal/cache"
	"github.com/DragonOfMath/discord.io/internal/codec"
	"github.com/DragonOfMath/discord.io/internal/events"
	"github.com/DragonOfMath/discord.io/internal/gateway"
	"github.com/DragonOfMath/discord.io/internal/generator"
	"github.com/DragonOfMath/discord.io/internal/opus"
	"github.com/DragonOfMath/discord.io/internal/rest"
	"github.com/DragonOfMath/discord.io/internal/voice"
	"github.com/disgoorg/snowflake/v2"
)

const (
	EventMessage  = "message"
	EventPresence = "presence"
	EventAllUsers = "allUsers"
)

var (
	ErrUnknownChannel     = errors.New("unknown channel")
	ErrNotVoiceChannel    = errors.New("not a voice channel")
	ErrVoiceActive        = errors.New("voice channel already active")
	ErrNotInVoice         = errors.New("not in the voice channel")
	ErrNoPermissionTarget = errors.New("no user or role given")
	ErrNoPermissionChange = errors.New("no allow, deny or default permissions given")
	ErrSamePosition       = errors.New("desired role position is same as current")
	ErrUnknownGuild       = errors.New("unknown guild")
	ErrUnknownRole        = errors.New("unknown role")
	ErrVoiceNotReady      = errors.New("voice connection has not been initialized yet")
	ErrNoEncoder          = opus.ErrNoEncoder
	ErrNoUsersToCollect   = errors.New("there are no users to be collected")
)

// Sender writes a gateway frame.
type Sender interface {
	Send(op codec.Opcode, d any) error
}

var _ Sender = (*gateway.Session)(nil)

type Config struct {
	Token    string
	Bot      bool
	Shard    []int
	Compress bool
	Presence *codec.StatusUpdate
	// MessageCacheLimit bounds the history kept per channel. A negative
	// limit keeps everything.
	MessageCacheLimit int
	LargeThreshold    int
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRequester replaces the HTTP request layer.
func WithRequester(r rest.Requester) Option {
	return func(c *Client) {
		c.rest = r
	}
}

func WithRESTOptions(opts ...rest.Option) Option {
	return func(c *Client) {
		c.restOpts = append(c.restOpts, opts...)
	}
}

// WithSender replaces the gateway session as the target of outgoing frames.
func WithSender(s Sender) Option {
	return func(c *Client) {
		c.sender = s
	}
}

func WithGatewayOptions(opts ...gateway.Option) Option {
	return func(c *Client) {
		c.gatewayOpts = append(c.gatewayOpts, opts...)
	}
}

func WithVoiceOptions(opts ...voice.Option) Option {
	return func(c *Client) {
		c.voiceOpts = append(c.voiceOpts, opts...)
	}
}

// WithEncoderLookup replaces the search for an encoder binary on PATH.
func WithEncoderLookup(fn func(names ...string) (string, error)) Option {
	return func(c *Client) {
		c.lookupEncoder = fn
	}
}

// WithSleep replaces the wait between paged and repeated requests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.sleep = fn
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type voiceFlags struct {
	mute bool
	deaf bool
}

type Client struct {
	cfg           Config
	rest          rest.Requester
	restOpts      []rest.Option
	gateway       *gateway.Session
	gatewayOpts   []gateway.Option
	sender        Sender
	bus           *events.Bus
	cache         *cache.Cache
	history       *cache.History
	voice         *voice.Registry
	voiceOpts     []voice.Option
	lookupEncoder func(names ...string) (string, error)
	sleep         func(ctx context.Context, d time.Duration) error
	nonces        generator.Generator[string]
	logger        *slog.Logger

	mu       sync.Mutex
	flags    map[snowflake.ID]voiceFlags
	audio    map[snowflake.ID]*opus.Context
	tx       map[snowflake.ID]*opus.Transmitter
	presence string
}

var _ gateway.Handler = (*Client)(nil)

func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:           cfg,
		lookupEncoder: opus.LookupEncoder,
		sleep:         sleep,
		nonces:        generator.NewNonceGenerator(),
		logger:        slog.Default(),
		flags:         make(map[snowflake.ID]voiceFlags),
		audio:         make(map[snowflake.ID]*opus.Context),
		tx:            make(map[snowflake.ID]*opus.Transmitter),
		voice:         voice.NewRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.rest == nil {
		c.rest = rest.New(cfg.Token, cfg.Bot, append([]rest.Option{rest.WithLogger(c.logger)}, c.restOpts...)...)
	}
	cacheOpts := []cache.Option{cache.WithLogger(c.logger)}
	if cfg.LargeThreshold > 0 {
		cacheOpts = append(cacheOpts, cache.WithLargeThreshold(cfg.LargeThreshold))
	}
	c.cache = cache.New(cacheOpts...)
	c.history = cache.NewHistory(cfg.MessageCacheLimit)
	c.bus = events.New(c.logger)

	gwCfg := gateway.Config{
		Token:    cfg.Token,
		Shard:    cfg.Shard,
		Compress: cfg.Compress,
		Presence: cfg.Presence,
	}
	gwOpts := append([]gateway.Option{gateway.WithLogger(c.logger)}, c.gatewayOpts...)
	c.gateway = gateway.New(gwCfg, rest.GatewayResolver{Requester: c.rest}, c, c.bus, gwOpts...)
	if c.sender == nil {
		c.sender = c.gateway
	}
	if cfg.Presence != nil {
		c.presence = cfg.Presence.Status
	}
	return c
}

// Connect opens the gateway session. The client runs until Close, a
// terminal disconnect or until ctx is done.
func (c *Client) Connect(ctx context.Context) error {
	return c.gateway.Open(ctx)
}

// Close leaves every voice session and closes the gateway.
func (c *Client) Close() error {
	for _, id := range c.cache.GuildIDs() {
		if s, ok := c.voice.Guild(id); ok {
			_ = s.Close()
		}
	}
	return c.gateway.Close()
}

// Done is closed when the gateway session has stopped.
func (c *Client) Done() <-chan struct{} {
	return c.gateway.Done()
}

func (c *Client) Bus() *events.Bus {
	return c.bus
}

func (c *Client) Cache() *cache.Cache {
	return c.cache
}

func (c *Client) History() *cache.History {
	return c.history
}

func (c *Client) Gateway() *gateway.Session {
	return c.gateway
}

func (c *Client) Ping() time.Duration {
	return c.gateway.Ping()
}

func (c *Client) ID() snowflake.ID {
	return c.cache.SelfID()
}

// VoiceSession returns the active voice session of a guild.
func (c *Client) VoiceSession(guildID snowflake.ID) (*voice.Session, bool) {
	return c.voice.Guild(guildID)
}

// PresenceStatus is the status last sent with SetPresence.
func (c *Client) PresenceStatus() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presence
}

// SetPresence updates the client's status and game.
func (c *Client) SetPresence(p codec.StatusUpdate) error {
	if err := c.sender.Send(codec.OpStatusUpdate, p); err != nil {
		return err
	}
	c.mu.Lock()
	c.presence = p.Status
	c.mu.Unlock()
	return nil
}

// AllAvailable reports whether every guild of the READY snapshot has arrived.
func (c *Client) AllAvailable() bool {
	return c.cache.AllAvailable()
}

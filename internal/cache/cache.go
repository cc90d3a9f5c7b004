package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/DragonOfMath/discord.io/internal/codec"
	"github.com/disgoorg/snowflake/v2"
)

// Kind tags the entity an operation applies to.
type Kind int

const (
	KindGuild Kind = iota
	KindChannel
	KindDMChannel
	KindMember
	KindRole
	KindUser
	KindEmoji
)

func (k Kind) String() string {
	switch k {
	case KindGuild:
		return "guild"
	case KindChannel:
		return "channel"
	case KindDMChannel:
		return "dm channel"
	case KindMember:
		return "member"
	case KindRole:
		return "role"
	case KindUser:
		return "user"
	case KindEmoji:
		return "emoji"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	ErrUnknownKind = errors.New("unknown entity kind")
	ErrDeleteSelf  = errors.New("cannot delete the client's own user")
)

type mutation func(c *Cache, raw json.RawMessage) (any, error)

type kindOps struct {
	create mutation
	update mutation
	delete mutation
}

// kinds is the dispatch table for Create, Update and Delete. Every mutation
// runs with the write lock held.
var kinds = map[Kind]kindOps{
	KindGuild:     {create: (*Cache).guildCreate, update: (*Cache).guildUpdate, delete: (*Cache).guildDelete},
	KindChannel:   {create: (*Cache).channelCreate, update: (*Cache).channelUpdate, delete: (*Cache).channelDelete},
	KindDMChannel: {create: (*Cache).dmCreate, update: (*Cache).dmCreate, delete: (*Cache).dmDelete},
	KindMember:    {create: (*Cache).memberCreate, update: (*Cache).memberUpdate, delete: (*Cache).memberDelete},
	KindRole:      {create: (*Cache).roleCreate, update: (*Cache).roleUpdate, delete: (*Cache).roleDelete},
	KindUser:      {create: (*Cache).userCreate, update: (*Cache).userUpdate, delete: (*Cache).userDelete},
	KindEmoji:     {create: (*Cache).emojiCreate, update: (*Cache).emojiUpdate, delete: (*Cache).emojiDelete},
}

// Cache is the mirrored entity graph of one client.
type Cache struct {
	mu sync.RWMutex

	self     User
	guilds   map[snowflake.ID]*Guild
	channels map[snowflake.ID]snowflake.ID
	dms      map[snowflake.ID]*DMChannel
	dmByUser map[snowflake.ID]snowflake.ID
	users    map[snowflake.ID]*User

	largeThreshold int
	logger         *slog.Logger
}

type Option func(*Cache)

func WithLargeThreshold(n int) Option {
	return func(c *Cache) {
		c.largeThreshold = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

func New(opts ...Option) *Cache {
	c := &Cache{
		guilds:         make(map[snowflake.ID]*Guild),
		channels:       make(map[snowflake.ID]snowflake.ID),
		dms:            make(map[snowflake.ID]*DMChannel),
		dmByUser:       make(map[snowflake.ID]snowflake.ID),
		users:          make(map[snowflake.ID]*User),
		largeThreshold: codec.LargeThreshold,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create adds an entity. Creating an entity that already exists updates it.
// The returned value is a copy of the stored entity, or nil when the
// operation did not apply.
func (c *Cache) Create(kind Kind, raw json.RawMessage) (any, error) {
	return c.apply(kind, raw, func(ops kindOps) mutation { return ops.create })
}

// Update merges the payload into an existing entity field by field.
func (c *Cache) Update(kind Kind, raw json.RawMessage) (any, error) {
	return c.apply(kind, raw, func(ops kindOps) mutation { return ops.update })
}

// Delete removes an entity and returns the removed copy. Deleting an unknown
// entity returns nil.
func (c *Cache) Delete(kind Kind, raw json.RawMessage) (any, error) {
	return c.apply(kind, raw, func(ops kindOps) mutation { return ops.delete })
}

func (c *Cache) apply(kind Kind, raw json.RawMessage, pick func(kindOps) mutation) (any, error) {
	ops, ok := kinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return pick(ops)(c, raw)
}

// storeUser replaces a user record. A known game is kept since user objects
// in member payloads never carry one.
func (c *Cache) storeUser(u User) {
	if u.ID == 0 {
		return
	}
	if u.ID == c.self.ID {
		if u.Game == nil {
			u.Game = c.self.Game
		}
		c.self = u
		return
	}
	if old, ok := c.users[u.ID]; ok && u.Game == nil {
		u.Game = old.Game
	}
	c.users[u.ID] = &u
}

// mergeUser applies a partial user object, creating the user when unknown.
func (c *Cache) mergeUser(fields map[string]any) (User, error) {
	id := fieldID(fields, "id")
	if id == 0 {
		return User{}, nil
	}
	if id == c.self.ID {
		if err := mergeFields(fields, &c.self); err != nil {
			return User{}, err
		}
		return c.self.clone(), nil
	}
	u, ok := c.users[id]
	if !ok {
		u = &User{}
		c.users[id] = u
	}
	if err := mergeFields(fields, u); err != nil {
		return User{}, err
	}
	return u.clone(), nil
}

func (c *Cache) newMember(guildID snowflake.ID, userID snowflake.ID, m Member) Member {
	m.UserID = userID
	m.GuildID = guildID
	m.users = c
	return m
}

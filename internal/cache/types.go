package cache

import (
	"maps"
	"slices"
	"strings"

	"github.com/DragonOfMath/discord.io/internal/codec"
	"github.com/disgoorg/snowflake/v2"
)

const CDN = "https://cdn.discordapp.com"

type ChannelType int

const (
	ChannelText     ChannelType = 0
	ChannelDM       ChannelType = 1
	ChannelVoice    ChannelType = 2
	ChannelGroupDM  ChannelType = 3
	ChannelCategory ChannelType = 4
)

type Guild struct {
	ID          snowflake.ID `json:"id"`
	Name        string       `json:"name"`
	Icon        string       `json:"icon"`
	OwnerID     snowflake.ID `json:"owner_id"`
	Region      string       `json:"region"`
	MemberCount int          `json:"member_count"`
	Large       bool         `json:"large"`
	Unavailable bool         `json:"unavailable"`

	SelfMute bool `json:"-"`
	SelfDeaf bool `json:"-"`

	Members  map[snowflake.ID]Member  `json:"-"`
	Channels map[snowflake.ID]Channel `json:"-"`
	Roles    map[snowflake.ID]Role    `json:"-"`
	Emojis   map[snowflake.ID]Emoji   `json:"-"`
}

// MemberColor returns the color of the highest positioned role of the member
// that has a color set.
func (g Guild) MemberColor(userID snowflake.ID) (int, bool) {
	m, ok := g.Members[userID]
	if !ok {
		return 0, false
	}
	return roleColor(g.Roles, m.Roles)
}

func roleColor(roles map[snowflake.ID]Role, ids []snowflake.ID) (int, bool) {
	var (
		best  Role
		found bool
	)
	for _, id := range ids {
		r, ok := roles[id]
		if !ok || r.Color == 0 {
			continue
		}
		if !found || r.Position > best.Position {
			best, found = r, true
		}
	}
	return best.Color, found
}

func (g *Guild) clone() Guild {
	out := *g
	if g.Members != nil {
		out.Members = make(map[snowflake.ID]Member, len(g.Members))
		for id, m := range g.Members {
			out.Members[id] = m.clone()
		}
	}
	if g.Channels != nil {
		out.Channels = make(map[snowflake.ID]Channel, len(g.Channels))
		for id, ch := range g.Channels {
			out.Channels[id] = ch.clone()
		}
	}
	out.Roles = maps.Clone(g.Roles)
	if g.Emojis != nil {
		out.Emojis = make(map[snowflake.ID]Emoji, len(g.Emojis))
		for id, e := range g.Emojis {
			e.Roles = slices.Clone(e.Roles)
			out.Emojis[id] = e
		}
	}
	return out
}

type Overwrite struct {
	Allow int64
	Deny  int64
}

// Permissions holds a channel's overwrites split by subject.
type Permissions struct {
	User map[snowflake.ID]Overwrite
	Role map[snowflake.ID]Overwrite
}

type Channel struct {
	ID            snowflake.ID `json:"id"`
	GuildID       snowflake.ID `json:"guild_id"`
	Type          ChannelType  `json:"type"`
	Name          string       `json:"name"`
	Topic         string       `json:"topic"`
	Position      int          `json:"position"`
	Bitrate       int          `json:"bitrate"`
	UserLimit     int          `json:"user_limit"`
	NSFW          bool         `json:"nsfw"`
	ParentID      snowflake.ID `json:"parent_id"`
	LastMessageID snowflake.ID `json:"last_message_id"`

	Permissions Permissions               `json:"-"`
	Members     map[snowflake.ID]VoiceState `json:"-"`
}

func (ch Channel) clone() Channel {
	ch.Permissions = Permissions{
		User: maps.Clone(ch.Permissions.User),
		Role: maps.Clone(ch.Permissions.Role),
	}
	ch.Members = maps.Clone(ch.Members)
	return ch
}

type VoiceState struct {
	UserID    snowflake.ID `json:"user_id"`
	GuildID   snowflake.ID `json:"guild_id"`
	ChannelID snowflake.ID `json:"channel_id"`
	SessionID string       `json:"session_id"`
	Mute      bool         `json:"mute"`
	Deaf      bool         `json:"deaf"`
	SelfMute  bool         `json:"self_mute"`
	SelfDeaf  bool         `json:"self_deaf"`
	Suppress  bool         `json:"suppress"`
}

type DMChannel struct {
	ID            snowflake.ID `json:"id"`
	Type          ChannelType  `json:"type"`
	LastMessageID snowflake.ID `json:"last_message_id"`
	Recipient     User         `json:"-"`
	Recipients    []User       `json:"recipients"`
}

type User struct {
	ID            snowflake.ID `json:"id"`
	Username      string       `json:"username"`
	Discriminator string       `json:"discriminator"`
	Avatar        string       `json:"avatar"`
	Bot           bool         `json:"bot"`
	Game          *codec.Game  `json:"game,omitempty"`
}

// AvatarURL returns the CDN location of the user's avatar, or an empty string
// when none is set.
func (u User) AvatarURL() string {
	if u.Avatar == "" {
		return ""
	}
	ext := ".webp"
	if strings.HasPrefix(u.Avatar, "a_") {
		ext = ".gif"
	}
	return CDN + "/avatars/" + u.ID.String() + "/" + u.Avatar + ext
}

func (u User) clone() User {
	if u.Game != nil {
		g := *u.Game
		u.Game = &g
	}
	return u
}

// UserLookup resolves the global identity behind a member.
type UserLookup interface {
	User(id snowflake.ID) (User, bool)
}

// Member is the guild-scoped half of a user. Identity fields are read from the
// user table on every access.
type Member struct {
	UserID         snowflake.ID   `json:"-"`
	GuildID        snowflake.ID   `json:"guild_id"`
	Nick           string         `json:"nick"`
	Roles          []snowflake.ID `json:"roles"`
	JoinedAt       string         `json:"joined_at"`
	Mute           bool           `json:"mute"`
	Deaf           bool           `json:"deaf"`
	Status         string         `json:"status"`
	VoiceChannelID snowflake.ID   `json:"-"`

	users UserLookup
}

func (m Member) user() User {
	if m.users == nil {
		return User{ID: m.UserID}
	}
	u, _ := m.users.User(m.UserID)
	return u
}

func (m Member) Username() string      { return m.user().Username }
func (m Member) Discriminator() string { return m.user().Discriminator }
func (m Member) Avatar() string        { return m.user().Avatar }
func (m Member) Bot() bool             { return m.user().Bot }
func (m Member) Game() *codec.Game     { return m.user().Game }

func (m Member) HasRole(id snowflake.ID) bool {
	return slices.Contains(m.Roles, id)
}

func (m Member) clone() Member {
	m.Roles = slices.Clone(m.Roles)
	return m
}

type Role struct {
	ID          snowflake.ID `json:"id"`
	Name        string       `json:"name"`
	Color       int          `json:"color"`
	Permissions int64        `json:"permissions"`
	Position    int          `json:"position"`
	Hoist       bool         `json:"hoist"`
	Managed     bool         `json:"managed"`
	Mentionable bool         `json:"mentionable"`
}

type Emoji struct {
	ID            snowflake.ID   `json:"id"`
	Name          string         `json:"name"`
	Roles         []snowflake.ID `json:"roles"`
	RequireColons bool           `json:"require_colons"`
	Managed       bool           `json:"managed"`
	Animated      bool           `json:"animated"`
}

type Message struct {
	ID              snowflake.ID `json:"id"`
	ChannelID       snowflake.ID `json:"channel_id"`
	GuildID         snowflake.ID `json:"guild_id"`
	Author          User         `json:"author"`
	Content         string       `json:"content"`
	Timestamp       string       `json:"timestamp"`
	EditedTimestamp string       `json:"edited_timestamp"`
	TTS             bool         `json:"tts"`
	Nonce           any          `json:"nonce"`
	Pinned          bool         `json:"pinned"`
	Type            int          `json:"type"`
}

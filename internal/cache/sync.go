package cache

import (
	"encoding/json"
	"fmt"

	"github.com/DragonOfMath/discord.io/internal/codec"
	"github.com/disgoorg/snowflake/v2"
)

type syncPayload struct {
	GuildID   snowflake.ID      `json:"guild_id"`
	ID        snowflake.ID      `json:"id"`
	Members   []memberPayload   `json:"members"`
	Presences []presencePayload `json:"presences"`
	Large     *bool             `json:"large"`
}

// Sync reconciles a member chunk (GUILD_MEMBERS_CHUNK) or a guild sync
// snapshot against the cached guild. Members absent from the list are kept.
func (c *Cache) Sync(raw json.RawMessage) (Guild, bool, error) {
	var p syncPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Guild{}, false, fmt.Errorf("failed to decode member sync: %w", err)
	}
	id := p.GuildID
	if id == 0 {
		id = p.ID
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.memberGuild(id)
	if !ok {
		return Guild{}, false, nil
	}
	for _, mp := range p.Members {
		c.storeUser(mp.User)
		m := c.newMember(g.ID, mp.User.ID, mp.Member)
		if old, exists := g.Members[m.UserID]; exists {
			m.Status = old.Status
			m.VoiceChannelID = old.VoiceChannelID
		}
		g.Members[m.UserID] = m
	}
	for _, pr := range p.Presences {
		m, exists := g.Members[pr.User.ID]
		if !exists {
			continue
		}
		c.setGame(pr.User.ID, pr.Game)
		m.Status = pr.Status
		g.Members[pr.User.ID] = m
	}
	if p.Large != nil {
		g.Large = *p.Large
	}
	return g.clone(), true, nil
}

// Presence is the result of a guild-scoped presence update.
type Presence struct {
	UserID   snowflake.ID
	GuildID  snowflake.ID
	Username string
	Status   string
	Game     *codec.Game
}

// ApplyPresence merges a PRESENCE_UPDATE. Presences without a guild are
// ignored and reported with ok false.
func (c *Cache) ApplyPresence(raw json.RawMessage) (Presence, bool, error) {
	fields, err := decodeFields(raw)
	if err != nil {
		return Presence{}, false, err
	}
	guildID := fieldID(fields, "guild_id")
	if guildID == 0 {
		return Presence{}, false, nil
	}
	uf, _ := fieldMap(fields, "user")
	if fieldID(uf, "id") == 0 {
		return Presence{}, false, nil
	}
	var typed presencePayload
	if err := json.Unmarshal(raw, &typed); err != nil {
		return Presence{}, false, fmt.Errorf("failed to decode presence: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	u, err := c.mergeUser(uf)
	if err != nil {
		return Presence{}, false, err
	}
	c.setGame(u.ID, typed.Game)

	out := Presence{
		UserID:   u.ID,
		GuildID:  guildID,
		Username: u.Username,
		Game:     typed.Game,
	}
	if g, ok := c.memberGuild(guildID); ok {
		if m, exists := g.Members[u.ID]; exists {
			if err := mergeFields(without(fields, "user", "guild_id", "game"), &m); err != nil {
				return Presence{}, false, err
			}
			g.Members[u.ID] = m
			out.Status = m.Status
		}
	}
	if out.Status == "" {
		out.Status = typed.Status
	}
	return out, true, nil
}

// VoiceStateChange describes a voice state after it has been applied.
type VoiceStateChange struct {
	State VoiceState
	// Previous is the channel the user was in before, or 0.
	Previous snowflake.ID
	Self     bool
}

// Left reports whether the user is no longer in any voice channel.
func (v VoiceStateChange) Left() bool {
	return v.State.ChannelID == 0
}

// ApplyVoiceState moves a user between the voice presence maps of a guild's
// channels and updates the member's mute and deaf flags.
func (c *Cache) ApplyVoiceState(raw json.RawMessage) (VoiceStateChange, error) {
	var vs VoiceState
	if err := json.Unmarshal(raw, &vs); err != nil {
		return VoiceStateChange{}, fmt.Errorf("failed to decode voice state: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	change := VoiceStateChange{State: vs, Self: vs.UserID == c.self.ID}
	g, ok := c.memberGuild(vs.GuildID)
	if !ok {
		return change, nil
	}
	for id, ch := range g.Channels {
		if _, in := ch.Members[vs.UserID]; in {
			change.Previous = id
			delete(ch.Members, vs.UserID)
		}
	}
	if ch, ok := g.Channels[vs.ChannelID]; ok && vs.ChannelID != 0 {
		ch.Members[vs.UserID] = vs
	}
	if m, ok := g.Members[vs.UserID]; ok {
		m.Mute = vs.Mute || vs.SelfMute
		m.Deaf = vs.Deaf || vs.SelfDeaf
		m.VoiceChannelID = vs.ChannelID
		g.Members[vs.UserID] = m
	}
	if change.Self {
		g.SelfMute = vs.SelfMute
		g.SelfDeaf = vs.SelfDeaf
	}
	return change, nil
}

type readyPayload struct {
	User            User              `json:"user"`
	Guilds          []json.RawMessage `json:"guilds"`
	PrivateChannels []json.RawMessage `json:"private_channels"`
}

// LoadReady applies the READY snapshot: the client's own user, every guild
// (most of them unavailable) and the private channels.
func (c *Cache) LoadReady(raw json.RawMessage) error {
	var p readyPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("failed to decode ready: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.self = p.User
	for _, g := range p.Guilds {
		if _, err := c.guildCreate(g); err != nil {
			return err
		}
	}
	for _, dm := range p.PrivateChannels {
		if _, err := c.dmCreate(dm); err != nil {
			return err
		}
	}
	return nil
}

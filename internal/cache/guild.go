package cache

import (
	"encoding/json"
	"fmt"

	"github.com/DragonOfMath/discord.io/internal/codec"
	"github.com/disgoorg/snowflake/v2"
)

type guildPayload struct {
	Guild
	Channels    []channelPayload  `json:"channels"`
	Members     []memberPayload   `json:"members"`
	Roles       []Role            `json:"roles"`
	Emojis      []Emoji           `json:"emojis"`
	Presences   []presencePayload `json:"presences"`
	VoiceStates []VoiceState      `json:"voice_states"`
}

type presencePayload struct {
	User    User         `json:"user"`
	GuildID snowflake.ID `json:"guild_id"`
	Status  string       `json:"status"`
	Game    *codec.Game  `json:"game"`
}

// guildUpdateSkip lists the fields a guild update never merges wholesale.
var guildUpdateSkip = []string{"emojis", "members", "channels", "presences", "voice_states", "roles"}

func (c *Cache) guildCreate(raw json.RawMessage) (any, error) {
	var p guildPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode guild: %w", err)
	}
	if g, ok := c.guilds[p.ID]; ok && !g.Unavailable {
		return c.guildUpdate(raw)
	}
	return c.buildGuild(p).clone(), nil
}

// buildGuild replaces any cached guild with the full payload.
func (c *Cache) buildGuild(p guildPayload) *Guild {
	g := p.Guild
	g.Large = g.Large || g.MemberCount > c.largeThreshold
	if old, ok := c.guilds[g.ID]; ok {
		g.SelfMute, g.SelfDeaf = old.SelfMute, old.SelfDeaf
		c.unindexChannels(old)
	}
	g.Members, g.Channels, g.Roles, g.Emojis = nil, nil, nil, nil
	c.guilds[g.ID] = &g
	if g.Unavailable {
		return &g
	}

	g.Members = make(map[snowflake.ID]Member, len(p.Members))
	g.Channels = make(map[snowflake.ID]Channel, len(p.Channels))
	g.Roles = make(map[snowflake.ID]Role, len(p.Roles))
	g.Emojis = make(map[snowflake.ID]Emoji, len(p.Emojis))

	for _, ch := range p.Channels {
		c.putChannel(&g, ch)
	}
	for _, r := range p.Roles {
		g.Roles[r.ID] = r
	}
	for _, m := range p.Members {
		c.storeUser(m.User)
		g.Members[m.User.ID] = c.newMember(g.ID, m.User.ID, m.Member)
	}
	for _, e := range p.Emojis {
		g.Emojis[e.ID] = e
	}
	for _, pr := range p.Presences {
		m, ok := g.Members[pr.User.ID]
		if !ok {
			continue
		}
		c.setGame(pr.User.ID, pr.Game)
		m.Status = pr.Status
		g.Members[pr.User.ID] = m
	}
	for _, vs := range p.VoiceStates {
		ch, ok := g.Channels[vs.ChannelID]
		if !ok {
			continue
		}
		m, ok := g.Members[vs.UserID]
		if !ok {
			continue
		}
		vs.GuildID = g.ID
		ch.Members[vs.UserID] = vs
		m.VoiceChannelID = vs.ChannelID
		g.Members[vs.UserID] = m
	}
	return &g
}

func (c *Cache) setGame(userID snowflake.ID, game *codec.Game) {
	if userID == c.self.ID {
		c.self.Game = game
		return
	}
	if u, ok := c.users[userID]; ok {
		u.Game = game
	}
}

func (c *Cache) guildUpdate(raw json.RawMessage) (any, error) {
	fields, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}
	g, ok := c.guilds[fieldID(fields, "id")]
	if !ok {
		var p guildPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to decode guild: %w", err)
		}
		return c.buildGuild(p).clone(), nil
	}
	if g.Unavailable {
		if unavailable, _ := fields["unavailable"].(bool); !unavailable {
			var p guildPayload
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("failed to decode guild: %w", err)
			}
			return c.buildGuild(p).clone(), nil
		}
	}

	roles, _ := fields["roles"].([]any)
	if err := mergeFields(without(fields, guildUpdateSkip...), g); err != nil {
		return nil, err
	}
	g.Large = g.Large || g.MemberCount > c.largeThreshold

	if g.Roles != nil {
		for _, item := range roles {
			rf, ok := item.(map[string]any)
			if !ok {
				continue
			}
			id := fieldID(rf, "id")
			r := g.Roles[id]
			if err := mergeFields(rf, &r); err != nil {
				return nil, err
			}
			g.Roles[id] = r
		}
	}
	return g.clone(), nil
}

func (c *Cache) guildDelete(raw json.RawMessage) (any, error) {
	var p struct {
		ID snowflake.ID `json:"id"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode guild: %w", err)
	}
	g, ok := c.guilds[p.ID]
	if !ok {
		return nil, nil
	}
	delete(c.guilds, p.ID)
	c.unindexChannels(g)
	return g.clone(), nil
}

func (c *Cache) unindexChannels(g *Guild) {
	for id := range g.Channels {
		delete(c.channels, id)
	}
}

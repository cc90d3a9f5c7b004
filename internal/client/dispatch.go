package client

import (
	"encoding/json"
	"fmt"

	"github.com/DragonOfMath/discord.io/internal/cache"
	"github.com/DragonOfMath/discord.io/internal/codec"
	"github.com/DragonOfMath/discord.io/internal/voice"
	"github.com/disgoorg/snowflake/v2"
)

// Dispatch is published under the event name of every dispatch, for example
// guildMemberAdd.
type Dispatch struct {
	Frame codec.Frame
	// Old is the cached copy from before an update, when one was known.
	Old any
	// Data is the entity the dispatch created, updated or removed.
	Data any
}

// MessageEvent is published as EventMessage for every new message.
type MessageEvent struct {
	Username  string
	UserID    snowflake.ID
	ChannelID snowflake.ID
	Content   string
	Message   cache.Message
}

type mutationOp int

const (
	opCreate mutationOp = iota
	opUpdate
	opDelete
)

type mutation struct {
	kind cache.Kind
	op   mutationOp
}

var mutations = map[string]mutation{
	"GUILD_CREATE":        {cache.KindGuild, opCreate},
	"GUILD_UPDATE":        {cache.KindGuild, opUpdate},
	"GUILD_DELETE":        {cache.KindGuild, opDelete},
	"GUILD_MEMBER_ADD":    {cache.KindMember, opCreate},
	"GUILD_MEMBER_UPDATE": {cache.KindMember, opUpdate},
	"GUILD_MEMBER_REMOVE": {cache.KindMember, opDelete},
	"GUILD_ROLE_CREATE":   {cache.KindRole, opCreate},
	"GUILD_ROLE_UPDATE":   {cache.KindRole, opUpdate},
	"GUILD_ROLE_DELETE":   {cache.KindRole, opDelete},
	"GUILD_EMOJIS_UPDATE": {cache.KindEmoji, opUpdate},
	"CHANNEL_CREATE":      {cache.KindChannel, opCreate},
	"CHANNEL_UPDATE":      {cache.KindChannel, opUpdate},
	"CHANNEL_DELETE":      {cache.KindChannel, opDelete},
	"USER_UPDATE":         {cache.KindUser, opUpdate},
}

// HandleDispatch applies a dispatch to the cache and the voice sessions and
// publishes it.
func (c *Client) HandleDispatch(f codec.Frame) {
	evt := Dispatch{Frame: f}
	var err error

	switch f.T {
	case "READY":
		err = c.cache.LoadReady(f.D)
	case "MESSAGE_CREATE":
		evt.Data, err = c.messageCreate(f.D)
	case "MESSAGE_UPDATE":
		evt.Old, evt.Data, err = c.messageUpdate(f.D)
	case "MESSAGE_DELETE":
		evt.Data, err = c.messageDelete(f.D)
	case "PRESENCE_UPDATE":
		evt.Data, err = c.presenceUpdate(f.D)
	case "VOICE_STATE_UPDATE":
		evt.Data, err = c.voiceStateUpdate(f.D)
	case "VOICE_SERVER_UPDATE":
		err = c.voiceServerUpdate(f.D)
	case "GUILD_MEMBERS_CHUNK", "GUILD_SYNC":
		evt.Data, err = c.sync(f)
	default:
		m, ok := mutations[f.T]
		if !ok {
			break
		}
		evt.Old, evt.Data, err = c.mutate(m, f.D)
		if err == nil && f.T == "GUILD_DELETE" {
			c.guildGone(evt.Data)
		}
	}

	if err != nil {
		c.logger.Error("failed to apply dispatch", "type", f.T, "seq", f.S, "error", err)
	}
	c.bus.Emit(codec.EventName(f.T), evt)
}

func (c *Client) mutate(m mutation, raw json.RawMessage) (old any, data any, err error) {
	switch m.op {
	case opCreate:
		data, err = c.cache.Create(m.kind, raw)
	case opUpdate:
		old = c.previous(m.kind, raw)
		data, err = c.cache.Update(m.kind, raw)
	case opDelete:
		data, err = c.cache.Delete(m.kind, raw)
	}
	return old, data, err
}

// refs holds every identifier an update payload may carry.
type refs struct {
	ID      snowflake.ID `json:"id"`
	GuildID snowflake.ID `json:"guild_id"`
	User    struct {
		ID snowflake.ID `json:"id"`
	} `json:"user"`
	Role struct {
		ID snowflake.ID `json:"id"`
	} `json:"role"`
}

// previous returns the cached copy an update is about to replace, or nil.
func (c *Client) previous(kind cache.Kind, raw json.RawMessage) any {
	var r refs
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil
	}
	switch kind {
	case cache.KindGuild:
		if g, ok := c.cache.Guild(r.ID); ok {
			return g
		}
	case cache.KindChannel:
		if ch, ok := c.cache.Channel(r.ID); ok {
			return ch
		}
	case cache.KindMember:
		if m, ok := c.cache.Member(r.GuildID, r.User.ID); ok {
			return m
		}
	case cache.KindRole:
		if role, ok := c.cache.Role(r.GuildID, r.Role.ID); ok {
			return role
		}
	case cache.KindEmoji:
		if g, ok := c.cache.Guild(r.GuildID); ok {
			return g.Emojis
		}
	case cache.KindUser:
		return c.cache.Self()
	}
	return nil
}

// guildGone closes the voice session of a guild the client was removed from.
func (c *Client) guildGone(data any) {
	g, ok := data.(cache.Guild)
	if !ok {
		return
	}
	if s, ok := c.voice.Guild(g.ID); ok {
		c.logger.Info("closing voice session of removed guild", "guild_id", g.ID)
		_ = s.Close()
	}
}

func (c *Client) messageCreate(raw json.RawMessage) (cache.Message, error) {
	var m cache.Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return cache.Message{}, fmt.Errorf("failed to decode message: %w", err)
	}
	c.history.Add(m)
	c.bus.Emit(EventMessage, MessageEvent{
		Username:  m.Author.Username,
		UserID:    m.Author.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
		Message:   m,
	})
	return m, nil
}

func (c *Client) messageUpdate(raw json.RawMessage) (any, any, error) {
	old, updated, found, err := c.history.Update(raw)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, updated, nil
	}
	return old, updated, nil
}

func (c *Client) messageDelete(raw json.RawMessage) (any, error) {
	var p struct {
		ID        snowflake.ID `json:"id"`
		ChannelID snowflake.ID `json:"channel_id"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode message delete: %w", err)
	}
	if m, ok := c.history.Delete(p.ChannelID, p.ID); ok {
		return m, nil
	}
	return nil, nil
}

func (c *Client) presenceUpdate(raw json.RawMessage) (any, error) {
	p, ok, err := c.cache.ApplyPresence(raw)
	if err != nil || !ok {
		return nil, err
	}
	c.bus.Emit(EventPresence, p)
	return p, nil
}

func (c *Client) sync(f codec.Frame) (any, error) {
	g, ok, err := c.cache.Sync(f.D)
	if err != nil || !ok {
		return nil, err
	}
	if f.T == "GUILD_MEMBERS_CHUNK" && c.cache.AllMembersLoaded() {
		c.bus.Emit(EventAllUsers, nil)
	}
	return g, nil
}

// voiceStateUpdate applies a voice state and, for the client's own user,
// steers the guild's voice session: a null channel leaves, a new channel
// rebinds, and a state without a session starts one.
func (c *Client) voiceStateUpdate(raw json.RawMessage) (any, error) {
	change, err := c.cache.ApplyVoiceState(raw)
	if err != nil {
		return nil, err
	}
	if !change.Self {
		return change, nil
	}

	vs := change.State
	c.mu.Lock()
	c.flags[vs.GuildID] = voiceFlags{mute: vs.SelfMute, deaf: vs.SelfDeaf}
	c.mu.Unlock()

	s, ok := c.voice.Guild(vs.GuildID)
	if change.Left() {
		if ok {
			return change, c.leaveVoice(s)
		}
		return change, nil
	}
	if !ok {
		s, err = c.newVoiceSession(vs.GuildID, vs.ChannelID)
		if err != nil {
			return change, err
		}
	}
	if s.ChannelID() != vs.ChannelID {
		c.voice.Rebind(s, vs.ChannelID)
	}
	s.SetVoiceState(vs.SessionID, vs.SelfMute, vs.SelfDeaf)
	return change, nil
}

func (c *Client) voiceServerUpdate(raw json.RawMessage) error {
	var p struct {
		GuildID  snowflake.ID `json:"guild_id"`
		Token    string       `json:"token"`
		Endpoint string       `json:"endpoint"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("failed to decode voice server update: %w", err)
	}
	if s, ok := c.voice.Guild(p.GuildID); ok {
		s.SetServer(p.Token, p.Endpoint)
	}
	return nil
}

func (c *Client) newVoiceSession(guildID, channelID snowflake.ID) (*voice.Session, error) {
	opts := append([]voice.Option{voice.WithLogger(c.logger)}, c.voiceOpts...)
	s := voice.New(guildID, channelID, c.cache.SelfID(), opts...)
	if err := c.voice.Add(s); err != nil {
		return nil, err
	}
	s.OnClose(func() {
		c.mu.Lock()
		delete(c.audio, guildID)
		delete(c.tx, guildID)
		c.mu.Unlock()
	})
	return s, nil
}

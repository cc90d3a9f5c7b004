package cache

import (
	"encoding/json"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
)

type overwritePayload struct {
	ID    snowflake.ID `json:"id"`
	Type  string       `json:"type"`
	Allow int64        `json:"allow"`
	Deny  int64        `json:"deny"`
}

type channelPayload struct {
	Channel
	IsPrivate   bool               `json:"is_private"`
	Overwrites  []overwritePayload `json:"permission_overwrites"`
	Recipients  []User             `json:"recipients"`
	Recipient   *User              `json:"recipient"`
	RecipientID snowflake.ID       `json:"recipient_id"`
}

func (p channelPayload) private() bool {
	return p.IsPrivate || p.Type == ChannelDM || p.Type == ChannelGroupDM
}

func buildPermissions(overwrites []overwritePayload) Permissions {
	perms := Permissions{
		User: make(map[snowflake.ID]Overwrite),
		Role: make(map[snowflake.ID]Overwrite),
	}
	for _, o := range overwrites {
		ow := Overwrite{Allow: o.Allow, Deny: o.Deny}
		if o.Type == "member" {
			perms.User[o.ID] = ow
		} else {
			perms.Role[o.ID] = ow
		}
	}
	return perms
}

func decodeChannel(raw json.RawMessage) (channelPayload, error) {
	var p channelPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("failed to decode channel: %w", err)
	}
	return p, nil
}

func (c *Cache) putChannel(g *Guild, p channelPayload) Channel {
	ch := p.Channel
	ch.GuildID = g.ID
	ch.Permissions = buildPermissions(p.Overwrites)
	ch.Members = make(map[snowflake.ID]VoiceState)
	g.Channels[ch.ID] = ch
	c.channels[ch.ID] = g.ID
	return ch
}

// channelGuild finds the guild of a channel from the index, falling back to
// the guild_id of the payload.
func (c *Cache) channelGuild(id, fallback snowflake.ID) (*Guild, bool) {
	gid, ok := c.channels[id]
	if !ok {
		gid = fallback
	}
	g, ok := c.guilds[gid]
	if !ok || g.Unavailable {
		return nil, false
	}
	return g, true
}

func (c *Cache) channelCreate(raw json.RawMessage) (any, error) {
	p, err := decodeChannel(raw)
	if err != nil {
		return nil, err
	}
	if p.private() {
		return c.dmCreate(raw)
	}
	g, ok := c.channelGuild(p.ID, p.GuildID)
	if !ok {
		return nil, nil
	}
	if _, exists := g.Channels[p.ID]; exists {
		return c.channelUpdate(raw)
	}
	return c.putChannel(g, p).clone(), nil
}

func (c *Cache) channelUpdate(raw json.RawMessage) (any, error) {
	p, err := decodeChannel(raw)
	if err != nil {
		return nil, err
	}
	if _, isDM := c.dms[p.ID]; isDM || p.private() {
		return c.dmCreate(raw)
	}
	g, ok := c.channelGuild(p.ID, p.GuildID)
	if !ok {
		return nil, nil
	}
	ch, exists := g.Channels[p.ID]
	if !exists {
		return c.putChannel(g, p).clone(), nil
	}

	fields, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}
	_, hasOverwrites := fields["permission_overwrites"]
	if err := mergeFields(without(fields, "permission_overwrites", "is_private", "recipients", "guild_id"), &ch); err != nil {
		return nil, err
	}
	if hasOverwrites {
		ch.Permissions = buildPermissions(p.Overwrites)
	}
	g.Channels[ch.ID] = ch
	return ch.clone(), nil
}

func (c *Cache) channelDelete(raw json.RawMessage) (any, error) {
	p, err := decodeChannel(raw)
	if err != nil {
		return nil, err
	}
	if _, isDM := c.dms[p.ID]; isDM || p.private() {
		return c.dmDelete(raw)
	}
	g, ok := c.channelGuild(p.ID, p.GuildID)
	if !ok {
		return nil, nil
	}
	ch, exists := g.Channels[p.ID]
	if !exists {
		return nil, nil
	}
	delete(g.Channels, p.ID)
	delete(c.channels, p.ID)
	for id, m := range g.Members {
		if m.VoiceChannelID == p.ID {
			m.VoiceChannelID = 0
			g.Members[id] = m
		}
	}
	return ch.clone(), nil
}

func (c *Cache) dmCreate(raw json.RawMessage) (any, error) {
	p, err := decodeChannel(raw)
	if err != nil {
		return nil, err
	}
	dm := DMChannel{
		ID:            p.ID,
		Type:          p.Type,
		LastMessageID: p.LastMessageID,
		Recipients:    p.Recipients,
	}
	if len(dm.Recipients) == 0 && p.Recipient != nil {
		dm.Recipients = []User{*p.Recipient}
	}
	if old, ok := c.dms[p.ID]; ok {
		if len(dm.Recipients) == 0 {
			dm.Recipients = old.Recipients
		}
		if dm.LastMessageID == 0 {
			dm.LastMessageID = old.LastMessageID
		}
	}
	if dm.Type == 0 {
		dm.Type = ChannelDM
	}
	if len(dm.Recipients) > 0 {
		dm.Recipient = dm.Recipients[0]
	}
	for _, u := range dm.Recipients {
		c.storeUser(u)
		c.dmByUser[u.ID] = dm.ID
	}
	if p.RecipientID != 0 {
		c.dmByUser[p.RecipientID] = dm.ID
	}
	c.dms[dm.ID] = &dm
	return dm.clone(), nil
}

func (c *Cache) dmDelete(raw json.RawMessage) (any, error) {
	p, err := decodeChannel(raw)
	if err != nil {
		return nil, err
	}
	dm, ok := c.dms[p.ID]
	if !ok {
		return nil, nil
	}
	delete(c.dms, p.ID)
	if dm.Recipient.ID != 0 {
		delete(c.dmByUser, dm.Recipient.ID)
	}
	return dm.clone(), nil
}

func (dm *DMChannel) clone() DMChannel {
	out := *dm
	out.Recipients = append([]User(nil), dm.Recipients...)
	return out
}

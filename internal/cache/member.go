package cache

import (
	"encoding/json"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
)

type memberPayload struct {
	Member
	User User `json:"user"`
}

func (c *Cache) memberGuild(id snowflake.ID) (*Guild, bool) {
	g, ok := c.guilds[id]
	if !ok || g.Unavailable {
		return nil, false
	}
	return g, true
}

func (c *Cache) memberCreate(raw json.RawMessage) (any, error) {
	var p memberPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode member: %w", err)
	}
	g, ok := c.memberGuild(p.GuildID)
	if !ok {
		return nil, nil
	}
	c.storeUser(p.User)
	if _, exists := g.Members[p.User.ID]; exists {
		return c.memberUpdate(raw)
	}
	m := c.newMember(g.ID, p.User.ID, p.Member)
	g.Members[m.UserID] = m
	g.MemberCount++
	return m.clone(), nil
}

func (c *Cache) memberUpdate(raw json.RawMessage) (any, error) {
	fields, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}
	g, ok := c.memberGuild(fieldID(fields, "guild_id"))
	if !ok {
		return nil, nil
	}
	uf, _ := fieldMap(fields, "user")
	userID := fieldID(uf, "id")
	if userID == 0 {
		return nil, nil
	}
	if _, err := c.mergeUser(uf); err != nil {
		return nil, err
	}

	m, exists := g.Members[userID]
	if !exists {
		m = c.newMember(g.ID, userID, Member{})
	}
	if err := mergeFields(without(fields, "user", "guild_id"), &m); err != nil {
		return nil, err
	}
	g.Members[userID] = m
	return m.clone(), nil
}

func (c *Cache) memberDelete(raw json.RawMessage) (any, error) {
	var p memberPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode member: %w", err)
	}
	if p.User.ID == c.self.ID {
		return nil, nil
	}
	g, ok := c.memberGuild(p.GuildID)
	if !ok {
		return nil, nil
	}
	m, exists := g.Members[p.User.ID]
	if !exists {
		return nil, nil
	}
	delete(g.Members, p.User.ID)
	if g.MemberCount > 0 {
		g.MemberCount--
	}
	for id, ch := range g.Channels {
		if _, ok := ch.Members[p.User.ID]; ok {
			delete(ch.Members, p.User.ID)
			g.Channels[id] = ch
		}
	}
	return m.clone(), nil
}

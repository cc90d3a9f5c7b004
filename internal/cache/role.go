package cache

import (
	"encoding/json"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
)

type rolePayload struct {
	GuildID snowflake.ID `json:"guild_id"`
	Role    Role         `json:"role"`
	RoleID  snowflake.ID `json:"role_id"`
}

func (c *Cache) roleCreate(raw json.RawMessage) (any, error) {
	var p rolePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode role: %w", err)
	}
	g, ok := c.memberGuild(p.GuildID)
	if !ok {
		return nil, nil
	}
	if _, exists := g.Roles[p.Role.ID]; exists {
		return c.roleUpdate(raw)
	}
	g.Roles[p.Role.ID] = p.Role
	return p.Role, nil
}

func (c *Cache) roleUpdate(raw json.RawMessage) (any, error) {
	fields, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}
	g, ok := c.memberGuild(fieldID(fields, "guild_id"))
	if !ok {
		return nil, nil
	}
	rf, ok := fieldMap(fields, "role")
	if !ok {
		return nil, nil
	}
	id := fieldID(rf, "id")
	r := g.Roles[id]
	if err := mergeFields(rf, &r); err != nil {
		return nil, err
	}
	g.Roles[id] = r
	return r, nil
}

func (c *Cache) roleDelete(raw json.RawMessage) (any, error) {
	var p rolePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode role: %w", err)
	}
	g, ok := c.memberGuild(p.GuildID)
	if !ok {
		return nil, nil
	}
	id := p.RoleID
	if id == 0 {
		id = p.Role.ID
	}
	r, exists := g.Roles[id]
	if !exists {
		return nil, nil
	}
	delete(g.Roles, id)
	return r, nil
}

package cache

import (
	"cmp"
	"maps"
	"slices"

	"github.com/disgoorg/snowflake/v2"
)

var _ UserLookup = (*Cache)(nil)

func (c *Cache) Self() User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.self.clone()
}

func (c *Cache) SelfID() snowflake.ID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.self.ID
}

func (c *Cache) User(id snowflake.ID) (User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if id == c.self.ID && id != 0 {
		return c.self.clone(), true
	}
	u, ok := c.users[id]
	if !ok {
		return User{}, false
	}
	return u.clone(), true
}

func (c *Cache) Guild(id snowflake.ID) (Guild, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.guilds[id]
	if !ok {
		return Guild{}, false
	}
	return g.clone(), true
}

// Guilds returns every cached guild ordered by ID.
func (c *Cache) Guilds() []Guild {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Guild, 0, len(c.guilds))
	for _, id := range slices.Sorted(maps.Keys(c.guilds)) {
		out = append(out, c.guilds[id].clone())
	}
	return out
}

func (c *Cache) GuildIDs() []snowflake.ID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.guilds))
}

func (c *Cache) Channel(id snowflake.ID) (Channel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.channelGuild(id, 0)
	if !ok {
		return Channel{}, false
	}
	ch, ok := g.Channels[id]
	if !ok {
		return Channel{}, false
	}
	return ch.clone(), true
}

func (c *Cache) Member(guildID, userID snowflake.ID) (Member, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.memberGuild(guildID)
	if !ok {
		return Member{}, false
	}
	m, ok := g.Members[userID]
	if !ok {
		return Member{}, false
	}
	return m.clone(), true
}

func (c *Cache) Role(guildID, roleID snowflake.ID) (Role, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.memberGuild(guildID)
	if !ok {
		return Role{}, false
	}
	r, ok := g.Roles[roleID]
	return r, ok
}

// Roles returns a guild's roles ordered by position.
func (c *Cache) Roles(guildID snowflake.ID) []Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.memberGuild(guildID)
	if !ok {
		return nil
	}
	roles := slices.Collect(maps.Values(g.Roles))
	slices.SortFunc(roles, func(a, b Role) int {
		if n := cmp.Compare(a.Position, b.Position); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return roles
}

func (c *Cache) DMChannel(id snowflake.ID) (DMChannel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	dm, ok := c.dms[id]
	if !ok {
		return DMChannel{}, false
	}
	return dm.clone(), true
}

// DMByUser resolves a user to the DM channel already opened with them.
func (c *Cache) DMByUser(userID snowflake.ID) (snowflake.ID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.dmByUser[userID]
	return id, ok
}

// AllAvailable reports whether no cached guild is still unavailable.
func (c *Cache) AllAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, g := range c.guilds {
		if g.Unavailable {
			return false
		}
	}
	return true
}

// AllMembersLoaded reports whether every guild holds as many members as it
// declares.
func (c *Cache) AllMembersLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, g := range c.guilds {
		if g.Members == nil || g.MemberCount != len(g.Members) {
			return false
		}
	}
	return true
}

// IncompleteGuilds lists guilds whose member map is short of the declared
// member count. With largeOnly set only large guilds are listed.
func (c *Cache) IncompleteGuilds(largeOnly bool) []snowflake.ID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []snowflake.ID
	for _, id := range slices.Sorted(maps.Keys(c.guilds)) {
		g := c.guilds[id]
		if g.Members == nil || g.MemberCount == len(g.Members) {
			continue
		}
		if largeOnly && !g.Large {
			continue
		}
		out = append(out, id)
	}
	return out
}

package client

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"github.com/DragonOfMath/discord.io/internal/cache"
	"github.com/DragonOfMath/discord.io/internal/codec"
	"github.com/DragonOfMath/discord.io/internal/rest"
	"github.com/DragonOfMath/discord.io/internal/util"
	"github.com/disgoorg/snowflake/v2"
)

type rolePosition struct {
	ID       snowflake.ID `json:"id"`
	Position int          `json:"position"`
}

// MoveRole moves a role by delta positions. The target position is clamped
// to [1, roleCount-1] and the remaining roles are renumbered around it.
func (c *Client) MoveRole(ctx context.Context, guildID, roleID snowflake.ID, delta int) error {
	if delta == 0 {
		return ErrSamePosition
	}
	if _, ok := c.cache.Guild(guildID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownGuild, guildID)
	}
	role, ok := c.cache.Role(guildID, roleID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRole, roleID)
	}

	roles := c.cache.Roles(guildID)
	target := util.Clamp(role.Position+delta, 1, len(roles)-1)

	// @everyone shares the guild ID and always stays at position 0.
	order := slices.DeleteFunc(roles, func(r cache.Role) bool {
		return r.ID == guildID || r.ID == roleID
	})
	order = slices.Insert(order, util.Clamp(target-1, 0, len(order)), role)

	body := make([]rolePosition, len(order))
	for i, r := range order {
		body[i] = rolePosition{ID: r.ID, Position: i + 1}
	}
	if err := c.call(ctx, http.MethodPatch, rest.GuildRoles(guildID), body, nil); err != nil {
		return fmt.Errorf("unable to move role: %w", err)
	}
	return nil
}

func (c *Client) AddToRole(ctx context.Context, guildID, userID, roleID snowflake.ID) error {
	if err := c.call(ctx, http.MethodPut, rest.GuildMemberRole(guildID, userID, roleID), nil, nil); err != nil {
		return fmt.Errorf("could not add role: %w", err)
	}
	return nil
}

func (c *Client) RemoveFromRole(ctx context.Context, guildID, userID, roleID snowflake.ID) error {
	if err := c.call(ctx, http.MethodDelete, rest.GuildMemberRole(guildID, userID, roleID), nil, nil); err != nil {
		return fmt.Errorf("could not remove role: %w", err)
	}
	return nil
}

// EditNickname sets a member's nickname. An empty nick clears it.
func (c *Client) EditNickname(ctx context.Context, guildID, userID snowflake.ID, nick string) error {
	path := rest.GuildMember(guildID, userID)
	if userID == c.cache.SelfID() {
		path = rest.SelfNick(guildID)
	}
	body := struct {
		Nick string `json:"nick"`
	}{Nick: nick}
	if err := c.call(ctx, http.MethodPatch, path, body, nil); err != nil {
		return fmt.Errorf("could not change nickname: %w", err)
	}
	return nil
}

// GetAllUsers requests the members of every guild whose member list is
// incomplete. Bots only ask for large guilds. EventAllUsers is published
// once the last member chunk has arrived.
func (c *Client) GetAllUsers() error {
	guilds := c.cache.IncompleteGuilds(c.cfg.Bot)
	if len(guilds) == 0 {
		c.bus.Emit(EventAllUsers, nil)
		return ErrNoUsersToCollect
	}
	if !c.cfg.Bot {
		if err := c.sender.Send(codec.OpGuildSync, c.cache.GuildIDs()); err != nil {
			return fmt.Errorf("failed to request guild sync: %w", err)
		}
	}
	for batch := range slices.Chunk(guilds, codec.MaxGuildsPerMemberRequest) {
		req := codec.RequestGuildMembers{GuildID: batch, Query: "", Limit: 0}
		if err := c.sender.Send(codec.OpRequestGuildMembers, req); err != nil {
			return fmt.Errorf("failed to request guild members: %w", err)
		}
	}
	return nil
}

package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/DragonOfMath/discord.io/internal/cache"
	"github.com/DragonOfMath/discord.io/internal/permissions"
	"github.com/DragonOfMath/discord.io/internal/rest"
	"github.com/DragonOfMath/discord.io/internal/util"
	"github.com/disgoorg/snowflake/v2"
)

const (
	MinBitrate   = 8000
	MaxBitrate   = 96000
	MaxUserLimit = 99
)

// CreateDMChannel opens a DM channel with a user. The channel reaches the
// cache through the CHANNEL_CREATE dispatch that follows.
func (c *Client) CreateDMChannel(ctx context.Context, userID snowflake.ID) (cache.DMChannel, error) {
	body := struct {
		RecipientID snowflake.ID `json:"recipient_id"`
	}{RecipientID: userID}
	var dm cache.DMChannel
	if err := c.call(ctx, http.MethodPost, rest.MyDMsPath, body, &dm); err != nil {
		return cache.DMChannel{}, fmt.Errorf("unable to create dm channel: %w", err)
	}
	if len(dm.Recipients) > 0 {
		dm.Recipient = dm.Recipients[0]
	}
	return dm, nil
}

// ChannelEdit holds the fields to change. Nil fields keep the cached value.
type ChannelEdit struct {
	Name      *string
	Topic     *string
	Bitrate   *int
	Position  *int
	UserLimit *int
	NSFW      *bool
	// ParentID moves the channel into a category, or out of it when it
	// points at zero.
	ParentID *snowflake.ID
}

type channelEditPayload struct {
	Name      string        `json:"name"`
	Topic     string        `json:"topic"`
	Bitrate   *int          `json:"bitrate,omitempty"`
	Position  int           `json:"position"`
	UserLimit *int          `json:"user_limit,omitempty"`
	NSFW      bool          `json:"nsfw"`
	ParentID  *snowflake.ID `json:"parent_id"`
}

// EditChannelInfo sends the cached channel with the edit applied. Bitrates
// are clamped to 8000..96000 and user limits to 0..99.
func (c *Client) EditChannelInfo(ctx context.Context, channelID snowflake.ID, edit ChannelEdit) (cache.Channel, error) {
	ch, ok := c.cache.Channel(channelID)
	if !ok {
		return cache.Channel{}, fmt.Errorf("%w: %s", ErrUnknownChannel, channelID)
	}

	p := channelEditPayload{
		Name:     ch.Name,
		Topic:    ch.Topic,
		Position: ch.Position,
		NSFW:     ch.NSFW,
	}
	if ch.ParentID != 0 {
		parent := ch.ParentID
		p.ParentID = &parent
	}
	if ch.Type == cache.ChannelVoice {
		bitrate, limit := ch.Bitrate, ch.UserLimit
		p.Bitrate, p.UserLimit = &bitrate, &limit
	}

	if edit.Name != nil {
		p.Name = *edit.Name
	}
	if edit.Topic != nil {
		p.Topic = *edit.Topic
	}
	if edit.Position != nil {
		p.Position = *edit.Position
	}
	if edit.NSFW != nil {
		p.NSFW = *edit.NSFW
	}
	if edit.Bitrate != nil {
		bitrate := *edit.Bitrate
		if bitrate != 0 {
			bitrate = util.Clamp(bitrate, MinBitrate, MaxBitrate)
		}
		p.Bitrate = &bitrate
	}
	if edit.UserLimit != nil {
		limit := util.Clamp(*edit.UserLimit, 0, MaxUserLimit)
		p.UserLimit = &limit
	}
	if edit.ParentID != nil {
		p.ParentID = nil
		if *edit.ParentID != 0 {
			parent := *edit.ParentID
			p.ParentID = &parent
		}
	}

	var out cache.Channel
	if err := c.call(ctx, http.MethodPatch, rest.Channel(channelID), p, &out); err != nil {
		return cache.Channel{}, fmt.Errorf("unable to edit channel: %w", err)
	}
	return out, nil
}

// PermissionTarget names the subject of an overwrite. UserID wins when both
// are set.
type PermissionTarget struct {
	UserID snowflake.ID
	RoleID snowflake.ID
}

func (t PermissionTarget) resolve() (snowflake.ID, string, bool) {
	switch {
	case t.UserID != 0:
		return t.UserID, "member", true
	case t.RoleID != 0:
		return t.RoleID, "role", true
	default:
		return 0, "", false
	}
}

type overwritePayload struct {
	ID    snowflake.ID `json:"id"`
	Type  string       `json:"type"`
	Allow int64        `json:"allow"`
	Deny  int64        `json:"deny"`
}

// EditChannelPermissions applies edit to the cached overwrite of target and
// writes the result.
func (c *Client) EditChannelPermissions(ctx context.Context, channelID snowflake.ID, target PermissionTarget, edit permissions.Edit) (cache.Overwrite, error) {
	id, kind, ok := target.resolve()
	if !ok {
		return cache.Overwrite{}, ErrNoPermissionTarget
	}
	ch, ok := c.cache.Channel(channelID)
	if !ok {
		return cache.Overwrite{}, fmt.Errorf("%w: %s", ErrUnknownChannel, channelID)
	}
	if edit.Empty() {
		return cache.Overwrite{}, ErrNoPermissionChange
	}

	current := ch.Permissions.Role[id]
	if kind == "member" {
		current = ch.Permissions.User[id]
	}
	next := edit.Apply(ch.Type, current)

	body := overwritePayload{ID: id, Type: kind, Allow: next.Allow, Deny: next.Deny}
	if err := c.call(ctx, http.MethodPut, rest.ChannelPermission(channelID, id), body, nil); err != nil {
		return cache.Overwrite{}, fmt.Errorf("unable to edit permission: %w", err)
	}
	return next, nil
}

func (c *Client) DeleteChannelPermission(ctx context.Context, channelID snowflake.ID, target PermissionTarget) error {
	id, _, ok := target.resolve()
	if !ok {
		return ErrNoPermissionTarget
	}
	if _, ok := c.cache.Channel(channelID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, channelID)
	}
	if err := c.call(ctx, http.MethodDelete, rest.ChannelPermission(channelID, id), nil, nil); err != nil {
		return fmt.Errorf("unable to delete permission: %w", err)
	}
	return nil
}

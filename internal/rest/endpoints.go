package rest

import (
	"net/url"
	"strconv"

	"github.com/disgoorg/snowflake/v2"
)

const (
	GatewayPath = "/gateway"
	MePath      = "/users/@me"
	MyDMsPath   = "/users/@me/channels"
	OAuthPath   = "/oauth2/applications/@me"
)

func Channel(id snowflake.ID) string {
	return "/channels/" + id.String()
}

func ChannelMessages(id snowflake.ID) string {
	return Channel(id) + "/messages"
}

func ChannelMessage(channelID, messageID snowflake.ID) string {
	return ChannelMessages(channelID) + "/" + messageID.String()
}

func ChannelTyping(id snowflake.ID) string {
	return Channel(id) + "/typing"
}

func ChannelPermission(channelID, targetID snowflake.ID) string {
	return Channel(channelID) + "/permissions/" + targetID.String()
}

func GuildRoles(guildID snowflake.ID) string {
	return "/guilds/" + guildID.String() + "/roles"
}

func GuildMember(guildID, userID snowflake.ID) string {
	return "/guilds/" + guildID.String() + "/members/" + userID.String()
}

func GuildMemberRole(guildID, userID, roleID snowflake.ID) string {
	return GuildMember(guildID, userID) + "/roles/" + roleID.String()
}

func SelfNick(guildID snowflake.ID) string {
	return "/guilds/" + guildID.String() + "/members/@me/nick"
}

// MessagesQuery describes a page of channel history.
type MessagesQuery struct {
	Limit  int
	Before snowflake.ID
	After  snowflake.ID
	Around snowflake.ID
}

func (q MessagesQuery) Encode() string {
	v := url.Values{}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Before != 0 {
		v.Set("before", q.Before.String())
	}
	if q.After != 0 {
		v.Set("after", q.After.String())
	}
	if q.Around != 0 {
		v.Set("around", q.Around.String())
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// Package presenters renders bot command replies.
package presenters

import (
	"fmt"
	"time"

	"github.com/DragonOfMath/discord.io/internal/cache"
)

// Reply is a message body sent back to the channel a command came from.
type Reply struct {
	Content string
	Embed   *Embed
}

type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

const statusColor = 0x7289da

func Pong(ping time.Duration) Reply {
	return Reply{Content: fmt.Sprintf("Pong! %dms", ping.Milliseconds())}
}

func Joined(ch cache.Channel) Reply {
	return Reply{Content: fmt.Sprintf("Joined **%s**.", ch.Name)}
}

func Left(ch cache.Channel) Reply {
	return Reply{Content: fmt.Sprintf("Left **%s**.", ch.Name)}
}

// Failure shows an error message to the user.
func Failure(message string) Reply {
	return Reply{Content: ":warning: " + message}
}

func Usage(prefix, name, usage string) Reply {
	return Failure(fmt.Sprintf("Usage: `%s%s %s`", prefix, name, usage))
}

type Status struct {
	Username string
	Guilds   int
	Channels int
	Members  int
	Ping     time.Duration
	Uptime   time.Duration
	// Voice is the voice channel the client is in for the asking guild.
	Voice *cache.Channel
}

func StatusReport(s Status) Reply {
	voice := "not connected"
	if s.Voice != nil {
		voice = s.Voice.Name
	}
	return Reply{Embed: &Embed{
		Title: s.Username + " status",
		Color: statusColor,
		Fields: []EmbedField{
			{Name: "Guilds", Value: fmt.Sprint(s.Guilds), Inline: true},
			{Name: "Channels", Value: fmt.Sprint(s.Channels), Inline: true},
			{Name: "Members", Value: fmt.Sprint(s.Members), Inline: true},
			{Name: "Ping", Value: fmt.Sprintf("%dms", s.Ping.Milliseconds()), Inline: true},
			{Name: "Uptime", Value: s.Uptime.Truncate(time.Second).String(), Inline: true},
			{Name: "Voice", Value: voice, Inline: true},
		},
	}}
}

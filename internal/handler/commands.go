package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/DragonOfMath/discord.io/internal/cache"
	"github.com/DragonOfMath/discord.io/internal/client"
	"github.com/DragonOfMath/discord.io/internal/presenters"
	"github.com/DragonOfMath/discord.io/internal/util"
	"github.com/disgoorg/snowflake/v2"
)

var errUsage = errors.New("bad command usage")

var PingCommand = Command{
	Name: "ping",
	Handler: func(_ context.Context, bot Bot, _ Request) (presenters.Reply, error) {
		return presenters.Pong(bot.Ping()), nil
	},
}

var JoinCommand = Command{
	Name:  "join",
	Usage: "[channel name or ID]",
	Handler: func(ctx context.Context, bot Bot, req Request) (presenters.Reply, error) {
		g, err := requestGuild(bot, req)
		if err != nil {
			return presenters.Reply{}, err
		}
		ch, err := findVoiceChannel(g, req)
		if err != nil {
			return presenters.Reply{}, err
		}

		if _, err := bot.JoinVoiceChannel(ctx, ch.ID); err != nil {
			if errors.Is(err, client.ErrVoiceActive) {
				return presenters.Reply{}, userErrorf("Already in **%s**.", ch.Name)
			}
			return presenters.Reply{}, err
		}
		return presenters.Joined(ch), nil
	},
}

var LeaveCommand = Command{
	Name: "leave",
	Handler: func(_ context.Context, bot Bot, req Request) (presenters.Reply, error) {
		if _, err := requestGuild(bot, req); err != nil {
			return presenters.Reply{}, err
		}
		s, ok := bot.VoiceSession(req.GuildID)
		if !ok {
			return presenters.Reply{}, userErrorf("Not in a voice channel.")
		}
		ch, _ := bot.Cache().Channel(s.ChannelID())
		if err := bot.LeaveVoiceChannel(s.ChannelID()); err != nil {
			return presenters.Reply{}, err
		}
		return presenters.Left(ch), nil
	},
}

// StatusCommand reports cache sizes, latency and uptime since started.
func StatusCommand(started time.Time) Command {
	return Command{
		Name: "status",
		Handler: func(_ context.Context, bot Bot, req Request) (presenters.Reply, error) {
			c := bot.Cache()
			status := presenters.Status{
				Username: c.Self().Username,
				Ping:     bot.Ping(),
				Uptime:   time.Since(started),
			}
			for _, g := range c.Guilds() {
				status.Guilds++
				status.Channels += len(g.Channels)
				status.Members += len(g.Members)
			}
			if s, ok := bot.VoiceSession(req.GuildID); ok && req.GuildID != 0 {
				if ch, ok := c.Channel(s.ChannelID()); ok {
					status.Voice = &ch
				}
			}
			return presenters.StatusReport(status), nil
		},
	}
}

// Commands returns every built-in command.
func Commands(started time.Time) []Command {
	return []Command{PingCommand, JoinCommand, LeaveCommand, StatusCommand(started)}
}

func requestGuild(bot Bot, req Request) (cache.Guild, error) {
	g, ok := bot.Cache().Guild(req.GuildID)
	if req.GuildID == 0 || !ok {
		return cache.Guild{}, userErrorf("Voice commands only work in a server.")
	}
	return g, nil
}

// findVoiceChannel resolves the channel a join names. Without arguments it
// is the voice channel the author is in.
func findVoiceChannel(g cache.Guild, req Request) (cache.Channel, error) {
	voiceChannels := util.Filter(g.Channels, func(_ snowflake.ID, ch cache.Channel) bool {
		return ch.Type == cache.ChannelVoice
	})

	if len(req.Args) == 0 {
		withAuthor := util.Filter(voiceChannels, func(_ snowflake.ID, ch cache.Channel) bool {
			_, ok := ch.Members[req.AuthorID]
			return ok
		})
		ch, err := util.GetOne(withAuthor)
		if err != nil {
			return cache.Channel{}, errUsage
		}
		return ch, nil
	}

	query := strings.Join(req.Args, " ")
	if id, err := snowflake.Parse(query); err == nil {
		if ch, ok := voiceChannels[id]; ok {
			return ch, nil
		}
	}
	named := util.Filter(voiceChannels, func(_ snowflake.ID, ch cache.Channel) bool {
		return strings.EqualFold(ch.Name, query)
	})
	ch, err := util.GetOne(named)
	switch {
	case errors.Is(err, util.ErrNoElement):
		return cache.Channel{}, userErrorf("No voice channel named **%s**.", query)
	case errors.Is(err, util.ErrMultipleElements):
		return cache.Channel{}, userErrorf("More than one voice channel is named **%s**, use its ID instead.", query)
	}
	return ch, nil
}

package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/DragonOfMath/discord.io/internal/cache"
	"github.com/DragonOfMath/discord.io/internal/client"
	"github.com/DragonOfMath/discord.io/internal/events"
	"github.com/DragonOfMath/discord.io/internal/voice"
	"github.com/disgoorg/snowflake/v2"
)

// Bot is the part of the client the commands use.
type Bot interface {
	ID() snowflake.ID
	Ping() time.Duration
	Cache() *cache.Cache
	SendMessage(ctx context.Context, in client.MessageSend) (cache.Message, error)
	JoinVoiceChannel(ctx context.Context, channelID snowflake.ID) (*voice.Session, error)
	LeaveVoiceChannel(channelID snowflake.ID) error
	VoiceSession(guildID snowflake.ID) (*voice.Session, bool)
}

var _ Bot = (*client.Client)(nil)

// ReadyLog logs the account the client identified as.
func ReadyLog(c *cache.Cache, logger *slog.Logger) events.Handler {
	return func(events.Event) {
		self := c.Self()
		logger.Info("Bot is ready", "username", self.Username, "userID", self.ID, "guilds", len(c.GuildIDs()))
	}
}

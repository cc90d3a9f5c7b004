package client

import (
	"github.com/DragonOfMath/discord.io/internal/config"
	"github.com/DragonOfMath/discord.io/internal/gateway"
	"github.com/DragonOfMath/discord.io/internal/rest"
)

// NewFromConfig builds a client from environment configuration. opts are
// applied after the ones derived from cfg.
func NewFromConfig(cfg *config.DiscordConfig, opts ...Option) *Client {
	base := []Option{
		WithRESTOptions(rest.WithBaseURL(cfg.APIBase)),
		WithGatewayOptions(gateway.WithConnectGate(gateway.NewConnectGate(cfg.ConnectInterval))),
	}
	return New(Config{
		Token:             cfg.Token,
		Bot:               cfg.Bot,
		Shard:             cfg.Shard(),
		Compress:          cfg.Compress,
		MessageCacheLimit: cfg.MessageCacheLimit,
		LargeThreshold:    cfg.LargeThreshold,
	}, append(base, opts...)...)
}

package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type DiscordConfig struct {
	Token             string        `env:"DISCORD_TOKEN, required"`
	Bot               bool          `env:"DISCORD_BOT, default=true"`
	ShardIndex        int           `env:"DISCORD_SHARD_INDEX, default=0"`
	ShardCount        int           `env:"DISCORD_SHARD_COUNT, default=0"`
	MessageCacheLimit int           `env:"DISCORD_MESSAGE_CACHE_LIMIT, default=50"`
	LargeThreshold    int           `env:"DISCORD_LARGE_THRESHOLD, default=250"`
	Compress          bool          `env:"DISCORD_COMPRESS"`
	APIBase           string        `env:"DISCORD_API_BASE, default=https://discordapp.com/api"`
	ConnectInterval   time.Duration `env:"DISCORD_CONNECT_INTERVAL, default=6s"`
	CommandPrefix     string        `env:"DISCORD_COMMAND_PREFIX, default=!"`
}

// Shard returns the [index, count] pair sent on identify, or nil when the
// client is not sharded.
func (c *DiscordConfig) Shard() []int {
	if c.ShardCount <= 0 {
		return nil
	}
	return []int{c.ShardIndex, c.ShardCount}
}

func NewDiscordConfigFromEnv() (*DiscordConfig, error) {
	var cfg DiscordConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	if cfg.ShardCount > 0 && (cfg.ShardIndex < 0 || cfg.ShardIndex >= cfg.ShardCount) {
		return nil, fmt.Errorf("shard index %d is out of range for %d shards", cfg.ShardIndex, cfg.ShardCount)
	}
	if cfg.CommandPrefix == "" {
		return nil, fmt.Errorf("refusing to route every message as a command, DISCORD_COMMAND_PREFIX is empty")
	}
	return &cfg, nil
}

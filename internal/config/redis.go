package config

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, required"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`

	// Stream and Group name the playback job stream and its consumer group.
	Stream    string `env:"REDIS_STREAM, default=playback_jobs"`
	Group     string `env:"REDIS_GROUP, default=playback_workers"`
	CancelSet string `env:"REDIS_CANCEL_SET, default=playback_cancelled"`
}

func NewRedisConfigFromEnv() (*RedisConfig, error) {
	var cfg RedisConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

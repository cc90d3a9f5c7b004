package config

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

type LogConfig struct {
	Level string `env:"LOG_LEVEL, default=info"`
	// File receives a JSON copy of every record when set.
	File string `env:"LOG_FILE"`
}

func NewLogConfigFromEnv() (*LogConfig, error) {
	var cfg LogConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// MinioConfig locates the clip bucket. Endpoint is host[:port]; the scheme
// comes from Secure.
type MinioConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT, required"`
	AccessKey string `env:"MINIO_ACCESS_KEY, required"`
	SecretKey string `env:"MINIO_SECRET_KEY, required"`
	Region    string `env:"MINIO_REGION"`
	Bucket    string `env:"MINIO_BUCKET, default=clips"`
	Secure    bool   `env:"MINIO_SECURE"`
}

func NewMinioConfigFromEnv() (*MinioConfig, error) {
	var cfg MinioConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, fmt.Errorf("failed to process minio config: %w", err)
	}
	if strings.Contains(cfg.Endpoint, "://") {
		return nil, fmt.Errorf("MINIO_ENDPOINT must not include a scheme: %s", cfg.Endpoint)
	}
	return &cfg, nil
}

package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/DragonOfMath/discord.io/internal/config"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestNewDiscordConfigFromEnv(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		want  *config.DiscordConfig
		shard []int
	}{
		{
			name: "defaults",
			env:  map[string]string{"DISCORD_TOKEN": "abc"},
			want: &config.DiscordConfig{
				Token:             "abc",
				Bot:               true,
				MessageCacheLimit: 50,
				LargeThreshold:    250,
				APIBase:           "https://discordapp.com/api",
				ConnectInterval:   6 * time.Second,
				CommandPrefix:     "!",
			},
		},
		{
			name: "sharded user account",
			env: map[string]string{
				"DISCORD_TOKEN":       "abc",
				"DISCORD_BOT":         "false",
				"DISCORD_SHARD_INDEX": "1",
				"DISCORD_SHARD_COUNT": "4",
				"DISCORD_COMPRESS":    "true",
			},
			want: &config.DiscordConfig{
				Token:             "abc",
				ShardIndex:        1,
				ShardCount:        4,
				MessageCacheLimit: 50,
				LargeThreshold:    250,
				Compress:          true,
				APIBase:           "https://discordapp.com/api",
				ConnectInterval:   6 * time.Second,
				CommandPrefix:     "!",
			},
			shard: []int{1, 4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			got, err := config.NewDiscordConfigFromEnv()
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("NewDiscordConfigFromEnv() mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.shard, got.Shard()); diff != "" {
				t.Errorf("Shard() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewDiscordConfigFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing token", env: map[string]string{}},
		{name: "shard out of range", env: map[string]string{"DISCORD_TOKEN": "abc", "DISCORD_SHARD_INDEX": "4", "DISCORD_SHARD_COUNT": "4"}},
		{name: "bad interval", env: map[string]string{"DISCORD_TOKEN": "abc", "DISCORD_CONNECT_INTERVAL": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DISCORD_TOKEN", "")
			require.NoError(t, os.Unsetenv("DISCORD_TOKEN"))
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.NewDiscordConfigFromEnv()
			require.Error(t, err)
		})
	}
}

func TestNewRedisConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "localhost:6379")

	got, err := config.NewRedisConfigFromEnv()
	require.NoError(t, err)
	want := &config.RedisConfig{
		Addr:      "localhost:6379",
		Stream:    "playback_jobs",
		Group:     "playback_workers",
		CancelSet: "playback_cancelled",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NewRedisConfigFromEnv() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewMinioConfigFromEnv(t *testing.T) {
	t.Setenv("MINIO_ENDPOINT", "localhost:9000")
	t.Setenv("MINIO_ACCESS_KEY", "minio")
	t.Setenv("MINIO_SECRET_KEY", "secret")

	got, err := config.NewMinioConfigFromEnv()
	require.NoError(t, err)
	want := &config.MinioConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "minio",
		SecretKey: "secret",
		Bucket:    "clips",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NewMinioConfigFromEnv() mismatch (-want +got):\n%s", diff)
	}

	t.Setenv("MINIO_ENDPOINT", "http://localhost:9000")
	_, err = config.NewMinioConfigFromEnv()
	require.ErrorContains(t, err, "scheme")
}

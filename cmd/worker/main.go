package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/DragonOfMath/discord.io/internal/client"
	"github.com/DragonOfMath/discord.io/internal/config"
	"github.com/DragonOfMath/discord.io/internal/datalayer"
	"github.com/DragonOfMath/discord.io/internal/events"
	"github.com/DragonOfMath/discord.io/internal/gateway"
	"github.com/DragonOfMath/discord.io/internal/handler"
	"github.com/DragonOfMath/discord.io/internal/logging"
	"github.com/DragonOfMath/discord.io/internal/opus"
	"github.com/DragonOfMath/discord.io/internal/worker"
	"github.com/disgoorg/snowflake/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

var dryRun = flag.Bool("dry-run", false, "Do not use Discord, just log the clips that would play")

// dryRunSpeaker drains clips without a voice connection.
type dryRunSpeaker struct {
	logger *slog.Logger
}

func (s dryRunSpeaker) PlayFrames(ctx context.Context, channelID snowflake.ID, src opus.FrameSource) error {
	n, err := opus.CopyFrames(io.Discard, src)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Dry run mode: clip would be played", "channelID", channelID, "frames", n)
	return nil
}

func runWorkerForever() error {
	flag.Parse()
	if err := config.LoadEnv(); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("No .env file found, continuing without it")
		} else {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	logger, closer, err := logging.Setup()
	if err != nil {
		return err
	}
	defer closer.Close()

	redisConfig, err := config.NewRedisConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load redis config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisConfig.Addr,
		Password: redisConfig.Password,
		DB:       redisConfig.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	consumer, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("failed to get hostname: %w", err)
	}
	queue, err := worker.NewRedisJobQueue(ctx, rdb, redisConfig.Stream, redisConfig.Group, consumer)
	if err != nil {
		return err
	}
	cancels := worker.NewRedisCancelList(rdb, redisConfig.CancelSet)

	storage, err := datalayer.NewMinioStorageFromEnv()
	if err != nil {
		return fmt.Errorf("failed to create minio storage: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	var speaker worker.Speaker = dryRunSpeaker{logger: logger}
	ready := make(chan struct{})
	if *dryRun {
		close(ready)
	} else {
		discordConfig, err := config.NewDiscordConfigFromEnv()
		if err != nil {
			return fmt.Errorf("failed to load discord config: %w", err)
		}
		c := client.NewFromConfig(discordConfig, client.WithLogger(logger))
		c.Bus().On(gateway.EventReady, handler.ReadyLog(c.Cache(), logger))
		c.Bus().Once(gateway.EventReady, func(events.Event) { close(ready) })

		if err := c.Connect(ctx); err != nil {
			return fmt.Errorf("failed to open discord session: %w", err)
		}
		defer func() {
			if err := c.Close(); err != nil {
				logger.Error("failed to close discord session", "error", err)
			}
		}()
		speaker = c

		g.Go(func() error {
			select {
			case <-ctx.Done():
				return nil
			case <-c.Done():
				return errors.New("discord session ended")
			}
		})
	}

	runner := worker.NewRunner(queue, cancels, storage, speaker, worker.WithLogger(logger))
	g.Go(func() error {
		select {
		case <-ready:
		case <-ctx.Done():
			return nil
		}
		logger.Info("receiving playback jobs", "stream", redisConfig.Stream, "consumer", consumer)
		return runner.Run(ctx)
	})

	return g.Wait()
}

func main() {
	if err := runWorkerForever(); err != nil {
		slog.Error("Worker encountered an error", slog.Any("error", err))
		os.Exit(1)
	}
}

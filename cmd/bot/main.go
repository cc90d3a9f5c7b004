package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DragonOfMath/discord.io/internal/client"
	"github.com/DragonOfMath/discord.io/internal/config"
	"github.com/DragonOfMath/discord.io/internal/events"
	"github.com/DragonOfMath/discord.io/internal/gateway"
	"github.com/DragonOfMath/discord.io/internal/handler"
	"github.com/DragonOfMath/discord.io/internal/logging"
)

func runBotForever() error {
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

	cfg, err := config.NewDiscordConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.NewFromConfig(cfg, client.WithLogger(logger))
	c.Bus().On(gateway.EventReady, handler.ReadyLog(c.Cache(), logger))
	c.Bus().On(gateway.EventDisconnect, func(e events.Event) {
		if d, ok := e.Data.(gateway.Disconnect); ok {
			logger.Warn("gateway disconnected", "code", d.Code, "reason", d.Reason, "error", d.Err)
		}
	})

	router := handler.NewRouter(c, cfg.CommandPrefix, logger)
	router.Register(handler.Commands(time.Now())...)
	stopRouting := router.Listen(ctx, c.Bus())
	defer stopRouting()

	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("failed to close session", "error", err)
		}
	}()

	select {
	case <-ctx.Done():
	case <-c.Done():
		return fmt.Errorf("gateway session ended")
	}
	return nil
}

func main() {
	if err := runBotForever(); err != nil {
		log.Fatalf("failed to run bot: %v", err)
	}
}

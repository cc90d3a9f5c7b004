package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/DragonOfMath/discord.io/internal/client"
	"github.com/DragonOfMath/discord.io/internal/events"
	"github.com/DragonOfMath/discord.io/internal/presenters"
	"github.com/disgoorg/snowflake/v2"
)

// DefaultTimeout bounds a single command, voice handshakes included.
const DefaultTimeout = 30 * time.Second

// Request is a parsed command message.
type Request struct {
	// GuildID is zero for direct messages.
	GuildID   snowflake.ID
	ChannelID snowflake.ID
	AuthorID  snowflake.ID
	Author    string
	Prefix    string
	Name      string
	Args      []string
}

type Command struct {
	Name    string
	Usage   string
	Handler func(ctx context.Context, bot Bot, req Request) (presenters.Reply, error)
}

// Router dispatches prefixed messages to registered commands and sends their
// replies to the channel the message came from.
type Router struct {
	bot     Bot
	prefix  string
	timeout time.Duration
	logger  *slog.Logger

	commandsMu sync.RWMutex
	commands   map[string]Command

	wg sync.WaitGroup
}

func NewRouter(bot Bot, prefix string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		bot:      bot,
		prefix:   prefix,
		timeout:  DefaultTimeout,
		logger:   logger,
		commands: make(map[string]Command),
	}
}

func (r *Router) Register(commands ...Command) {
	r.commandsMu.Lock()
	defer r.commandsMu.Unlock()

	for _, cmd := range commands {
		name := strings.ToLower(cmd.Name)
		if _, exists := r.commands[name]; exists {
			panic("command already registered: " + name)
		}
		r.commands[name] = cmd
	}
}

// Parse splits a prefixed message into a lower-cased command name and its
// arguments.
func Parse(prefix, content string) (string, []string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(content), prefix)
	if !ok {
		return "", nil, false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 || rest[0] == ' ' {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

// Route runs the command a message names, if any. Messages sent by the
// client itself are ignored.
func (r *Router) Route(ctx context.Context, msg client.MessageEvent) error {
	if msg.UserID == r.bot.ID() {
		return nil
	}
	name, args, ok := Parse(r.prefix, msg.Content)
	if !ok {
		return nil
	}
	r.commandsMu.RLock()
	cmd, ok := r.commands[name]
	r.commandsMu.RUnlock()
	if !ok {
		return nil
	}

	req := Request{
		ChannelID: msg.ChannelID,
		AuthorID:  msg.UserID,
		Author:    msg.Username,
		Prefix:    r.prefix,
		Name:      name,
		Args:      args,
	}
	if ch, ok := r.bot.Cache().Channel(msg.ChannelID); ok {
		req.GuildID = ch.GuildID
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	reply, err := cmd.Handler(ctx, r.bot, req)
	var userErr *UserError
	switch {
	case errors.As(err, &userErr):
		reply = presenters.Failure(userErr.Message)
	case errors.Is(err, errUsage):
		reply = presenters.Usage(r.prefix, cmd.Name, cmd.Usage)
	case err != nil:
		r.logger.Error("command failed", "command", name, "channelID", msg.ChannelID, "error", err)
		reply = presenters.Failure("Something went wrong.")
	}

	send := client.MessageSend{To: msg.ChannelID, Content: reply.Content}
	if reply.Embed != nil {
		send.Embed = reply.Embed
	}
	if _, err := r.bot.SendMessage(ctx, send); err != nil {
		return fmt.Errorf("failed to reply to %s: %w", name, err)
	}
	return nil
}

// Listen routes every message published on bus until the returned function
// is called. Commands run on their own goroutines.
func (r *Router) Listen(ctx context.Context, bus *events.Bus) (stop func()) {
	off := bus.On(client.EventMessage, func(e events.Event) {
		msg, ok := e.Data.(client.MessageEvent)
		if !ok {
			return
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.Route(ctx, msg); err != nil {
				r.logger.Warn("failed to route message", "error", err)
			}
		}()
	})
	return func() {
		off()
		r.wg.Wait()
	}
}

package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/DragonOfMath/discord.io/internal/cache"
	"github.com/DragonOfMath/discord.io/internal/rest"
	"github.com/disgoorg/snowflake/v2"
)

const (
	DefaultMessageLimit = 50
	messagePageSize     = 100
	messagePageDelay    = time.Second

	typingInterval  = 5 * time.Second
	typingPerChar   = 120 * time.Millisecond
	minTypingLength = time.Second
)

type MessageSend struct {
	// To is a channel, or a user the message goes to by DM.
	To      snowflake.ID
	Content string
	Embed   any
	TTS     bool
	// Nonce is generated when empty.
	Nonce string
	// Typing simulates typing before sending, for TypingFor or a duration
	// derived from the content length.
	Typing    bool
	TypingFor time.Duration
}

type messagePayload struct {
	Content string `json:"content"`
	Nonce   string `json:"nonce,omitempty"`
	TTS     bool   `json:"tts"`
	Embed   any    `json:"embed,omitempty"`
}

// TypingDuration is how long typing is simulated for content.
func TypingDuration(content string) time.Duration {
	return max(time.Duration(len(content))*typingPerChar, minTypingLength)
}

func (c *Client) SendMessage(ctx context.Context, in MessageSend) (cache.Message, error) {
	channelID, err := c.ResolveID(ctx, in.To)
	if err != nil {
		return cache.Message{}, err
	}
	if in.Typing {
		d := in.TypingFor
		if d <= 0 {
			d = TypingDuration(in.Content)
		}
		if err := c.SimulateTyping(ctx, channelID, d); err != nil {
			return cache.Message{}, err
		}
	}

	nonce := in.Nonce
	if nonce == "" {
		if nonce, err = c.nonces.Next(); err != nil {
			return cache.Message{}, fmt.Errorf("failed to generate nonce: %w", err)
		}
	}
	body := messagePayload{Content: in.Content, Nonce: nonce, TTS: in.TTS, Embed: in.Embed}
	var m cache.Message
	if err := c.call(ctx, http.MethodPost, rest.ChannelMessages(channelID), body, &m); err != nil {
		return cache.Message{}, fmt.Errorf("unable to send message: %w", err)
	}
	return m, nil
}

func (c *Client) GetMessage(ctx context.Context, channelID, messageID snowflake.ID) (cache.Message, error) {
	var m cache.Message
	if err := c.call(ctx, http.MethodGet, rest.ChannelMessage(channelID, messageID), nil, &m); err != nil {
		return cache.Message{}, fmt.Errorf("unable to get message: %w", err)
	}
	return m, nil
}

type MessagesRequest struct {
	ChannelID snowflake.ID
	// Limit defaults to DefaultMessageLimit.
	Limit  int
	Before snowflake.ID
	After  snowflake.ID
}

// GetMessages pages backwards through a channel's history, 100 messages at a
// time with a pause between pages. It stops at the limit or at the first
// short page.
func (c *Client) GetMessages(ctx context.Context, req MessagesRequest) ([]cache.Message, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	q := rest.MessagesQuery{Before: req.Before, After: req.After}

	var out []cache.Message
	for remaining := limit; remaining > 0; {
		q.Limit = min(remaining, messagePageSize)
		remaining -= q.Limit

		var page []cache.Message
		path := rest.ChannelMessages(req.ChannelID) + q.Encode()
		if err := c.call(ctx, http.MethodGet, path, nil, &page); err != nil {
			return out, fmt.Errorf("unable to get messages: %w", err)
		}
		out = append(out, page...)
		if len(page) < q.Limit || len(out) >= limit || remaining == 0 {
			break
		}
		q.Before = page[len(page)-1].ID
		if err := c.sleep(ctx, messagePageDelay); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (c *Client) EditMessage(ctx context.Context, channelID, messageID snowflake.ID, content string, embed any) (cache.Message, error) {
	body := messagePayload{Content: content, Embed: embed}
	var m cache.Message
	if err := c.call(ctx, http.MethodPatch, rest.ChannelMessage(channelID, messageID), body, &m); err != nil {
		return cache.Message{}, fmt.Errorf("unable to edit message: %w", err)
	}
	return m, nil
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID) error {
	if err := c.call(ctx, http.MethodDelete, rest.ChannelMessage(channelID, messageID), nil, nil); err != nil {
		return fmt.Errorf("unable to delete message: %w", err)
	}
	return nil
}

// SimulateTyping shows the typing indicator in a channel for d, refreshing it
// every five seconds.
func (c *Client) SimulateTyping(ctx context.Context, channelID snowflake.ID, d time.Duration) error {
	for ; d > 0; d -= typingInterval {
		if err := c.call(ctx, http.MethodPost, rest.ChannelTyping(channelID), nil, nil); err != nil {
			return fmt.Errorf("unable to simulate typing: %w", err)
		}
		if err := c.sleep(ctx, min(d, typingInterval)); err != nil {
			return err
		}
	}
	return nil
}

// ResolveID maps a user to their DM channel, opening one when the user is
// known. Any other ID is taken to be a channel.
func (c *Client) ResolveID(ctx context.Context, id snowflake.ID) (snowflake.ID, error) {
	if dm, ok := c.cache.DMByUser(id); ok {
		return dm, nil
	}
	if _, ok := c.cache.User(id); ok && id != c.cache.SelfID() {
		dm, err := c.CreateDMChannel(ctx, id)
		if err != nil {
			return 0, err
		}
		return dm.ID, nil
	}
	return id, nil
}

// call issues a request and decodes the response body into out when out is
// not nil.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.rest.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	return resp.Decode(out)
}

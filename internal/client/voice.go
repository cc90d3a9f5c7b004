package client

import (
	"context"
	"fmt"

	"github.com/DragonOfMath/discord.io/internal/cache"
	"github.com/DragonOfMath/discord.io/internal/codec"
	"github.com/DragonOfMath/discord.io/internal/opus"
	"github.com/DragonOfMath/discord.io/internal/voice"
	"github.com/disgoorg/snowflake/v2"
)

// JoinVoiceChannel asks the gateway to move the client into a voice channel
// and waits for the voice handshake. A failed handshake closes the session
// and is returned.
func (c *Client) JoinVoiceChannel(ctx context.Context, channelID snowflake.ID) (*voice.Session, error) {
	ch, ok := c.cache.Channel(channelID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, channelID)
	}
	if ch.Type != cache.ChannelVoice {
		return nil, fmt.Errorf("%w: %s", ErrNotVoiceChannel, channelID)
	}
	if _, ok := c.voice.Channel(channelID); ok {
		return nil, fmt.Errorf("%w: %s", ErrVoiceActive, channelID)
	}

	s, existing := c.voice.Guild(ch.GuildID)
	if !existing {
		var err error
		if s, err = c.newVoiceSession(ch.GuildID, channelID); err != nil {
			return nil, err
		}
	}

	flags := c.voiceFlags(ch.GuildID)
	update := codec.VoiceStateUpdate{
		GuildID:   ch.GuildID,
		ChannelID: &channelID,
		SelfMute:  flags.mute,
		SelfDeaf:  flags.deaf,
	}
	if err := c.sender.Send(codec.OpVoiceStateUpdate, update); err != nil {
		if !existing {
			_ = s.Close()
		}
		return nil, fmt.Errorf("failed to request voice state: %w", err)
	}
	if err := s.Wait(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to join voice channel %s: %w", channelID, err)
	}
	return s, nil
}

// LeaveVoiceChannel closes the voice session and tells the gateway the client
// has left.
func (c *Client) LeaveVoiceChannel(channelID snowflake.ID) error {
	s, ok := c.voice.Channel(channelID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotInVoice, channelID)
	}
	return c.leaveVoice(s)
}

// leaveVoice closes s and declares a null channel for its guild.
func (c *Client) leaveVoice(s *voice.Session) error {
	_ = s.Close()
	if err := c.sender.Send(codec.OpVoiceStateUpdate, codec.VoiceStateUpdate{GuildID: s.GuildID()}); err != nil {
		return fmt.Errorf("failed to leave voice channel: %w", err)
	}
	return nil
}

func (c *Client) MuteSelf(guildID snowflake.ID) error {
	return c.setSelfVoice(guildID, func(f *voiceFlags) { f.mute = true })
}

func (c *Client) UnmuteSelf(guildID snowflake.ID) error {
	return c.setSelfVoice(guildID, func(f *voiceFlags) { f.mute = false })
}

func (c *Client) DeafenSelf(guildID snowflake.ID) error {
	return c.setSelfVoice(guildID, func(f *voiceFlags) { f.deaf = true })
}

func (c *Client) UndeafenSelf(guildID snowflake.ID) error {
	return c.setSelfVoice(guildID, func(f *voiceFlags) { f.deaf = false })
}

func (c *Client) voiceFlags(guildID snowflake.ID) voiceFlags {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.flags[guildID]; ok {
		return f
	}
	g, _ := c.cache.Guild(guildID)
	return voiceFlags{mute: g.SelfMute, deaf: g.SelfDeaf}
}

// setSelfVoice records the flags for the next join and, while connected,
// sends them to the gateway right away.
func (c *Client) setSelfVoice(guildID snowflake.ID, apply func(*voiceFlags)) error {
	if _, ok := c.cache.Guild(guildID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownGuild, guildID)
	}
	f := c.voiceFlags(guildID)
	apply(&f)
	c.mu.Lock()
	c.flags[guildID] = f
	c.mu.Unlock()

	s, ok := c.voice.Guild(guildID)
	if !ok {
		return nil
	}
	channelID := s.ChannelID()
	return c.sender.Send(codec.OpVoiceStateUpdate, codec.VoiceStateUpdate{
		GuildID:   guildID,
		ChannelID: &channelID,
		SelfMute:  f.mute,
		SelfDeaf:  f.deaf,
	})
}

type AudioOptions struct {
	// Mono encodes a single channel instead of stereo.
	Mono bool
	// Receive decodes inbound audio and publishes it on the session bus.
	Receive bool
}

// GetAudioContext returns the audio context of a ready voice session,
// creating it on first use.
func (c *Client) GetAudioContext(channelID snowflake.ID, opts AudioOptions) (*opus.Context, error) {
	s, ok := c.voice.Channel(channelID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotInVoice, channelID)
	}
	if s.State() != voice.StateReady {
		return nil, fmt.Errorf("%w: %s", ErrVoiceNotReady, channelID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ac, ok := c.audio[s.GuildID()]; ok {
		return ac, nil
	}

	binary, err := c.lookupEncoder(opus.DefaultEncoders...)
	if err != nil {
		return nil, err
	}
	channels := opus.DefaultChannels
	if opts.Mono {
		channels = 1
	}
	cfg := opus.ContextConfig{
		Encoder:     opus.CommandFactory(binary, channels, opus.DefaultBitrate),
		Transmitter: c.transmitterLocked(s),
		Logger:      c.logger.With("guild_id", s.GuildID()),
	}
	if opts.Receive {
		cfg.Decoders = opus.PCMDecoders(channels)
	}
	ac, err := opus.NewContext(s, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio context: %w", err)
	}
	c.audio[s.GuildID()] = ac
	return ac, nil
}

// PlayFrames plays already encoded frames in a voice channel. The client
// joins the channel first unless it is already there, and leaves again
// afterwards if it joined for the call.
func (c *Client) PlayFrames(ctx context.Context, channelID snowflake.ID, src opus.FrameSource) error {
	s, joined := c.voice.Channel(channelID)
	if !joined {
		var err error
		if s, err = c.JoinVoiceChannel(ctx, channelID); err != nil {
			return err
		}
		defer func() {
			if err := c.LeaveVoiceChannel(channelID); err != nil {
				c.logger.Warn("failed to leave voice channel", "channel_id", channelID, "error", err)
			}
		}()
	} else if err := s.Wait(ctx); err != nil {
		return fmt.Errorf("failed to wait for voice channel %s: %w", channelID, err)
	}
	c.mu.Lock()
	tx := c.transmitterLocked(s)
	c.mu.Unlock()
	if err := tx.Play(ctx, src); err != nil {
		return fmt.Errorf("failed to play frames: %w", err)
	}
	return nil
}

// transmitterLocked returns the transmitter of a ready session, shared by its
// audio context and PlayFrames. A new SSRC after a server move starts a new
// transmitter. c.mu must be held.
func (c *Client) transmitterLocked(s *voice.Session) *opus.Transmitter {
	tx, ok := c.tx[s.GuildID()]
	if !ok || tx.Header().SSRC != s.SSRC() {
		tx = opus.NewTransmitter(s, c.logger.With("guild_id", s.GuildID()))
		c.tx[s.GuildID()] = tx
	}
	return tx
}

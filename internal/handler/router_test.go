package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DragonOfMath/discord.io/internal/cache"
	"github.com/DragonOfMath/discord.io/internal/client"
	"github.com/DragonOfMath/discord.io/internal/events"
	"github.com/DragonOfMath/discord.io/internal/handler"
	"github.com/DragonOfMath/discord.io/internal/presenters"
	"github.com/DragonOfMath/discord.io/internal/voice"
	"github.com/disgoorg/snowflake/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	selfID  = 1
	aliceID = 2
	guildID = 10
	textID  = 100
	lobbyID = 200
	musicID = 201
	dupeID  = 202
	dmID    = 50
)

type obj = map[string]any

func sid(n int) string { return fmt.Sprint(n) }

func rawJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

type fakeBot struct {
	cache *cache.Cache

	mu      sync.Mutex
	sent    []client.MessageSend
	joined  []snowflake.ID
	left    []snowflake.ID
	session *voice.Session
	joinErr error
}

var _ handler.Bot = (*fakeBot)(nil)

func (b *fakeBot) ID() snowflake.ID    { return selfID }
func (b *fakeBot) Ping() time.Duration { return 42 * time.Millisecond }
func (b *fakeBot) Cache() *cache.Cache { return b.cache }

func (b *fakeBot) SendMessage(_ context.Context, in client.MessageSend) (cache.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, in)
	return cache.Message{ChannelID: in.To, Content: in.Content}, nil
}

func (b *fakeBot) JoinVoiceChannel(_ context.Context, channelID snowflake.ID) (*voice.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.joinErr != nil {
		return nil, b.joinErr
	}
	b.joined = append(b.joined, channelID)
	b.session = voice.New(guildID, channelID, selfID)
	return b.session, nil
}

func (b *fakeBot) LeaveVoiceChannel(channelID snowflake.ID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.left = append(b.left, channelID)
	b.session = nil
	return nil
}

func (b *fakeBot) VoiceSession(snowflake.ID) (*voice.Session, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session, b.session != nil
}

func (b *fakeBot) replies() []client.MessageSend {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]client.MessageSend(nil), b.sent...)
}

func member(id int, name string) obj {
	return obj{"user": obj{"id": sid(id), "username": name}, "roles": []string{}}
}

func newFakeBot(t *testing.T) *fakeBot {
	t.Helper()
	c := cache.New()
	require.NoError(t, c.LoadReady(rawJSON(t, obj{
		"user":   obj{"id": sid(selfID), "username": "bot"},
		"guilds": []obj{{"id": sid(guildID), "unavailable": true}},
		"private_channels": []obj{
			{"id": sid(dmID), "type": 1, "recipients": []obj{{"id": sid(aliceID), "username": "alice"}}},
		},
	})))
	_, err := c.Create(cache.KindGuild, rawJSON(t, obj{
		"id":      sid(guildID),
		"name":    "guild",
		"members": []obj{member(selfID, "bot"), member(aliceID, "alice")},
		"channels": []obj{
			{"id": sid(textID), "type": 0, "name": "general"},
			{"id": sid(lobbyID), "type": 2, "name": "Lobby"},
			{"id": sid(musicID), "type": 2, "name": "Music"},
			{"id": sid(dupeID), "type": 2, "name": "music"},
		},
		"roles":        []obj{},
		"voice_states": []obj{{"user_id": sid(aliceID), "channel_id": sid(lobbyID)}},
	}))
	require.NoError(t, err)
	return &fakeBot{cache: c}
}

func newRouter(bot handler.Bot) *handler.Router {
	r := handler.NewRouter(bot, "!", nil)
	r.Register(handler.Commands(time.Now())...)
	return r
}

func message(channelID, userID int, content string) client.MessageEvent {
	return client.MessageEvent{
		Username:  "alice",
		UserID:    snowflake.ID(userID),
		ChannelID: snowflake.ID(channelID),
		Content:   content,
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		content string
		name    string
		args    []string
		ok      bool
	}{
		{content: "!ping", name: "ping", ok: true},
		{content: "  !JOIN  Lobby  two ", name: "join", args: []string{"Lobby", "two"}, ok: true},
		{content: "! ping"},
		{content: "!"},
		{content: "ping"},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			name, args, ok := handler.Parse("!", tt.content)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
			if diff := cmp.Diff(tt.args, args, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Parse() args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRouter_Route(t *testing.T) {
	tests := []struct {
		name    string
		msg     client.MessageEvent
		want    []client.MessageSend
		joined  []snowflake.ID
		joinErr error
	}{
		{
			name: "ping",
			msg:  message(textID, aliceID, "!ping"),
			want: []client.MessageSend{{To: textID, Content: "Pong! 42ms"}},
		},
		{
			name:   "join the author's channel",
			msg:    message(textID, aliceID, "!join"),
			want:   []client.MessageSend{{To: textID, Content: "Joined **Lobby**."}},
			joined: []snowflake.ID{lobbyID},
		},
		{
			name:   "join by id",
			msg:    message(textID, aliceID, "!join "+sid(musicID)),
			want:   []client.MessageSend{{To: textID, Content: "Joined **Music**."}},
			joined: []snowflake.ID{musicID},
		},
		{
			name:   "join by name ignores case",
			msg:    message(textID, aliceID, "!join lobby"),
			want:   []client.MessageSend{{To: textID, Content: "Joined **Lobby**."}},
			joined: []snowflake.ID{lobbyID},
		},
		{
			name: "ambiguous name",
			msg:  message(textID, aliceID, "!join music"),
			want: []client.MessageSend{{To: textID, Content: ":warning: More than one voice channel is named **music**, use its ID instead."}},
		},
		{
			name: "unknown name",
			msg:  message(textID, aliceID, "!join attic"),
			want: []client.MessageSend{{To: textID, Content: ":warning: No voice channel named **attic**."}},
		},
		{
			name: "author outside voice",
			msg:  message(textID, selfID+100, "!join"),
			want: []client.MessageSend{{To: textID, Content: ":warning: Usage: `!join [channel name or ID]`"}},
		},
		{
			name: "voice in a direct message",
			msg:  message(dmID, aliceID, "!join"),
			want: []client.MessageSend{{To: dmID, Content: ":warning: Voice commands only work in a server."}},
		},
		{
			name:    "already connected",
			msg:     message(textID, aliceID, "!join"),
			joinErr: client.ErrVoiceActive,
			want:    []client.MessageSend{{To: textID, Content: ":warning: Already in **Lobby**."}},
		},
		{
			name:    "unexpected failure",
			msg:     message(textID, aliceID, "!join"),
			joinErr: errors.New("handshake timed out"),
			want:    []client.MessageSend{{To: textID, Content: ":warning: Something went wrong."}},
		},
		{
			name: "leave outside voice",
			msg:  message(textID, aliceID, "!leave"),
			want: []client.MessageSend{{To: textID, Content: ":warning: Not in a voice channel."}},
		},
		{name: "unknown command", msg: message(textID, aliceID, "!dance")},
		{name: "plain message", msg: message(textID, aliceID, "ping")},
		{name: "own message", msg: message(textID, selfID, "!ping")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot := newFakeBot(t)
			bot.joinErr = tt.joinErr

			require.NoError(t, newRouter(bot).Route(context.Background(), tt.msg))

			if diff := cmp.Diff(tt.want, bot.replies()); diff != "" {
				t.Errorf("replies mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.joined, bot.joined); diff != "" {
				t.Errorf("joined mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRouter_JoinThenLeave(t *testing.T) {
	bot := newFakeBot(t)
	r := newRouter(bot)

	require.NoError(t, r.Route(context.Background(), message(textID, aliceID, "!join")))
	require.NoError(t, r.Route(context.Background(), message(textID, aliceID, "!leave")))

	assert.Equal(t, []snowflake.ID{lobbyID}, bot.left)
	want := []client.MessageSend{
		{To: textID, Content: "Joined **Lobby**."},
		{To: textID, Content: "Left **Lobby**."},
	}
	if diff := cmp.Diff(want, bot.replies()); diff != "" {
		t.Errorf("replies mismatch (-want +got):\n%s", diff)
	}
}

func TestRouter_Status(t *testing.T) {
	bot := newFakeBot(t)
	r := newRouter(bot)
	require.NoError(t, r.Route(context.Background(), message(textID, aliceID, "!join")))

	require.NoError(t, r.Route(context.Background(), message(textID, aliceID, "!status")))

	replies := bot.replies()
	require.Len(t, replies, 2)
	embed, ok := replies[1].Embed.(*presenters.Embed)
	require.True(t, ok, "expected an embed, got %T", replies[1].Embed)
	assert.Equal(t, "bot status", embed.Title)

	fields := make(map[string]string)
	for _, f := range embed.Fields {
		fields[f.Name] = f.Value
	}
	assert.Equal(t, "1", fields["Guilds"])
	assert.Equal(t, "4", fields["Channels"])
	assert.Equal(t, "2", fields["Members"])
	assert.Equal(t, "42ms", fields["Ping"])
	assert.Equal(t, "Lobby", fields["Voice"])
}

func TestRouter_RegisterDuplicate(t *testing.T) {
	r := handler.NewRouter(newFakeBot(t), "!", nil)
	r.Register(handler.PingCommand)

	assert.Panics(t, func() { r.Register(handler.Command{Name: "PING"}) })
}

func TestRouter_Listen(t *testing.T) {
	bot := newFakeBot(t)
	bus := events.New(nil)
	stop := newRouter(bot).Listen(context.Background(), bus)

	bus.Emit(client.EventMessage, message(textID, aliceID, "!ping"))
	require.Eventually(t, func() bool { return len(bot.replies()) == 1 }, time.Second, 5*time.Millisecond)

	stop()
	bus.Emit(client.EventMessage, message(textID, aliceID, "!ping"))
	assert.Len(t, bot.replies(), 1)
}

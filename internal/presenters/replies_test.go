package presenters_test

import (
	"testing"
	"time"

	"github.com/DragonOfMath/discord.io/internal/cache"
	"github.com/DragonOfMath/discord.io/internal/presenters"
	"github.com/google/go-cmp/cmp"
)

func TestReplies(t *testing.T) {
	lobby := cache.Channel{Name: "Lobby"}
	tests := []struct {
		name string
		got  presenters.Reply
		want presenters.Reply
	}{
		{name: "pong", got: presenters.Pong(42 * time.Millisecond), want: presenters.Reply{Content: "Pong! 42ms"}},
		{name: "joined", got: presenters.Joined(lobby), want: presenters.Reply{Content: "Joined **Lobby**."}},
		{name: "left", got: presenters.Left(lobby), want: presenters.Reply{Content: "Left **Lobby**."}},
		{name: "usage", got: presenters.Usage("!", "join", "[channel]"), want: presenters.Reply{Content: ":warning: Usage: `!join [channel]`"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.got); diff != "" {
				t.Errorf("reply mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStatusReport(t *testing.T) {
	tests := []struct {
		name  string
		voice *cache.Channel
		want  string
	}{
		{name: "outside voice", want: "not connected"},
		{name: "in voice", voice: &cache.Channel{Name: "Lobby"}, want: "Lobby"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := presenters.StatusReport(presenters.Status{
				Username: "bot",
				Guilds:   2,
				Channels: 9,
				Members:  40,
				Ping:     1500 * time.Microsecond,
				Uptime:   90*time.Minute + 300*time.Millisecond,
				Voice:    tt.voice,
			})

			want := presenters.Reply{Embed: &presenters.Embed{
				Title: "bot status",
				Color: 0x7289da,
				Fields: []presenters.EmbedField{
					{Name: "Guilds", Value: "2", Inline: true},
					{Name: "Channels", Value: "9", Inline: true},
					{Name: "Members", Value: "40", Inline: true},
					{Name: "Ping", Value: "1ms", Inline: true},
					{Name: "Uptime", Value: "1h30m0s", Inline: true},
					{Name: "Voice", Value: tt.want, Inline: true},
				},
			}}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("StatusReport() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

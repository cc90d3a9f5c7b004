package codec_test

import (
	"testing"

	"github.com/DragonOfMath/discord.io/internal/codec"
)

func TestEventName(t *testing.T) {
	tc := map[string]string{
		"READY":                "ready",
		"GUILD_CREATE":         "guildCreate",
		"GUILD_MEMBER_ADD":     "guildMemberAdd",
		"MESSAGE_REACTION_ADD": "messageReactionAdd",
		"":                     "",
	}
	for in, want := range tc {
		if got := codec.EventName(in); got != want {
			t.Errorf("EventName(%q) = %q, want %q", in, got, want)
		}
	}
}

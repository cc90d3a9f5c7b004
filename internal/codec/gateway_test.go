package codec_test

import (
	"encoding/json"
	"testing"

	"github.com/DragonOfMath/discord.io/internal/codec"
	"github.com/google/go-cmp/cmp"
)

func TestDecodeFrame(t *testing.T) {
	f, err := codec.DecodeFrame([]byte(`{"op":0,"d":{"a":1},"s":42,"t":"GUILD_CREATE"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Op != codec.OpDispatch || f.S != 42 || f.T != "GUILD_CREATE" {
		t.Errorf("unexpected frame: %+v", f)
	}
	if string(f.D) != `{"a":1}` {
		t.Errorf("expected raw payload to be kept, got %s", f.D)
	}

	if _, err := codec.DecodeFrame([]byte(`{"op":`)); err == nil {
		t.Error("expected error for truncated frame")
	}
}

func TestEncodeFrame_Heartbeat(t *testing.T) {
	tc := []struct {
		name string
		seq  int64
		want string
	}{
		{name: "before first dispatch", seq: 0, want: `{"op":1,"d":null}`},
		{name: "after dispatch", seq: 7, want: `{"op":1,"d":7}`},
	}

	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			got, err := codec.EncodeFrame(codec.OpHeartbeat, codec.HeartbeatPayload(test.seq))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(test.want, string(got)); diff != "" {
				t.Errorf("EncodeFrame() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewIdentify_Shard(t *testing.T) {
	tc := []struct {
		name  string
		shard []int
		want  []int
	}{
		{name: "no shard", shard: nil, want: nil},
		{name: "valid shard", shard: []int{1, 4}, want: []int{1, 4}},
		{name: "index equals count", shard: []int{4, 4}, want: nil},
		{name: "single shard", shard: []int{0, 1}, want: nil},
		{name: "negative index", shard: []int{-1, 2}, want: nil},
		{name: "wrong length", shard: []int{1}, want: nil},
	}

	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			id := codec.NewIdentify("token", false, test.shard, nil)
			if diff := cmp.Diff(test.want, id.Shard); diff != "" {
				t.Errorf("NewIdentify() shard mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIdentify_JSON(t *testing.T) {
	raw, err := json.Marshal(codec.NewIdentify("abc", true, nil, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["token"] != "abc" || got["v"] != float64(5) || got["large_threshold"] != float64(250) {
		t.Errorf("unexpected identify payload: %s", raw)
	}
	if _, ok := got["shard"]; ok {
		t.Errorf("expected shard to be omitted, got %s", raw)
	}
	props := got["properties"].(map[string]any)
	if props["$browser"] != "discord.io" || props["$device"] != "discord.io" {
		t.Errorf("unexpected properties: %v", props)
	}
}

func TestFrame_Resumable(t *testing.T) {
	for raw, want := range map[string]bool{"true": true, "false": false, "null": false} {
		f := codec.Frame{Op: codec.OpInvalidSession, D: json.RawMessage(raw)}
		if got := f.Resumable(); got != want {
			t.Errorf("Resumable(%s) = %v, want %v", raw, got, want)
		}
	}
}

func TestVoiceStateUpdate_NullChannel(t *testing.T) {
	raw, err := json.Marshal(codec.VoiceStateUpdate{GuildID: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"guild_id":"10","channel_id":null,"self_mute":false,"self_deaf":false}`
	if diff := cmp.Diff(want, string(raw)); diff != "" {
		t.Errorf("Marshal() mismatch (-want +got):\n%s", diff)
	}
}

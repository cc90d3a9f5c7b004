package codec_test

import (
	"encoding/json"
	"testing"

	"github.com/DragonOfMath/discord.io/internal/codec"
	"github.com/google/go-cmp/cmp"
)

func TestEncodeVoiceFrame_SelectProtocol(t *testing.T) {
	got, err := codec.EncodeVoiceFrame(codec.VoiceOpSelectProtocol, codec.NewSelectProtocol("203.0.113.5", 8080))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"op":1,"d":{"protocol":"udp","data":{"address":"203.0.113.5","port":8080,"mode":"xsalsa20_poly1305"}}}`
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Errorf("EncodeVoiceFrame() mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionDescription_SecretKey(t *testing.T) {
	key := make([]int, 32)
	for i := range key {
		key[i] = i
	}
	raw, _ := json.Marshal(map[string]any{"mode": "xsalsa20_poly1305", "secret_key": key})

	var sd codec.SessionDescription
	if err := json.Unmarshal(raw, &sd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sd.SecretKey[0] != 0 || sd.SecretKey[31] != 31 {
		t.Errorf("unexpected key: %v", sd.SecretKey)
	}
}

func TestSpeaking_Flag(t *testing.T) {
	tc := []struct {
		raw  string
		want codec.Flag
	}{
		{raw: `{"user_id":"5","ssrc":9,"speaking":true}`, want: true},
		{raw: `{"user_id":"5","ssrc":9,"speaking":false}`, want: false},
		{raw: `{"user_id":"5","ssrc":9,"speaking":1}`, want: true},
		{raw: `{"user_id":"5","ssrc":9,"speaking":0}`, want: false},
	}
	for _, test := range tc {
		var s codec.Speaking
		if err := json.Unmarshal([]byte(test.raw), &s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.Speaking != test.want || s.SSRC != 9 || s.UserID != 5 {
			t.Errorf("Unmarshal(%s) = %+v", test.raw, s)
		}
	}
}

func TestVoiceInterval(t *testing.T) {
	if got := codec.VoiceInterval(41250.5).Milliseconds(); got != 41250 {
		t.Errorf("expected 41250ms, got %d", got)
	}
}

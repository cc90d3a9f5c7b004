package codec

import (
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Opcode is a gateway operation code.
type Opcode int

const (
	OpDispatch            Opcode = 0
	OpHeartbeat           Opcode = 1
	OpIdentify            Opcode = 2
	OpStatusUpdate        Opcode = 3
	OpVoiceStateUpdate    Opcode = 4
	OpResume              Opcode = 6
	OpReconnect           Opcode = 7
	OpRequestGuildMembers Opcode = 8
	OpInvalidSession      Opcode = 9
	OpHello               Opcode = 10
	OpHeartbeatAck        Opcode = 11
	OpGuildSync           Opcode = 12
)

const (
	GatewayVersion = 5
	LargeThreshold = 250

	// GatewayQuery is appended to the URL returned by the gateway lookup.
	GatewayQuery = "/?encoding=json&v=5"

	// MaxGuildsPerMemberRequest bounds the guild list of a single op 8 request.
	MaxGuildsPerMemberRequest = 50
)

// Frame is a single gateway message. S and T are only set on dispatches.
type Frame struct {
	Op Opcode          `json:"op"`
	D  json.RawMessage `json:"d"`
	S  int64           `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
}

// DecodeFrame parses a text gateway message.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("failed to decode gateway frame: %w", err)
	}
	return f, nil
}

// EncodeFrame marshals an outbound frame. Outbound frames never carry s or t.
func EncodeFrame(op Opcode, d any) ([]byte, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode op %d payload: %w", op, err)
	}
	return json.Marshal(Frame{Op: op, D: raw})
}

// Resumable reports the payload of an INVALID_SESSION frame.
func (f Frame) Resumable() bool {
	var resumable bool
	_ = json.Unmarshal(f.D, &resumable)
	return resumable
}

type Hello struct {
	HeartbeatInterval int `json:"heartbeat_interval"`
}

func (h Hello) Interval() time.Duration {
	return time.Duration(h.HeartbeatInterval) * time.Millisecond
}

// Ready holds the parts of the READY dispatch the session itself needs.
// The cache consumes the rest of the payload.
type Ready struct {
	Version   int    `json:"v"`
	SessionID string `json:"session_id"`
}

type IdentifyProperties struct {
	OS              string `json:"$os"`
	Browser         string `json:"$browser"`
	Device          string `json:"$device"`
	Referrer        string `json:"$referrer"`
	ReferringDomain string `json:"$referring_domain"`
}

func DefaultProperties() IdentifyProperties {
	return IdentifyProperties{
		OS:      runtime.GOOS,
		Browser: "discord.io",
		Device:  "discord.io",
	}
}

type Identify struct {
	Token          string             `json:"token"`
	Version        int                `json:"v"`
	Compress       bool               `json:"compress"`
	LargeThreshold int                `json:"large_threshold"`
	Properties     IdentifyProperties `json:"properties"`
	Presence       *StatusUpdate      `json:"presence,omitempty"`
	Shard          []int              `json:"shard,omitempty"`
}

// NewIdentify builds an identify payload. The shard pair is only declared
// when it is valid.
func NewIdentify(token string, compress bool, shard []int, presence *StatusUpdate) Identify {
	id := Identify{
		Token:          token,
		Version:        GatewayVersion,
		Compress:       compress,
		LargeThreshold: LargeThreshold,
		Properties:     DefaultProperties(),
		Presence:       presence,
	}
	if ValidShard(shard) {
		id.Shard = []int{shard[0], shard[1]}
	}
	return id
}

// ValidShard reports whether shard is an [index, count] pair with
// index < count and count > 1.
func ValidShard(shard []int) bool {
	return len(shard) == 2 && shard[0] >= 0 && shard[0] < shard[1] && shard[1] > 1
}

type Resume struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
}

// HeartbeatPayload is the op 1 data: the last sequence number seen, or null
// before the first dispatch.
func HeartbeatPayload(seq int64) any {
	if seq == 0 {
		return nil
	}
	return seq
}

type Game struct {
	Name string `json:"name"`
	Type int    `json:"type"`
	URL  string `json:"url,omitempty"`
}

type StatusUpdate struct {
	Status string `json:"status"`
	AFK    bool   `json:"afk"`
	Since  *int64 `json:"since"`
	Game   *Game  `json:"game"`
}

type VoiceStateUpdate struct {
	GuildID   snowflake.ID  `json:"guild_id"`
	ChannelID *snowflake.ID `json:"channel_id"`
	SelfMute  bool          `json:"self_mute"`
	SelfDeaf  bool          `json:"self_deaf"`
}

type RequestGuildMembers struct {
	GuildID []snowflake.ID `json:"guild_id"`
	Query   string         `json:"query"`
	Limit   int            `json:"limit"`
}

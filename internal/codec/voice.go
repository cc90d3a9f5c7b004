package codec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// VoiceOpcode is a voice control operation code.
type VoiceOpcode int

const (
	VoiceOpIdentify           VoiceOpcode = 0
	VoiceOpSelectProtocol     VoiceOpcode = 1
	VoiceOpReady              VoiceOpcode = 2
	VoiceOpHeartbeat          VoiceOpcode = 3
	VoiceOpSessionDescription VoiceOpcode = 4
	VoiceOpSpeaking           VoiceOpcode = 5
	VoiceOpHeartbeatAck       VoiceOpcode = 6
	VoiceOpResume             VoiceOpcode = 7
	VoiceOpHello              VoiceOpcode = 8
	VoiceOpResumed            VoiceOpcode = 9
	VoiceOpClientDisconnect   VoiceOpcode = 13
)

// EncryptionMode is the only mode the client declares in SELECT_PROTOCOL.
const EncryptionMode = "xsalsa20_poly1305"

type VoiceFrame struct {
	Op VoiceOpcode     `json:"op"`
	D  json.RawMessage `json:"d"`
}

func DecodeVoiceFrame(data []byte) (VoiceFrame, error) {
	var f VoiceFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return VoiceFrame{}, fmt.Errorf("failed to decode voice frame: %w", err)
	}
	return f, nil
}

func EncodeVoiceFrame(op VoiceOpcode, d any) ([]byte, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode voice op %d payload: %w", op, err)
	}
	return json.Marshal(VoiceFrame{Op: op, D: raw})
}

type VoiceIdentify struct {
	ServerID  snowflake.ID `json:"server_id"`
	UserID    snowflake.ID `json:"user_id"`
	SessionID string       `json:"session_id"`
	Token     string       `json:"token"`
}

type VoiceReady struct {
	SSRC              uint32   `json:"ssrc"`
	IP                string   `json:"ip"`
	Port              int      `json:"port"`
	Modes             []string `json:"modes"`
	HeartbeatInterval float64  `json:"heartbeat_interval"`
}

type VoiceHello struct {
	HeartbeatInterval float64 `json:"heartbeat_interval"`
}

// VoiceInterval converts a heartbeat interval in milliseconds.
func VoiceInterval(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

type SelectProtocolData struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
	Mode    string `json:"mode"`
}

type SelectProtocol struct {
	Protocol string             `json:"protocol"`
	Data     SelectProtocolData `json:"data"`
}

func NewSelectProtocol(address string, port int) SelectProtocol {
	return SelectProtocol{
		Protocol: "udp",
		Data: SelectProtocolData{
			Address: address,
			Port:    port,
			Mode:    EncryptionMode,
		},
	}
}

type SessionDescription struct {
	Mode      string   `json:"mode"`
	SecretKey [32]byte `json:"secret_key"`
}

// Flag is a boolean that also accepts the numeric form some servers send.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "true":
		*f = true
	case "false", "null":
		*f = false
	default:
		n, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("invalid flag %s", data)
		}
		*f = n != 0
	}
	return nil
}

type Speaking struct {
	UserID   snowflake.ID `json:"user_id,omitempty"`
	SSRC     uint32       `json:"ssrc,omitempty"`
	Speaking Flag         `json:"speaking"`
	Delay    int          `json:"delay"`
}

type ClientDisconnect struct {
	UserID snowflake.ID `json:"user_id"`
}

package codec

var gatewayCloseReasons = map[int]string{
	0:    "Gateway Error",
	4000: "Unknown Error",
	4001: "Unknown Opcode",
	4002: "Decode Error",
	4003: "Not Authenticated",
	4004: "Authentication Failed",
	4005: "Already Authenticated",
	4006: "Session Not Valid",
	4007: "Invalid Sequence Number",
	4008: "Rate Limited",
	4009: "Session Timeout",
	4010: "Invalid Shard",
	4011: "Sharding Required",
	4012: "Invalid Gateway Version",
}

var voiceCloseReasons = map[int]string{
	4001: "Unknown Opcode",
	4003: "Not Authenticated",
	4004: "Authentication Failed",
	4005: "Already Authenticated",
	4006: "Session Not Valid",
	4009: "Session Timeout",
	4011: "Server Not Found",
	4012: "Unknown Protocol",
	4014: "Disconnected",
	4015: "Voice Server Crashed",
	4016: "Unknown Encryption Mode",
}

const (
	CloseNormal    = 1000
	CloseGoingAway = 1001
	CloseAbnormal  = 1006
)

// GatewayCloseReason returns the human readable reason for a gateway close
// code, or fallback when the code is not in the table.
func GatewayCloseReason(code int, fallback string) string {
	if reason, ok := gatewayCloseReasons[code]; ok {
		return reason
	}
	return fallback
}

// VoiceCloseReason is the voice socket counterpart of GatewayCloseReason.
func VoiceCloseReason(code int, fallback string) string {
	if reason, ok := voiceCloseReasons[code]; ok {
		return reason
	}
	return fallback
}

// IsTransientClose reports whether the gateway should reconnect and resume
// after a close with this code.
func IsTransientClose(code int) bool {
	return code == CloseGoingAway || code == CloseAbnormal
}

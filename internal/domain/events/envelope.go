package events

import "time"

// Message types pushed over the websocket transport.
const (
	TypeForceLogout  = "FORCE_LOGOUT"
	TypeConnected    = "CONNECTED"
	TypeSystemInfo   = "SYSTEM_INFO"
	TypePing         = "PING"
	TypePong         = "PONG"
	TypeStatusChange = "STATUS_CHANGE"
	TypeOnlineCount  = "ONLINE_COUNT"
	TypeError        = "ERROR"
)

// envelopeTimeLayout is the wire format consumed by the admin frontend.
const envelopeTimeLayout = "2006-01-02 15:04:05"

// Envelope is the framing for every websocket push.
type Envelope struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// NewEnvelope stamps a message with the current time.
func NewEnvelope(msgType, message string, data any) Envelope {
	return Envelope{
		Type:      msgType,
		Message:   message,
		Timestamp: time.Now().Format(envelopeTimeLayout),
		Data:      data,
	}
}

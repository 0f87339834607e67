package events

import "time"

// Topics carried on the in-process bus.
const (
	TopicLoginAccepted = "auth:login"
	TopicForceLogout   = "auth:force_logout"
	TopicWSConnected   = "ws:connected"
	TopicWSClosed      = "ws:closed"
)

// LoginEventData describes an accepted login.
type LoginEventData struct {
	Username string    `json:"username"`
	Role     string    `json:"role"`
	LoginAt  time.Time `json:"login_at"`
	RemoteIP string    `json:"remote_ip,omitempty"`
}

// ForceLogoutEventData names the account whose previous session was displaced.
type ForceLogoutEventData struct {
	Username string `json:"username"`
	Reason   string `json:"reason"`
}

// ConnectionEventData describes a websocket attach or detach.
type ConnectionEventData struct {
	ConnectionID string `json:"connection_id"`
	Username     string `json:"username"`
	Role         string `json:"role,omitempty"`
}

package ws

import "time"

// Event names broadcast to realtime listeners.
const (
	EventPairingCode        = "PAIRING_CODE"
	EventSessionOpen        = "SESSION_OPEN"
	EventSessionClosed      = "SESSION_CLOSED"
	EventReconnectScheduled = "RECONNECT_SCHEDULED"
	EventReconnectExhausted = "RECONNECT_EXHAUSTED"
	EventSessionCleanup     = "SESSION_CLEANUP"
	EventOnboardingDone     = "ONBOARDING_DONE"
	EventSessionError       = "SESSION_ERROR"
)

// WsEvent is the envelope pushed to every connected listener.
type WsEvent struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// SessionEventData is the payload for session lifecycle events.
type SessionEventData struct {
	Phone     string `json:"phone"`
	State     string `json:"state"`
	Reason    string `json:"reason,omitempty"`
	Attempt   int    `json:"attempt,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

package service

// Broadcaster interface for WebSocket broadcasting (avoids import cycle)
type Broadcaster interface {
	BroadcastToSession(sessionID string, msgType string, payload interface{})
}

// MsgSessionView is pushed to subscribers after every accepted intent
const MsgSessionView = "session_view"

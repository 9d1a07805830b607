package session

// Event types published by the manager.
const (
	EventSessionStarted  = "session.started"
	EventTurnCompleted   = "turn.completed"
	EventSessionReviewed = "session.reviewed"
)

// Event is a notification about session activity, consumed by the
// websocket feed.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Payload   any    `json:"payload,omitempty"`
}

// EventSink receives manager events. Publish must not block; slow
// consumers are the sink's problem.
type EventSink interface {
	Publish(evt Event)
}

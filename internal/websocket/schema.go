package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError    Event = "error"
	EventPong     Event = "pong"
	EventSnapshot Event = "snapshot"
	EventUpdate   Event = "update"
)

// SnapshotResponse is the first frame on a monitor stream: the session's
// current attendance state so the client does not start blind.
type SnapshotResponse struct {
	Event        Event  `json:"event"`
	SessionID    string `json:"session_id"`
	Status       string `json:"status"`
	PresentCount int    `json:"present_count"`
	AbsentCount  int    `json:"absent_count"`
}

// UpdateResponse forwards one live session event (check-in, override,
// refresh, terminate) to the monitor.
type UpdateResponse struct {
	Event   Event  `json:"event"`
	Payload string `json:"payload"` // Forwarded pub/sub JSON, decoded client-side
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

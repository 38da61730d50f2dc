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
	EventError              Event = "error"
	EventReady              Event = "ready"
	EventPong               Event = "pong"
	EventPermissionsChanged Event = "permissions_changed"
)

// ReadyResponse is sent once after the upgrade.
type ReadyResponse struct {
	Event  Event `json:"event"`
	UserID int   `json:"user_id"`
}

// PermissionsChangedResponse tells a client to refetch its permissions and
// menu. It carries no permission data itself.
type PermissionsChangedResponse struct {
	Event      Event  `json:"event"`
	Reason     string `json:"reason"`
	RoleID     int    `json:"role_id,omitempty"`
	Generation int64  `json:"generation"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

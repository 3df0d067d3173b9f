package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a server-originated message with the current timestamp.
func NewMessage(msgType string, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		Type:      msgType,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Server → Client message types.
const (
	TypeSnapshot = "snapshot"
	TypeError    = "error"
)

// Client → Server message types.
const (
	TypeProcessAction  = "process.action"
	TypeProcessesReset = "processes.reset"
)

// Actions accepted in a process.action payload.
const (
	ActionStart     = "start"
	ActionTerminate = "terminate"
	ActionKill      = "kill"
	ActionInterrupt = "interrupt"
)

// Error codes.
const (
	ErrInvalidMessage = "INVALID_MESSAGE"
	ErrBusy           = "BUSY"
	ErrNoSuchProcess  = "NO_SUCH_PROCESS"
)

// Server → Client payloads.

type SnapshotPayload struct {
	Tick      uint64           `json:"tick"`
	Autostart bool             `json:"autostart"`
	Cursor    int              `json:"cursor"`
	LastKey   string           `json:"lastKey"`
	Running   int              `json:"running"`
	Processes []ProcessPayload `json:"processes"`
}

type ProcessPayload struct {
	Index    int    `json:"index"`
	Group    string `json:"group"`
	Name     string `json:"name"`
	Status   string `json:"status"` // "idle" | "running" | "exited" | "errored"
	Symbol   string `json:"symbol"`
	Code     *int   `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
	LastLine string `json:"lastLine"`
	RunID    string `json:"runId,omitempty"`
	Backlog  int    `json:"backlog"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Client → Server payloads.

type ProcessActionPayload struct {
	Index  *int   `json:"index"`
	Action string `json:"action"`
}

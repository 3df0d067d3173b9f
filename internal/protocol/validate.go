package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// validClientTypes is the set of allowed client→server message types.
var validClientTypes = map[string]bool{
	TypeProcessAction:  true,
	TypeProcessesReset: true,
}

var validActions = map[string]bool{
	ActionStart:     true,
	ActionTerminate: true,
	ActionKill:      true,
	ActionInterrupt: true,
}

// ValidAction reports whether name may appear in a process.action payload.
func ValidAction(name string) bool {
	return validActions[name]
}

// ValidateClientMessage validates a raw JSON message from a client.
// Returns the parsed Message and any validation error.
func ValidateClientMessage(raw []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if msg.Type == "" {
		return nil, errors.New("missing 'type' field")
	}

	if !validClientTypes[msg.Type] {
		return nil, fmt.Errorf("unknown message type: %s", msg.Type)
	}

	if msg.Type == TypeProcessesReset {
		return &msg, nil
	}

	if msg.Payload == nil {
		return nil, errors.New("missing 'payload' field")
	}

	var p ProcessActionPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return nil, fmt.Errorf("invalid payload for %s: %w", msg.Type, err)
	}
	if p.Index == nil {
		return nil, fmt.Errorf("missing required field 'index' in %s payload", msg.Type)
	}
	if *p.Index < 0 {
		return nil, fmt.Errorf("negative 'index' %d in %s payload", *p.Index, msg.Type)
	}
	if !ValidAction(p.Action) {
		return nil, fmt.Errorf("unknown action %q in %s payload", p.Action, msg.Type)
	}

	return &msg, nil
}

// NewErrorMessage creates an error message ready to send to the client.
func NewErrorMessage(code, message string) (*Message, error) {
	return NewMessage(TypeError, ErrorPayload{
		Code:    code,
		Message: message,
	})
}

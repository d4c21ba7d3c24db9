// Package streaming defines the envelopes exchanged on a mission stream.
package streaming

import (
	"encoding/json"
	"fmt"

	"github.com/skyfleet/missionctl/pkg/core"
)

// Message type constants of the stream protocol.
const (
	TypeSnapshot = "snapshot"
	TypeCommand  = "command"
	TypeResult   = "result"
	TypeError    = "error"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// CommandPayload is an operator action sent by a stream client.
type CommandPayload struct {
	Action string `json:"action"` // "execute", "pattern", ...
	Value  string `json:"value,omitempty"`
}

// ResultPayload acknowledges a command.
type ResultPayload struct {
	Action   string        `json:"action"`
	Snapshot core.Snapshot `json:"snapshot"`
}

// ErrorPayload reports a rejected command.
type ErrorPayload struct {
	Action  string `json:"action,omitempty"`
	Message string `json:"message"`
}

// Encode marshals payload into an envelope of the given type.
func Encode(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

// Decode parses an envelope.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("invalid envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("invalid envelope: missing type")
	}
	return env, nil
}

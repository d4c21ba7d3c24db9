// pkg/core/state.go
package core

import "fmt"

// Status is the lifecycle state of a mission.
type Status int

const (
	StatusReady Status = iota
	StatusPreparing
	StatusRunning
	StatusCompleted
	// StatusFailed exists in the model but no simulated transition reaches it.
	StatusFailed
)

var statusNames = map[Status]string{
	StatusReady:     "ready",
	StatusPreparing: "preparing",
	StatusRunning:   "running",
	StatusCompleted: "completed",
	StatusFailed:    "failed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalText encodes the status by name so JSON payloads stay readable.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	for k, v := range statusNames {
		if v == string(text) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// ExecutionState is the single mutable object of a mission. Progress is a percentage in [0,100].
type ExecutionState struct {
	Status    Status  `json:"status" msgpack:"status"`
	Progress  float64 `json:"progress" msgpack:"progress"`
	Paused    bool    `json:"paused" msgpack:"paused"`
	Returning bool    `json:"returning" msgpack:"returning"`
}

// InitialState is the state of a freshly created or reset mission.
func InitialState() ExecutionState {
	return ExecutionState{Status: StatusReady}
}

// pkg/core/snapshot.go
package core

import "time"

// PhaseKind is the machine-readable flight phase.
type PhaseKind string

const (
	PhasePreparing      PhaseKind = "preparing"
	PhaseAwaitingLaunch PhaseKind = "awaiting_launch"
	PhaseTakeoff        PhaseKind = "takeoff"
	PhaseExecuting      PhaseKind = "executing"
	PhaseReturning      PhaseKind = "return_to_launch"
	PhaseDocked         PhaseKind = "docked"
	PhaseFailed         PhaseKind = "failed"
)

// Phase is the flight phase shown to the operator.
type Phase struct {
	Kind  PhaseKind `json:"kind" msgpack:"kind"`
	Label string    `json:"label" msgpack:"label"`
}

// Snapshot is the read-only view of a mission published on every change.
// Position, heading and phase are derived from the state at publish time.
type Snapshot struct {
	MissionID  string         `json:"missionId" msgpack:"missionId"`
	RunID      uint64         `json:"runId" msgpack:"runId"`
	State      ExecutionState `json:"state" msgpack:"state"`
	Validated  bool           `json:"validated" msgpack:"validated"`
	Validating bool           `json:"validating" msgpack:"validating"`
	Launching  bool           `json:"launching" msgpack:"launching"`
	Pattern    MissionPattern `json:"pattern" msgpack:"pattern"`
	ProfileID  string         `json:"profileId" msgpack:"profileId"`
	Position   Position       `json:"position" msgpack:"position"`
	Phase      Phase          `json:"phase" msgpack:"phase"`
	Verdict    *Verdict       `json:"verdict,omitempty" msgpack:"verdict,omitempty"`
	Time       time.Time      `json:"time" msgpack:"time"`
}

// Package phase maps execution state onto the operator-facing flight phase.
package phase

import (
	"fmt"

	"github.com/skyfleet/missionctl/pkg/core"
)

// Progress thresholds, in percent, separating the in-flight phases.
const (
	TakeoffEnd  = 5.0
	ReturnStart = 85.0
	DockedAt    = 98.0
)

// Resolve derives the phase for a status, progress and pattern.
// It holds no state and never fails.
func Resolve(status core.Status, progress float64, pattern core.MissionPattern) core.Phase {
	switch status {
	case core.StatusPreparing:
		return core.Phase{Kind: core.PhasePreparing, Label: "preparing"}
	case core.StatusReady:
		return core.Phase{Kind: core.PhaseAwaitingLaunch, Label: "awaiting launch"}
	case core.StatusFailed:
		return core.Phase{Kind: core.PhaseFailed, Label: "failed"}
	}

	switch {
	case progress < TakeoffEnd:
		return core.Phase{Kind: core.PhaseTakeoff, Label: "takeoff/launch"}
	case progress < ReturnStart:
		return core.Phase{Kind: core.PhaseExecuting, Label: fmt.Sprintf("executing mission (%s)", pattern)}
	case progress < DockedAt:
		return core.Phase{Kind: core.PhaseReturning, Label: "automatic return-to-launch"}
	default:
		return core.Phase{Kind: core.PhaseDocked, Label: "docked"}
	}
}

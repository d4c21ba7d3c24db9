// pkg/core/verdict.go
package core

import "time"

// Names of the checks performed by plan validation.
const (
	CheckNoFlyZone     = "no_fly_zone"
	CheckTerrainSafety = "terrain_safety"
	CheckDeviceHealth  = "device_health"
)

// CheckResult is the outcome of one named validation check.
type CheckResult struct {
	Name   string `json:"name" msgpack:"name"`
	Passed bool   `json:"passed" msgpack:"passed"`
	Detail string `json:"detail,omitempty" msgpack:"detail,omitempty"`
}

// Verdict is produced by a completed validation run for one pattern/profile pair.
type Verdict struct {
	Pattern           MissionPattern `json:"pattern" msgpack:"pattern"`
	ProfileID         string         `json:"profileId" msgpack:"profileId"`
	Checks            []CheckResult  `json:"checks" msgpack:"checks"`
	RouteLength       float64        `json:"routeLength" msgpack:"routeLength"`
	EstimatedDuration time.Duration  `json:"estimatedDuration" msgpack:"estimatedDuration"`
	CheckedAt         time.Time      `json:"checkedAt" msgpack:"checkedAt"`
}

// Passed reports whether every check passed. A verdict without checks never passes.
func (v Verdict) Passed() bool {
	if len(v.Checks) == 0 {
		return false
	}
	for _, c := range v.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

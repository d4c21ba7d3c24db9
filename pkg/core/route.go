// pkg/core/route.go
package core

// RoutePoint is a planar coordinate in canvas space.
type RoutePoint struct {
	X float64 `json:"x" yaml:"x" msgpack:"x"`
	Y float64 `json:"y" yaml:"y" msgpack:"y"`
}

// Route is an ordered, immutable sequence of waypoints. A usable route has at least one point.
type Route []RoutePoint

// Position is a derived vehicle pose. Heading is in degrees, 0 pointing up in screen space.
type Position struct {
	X       float64 `json:"x" msgpack:"x"`
	Y       float64 `json:"y" msgpack:"y"`
	Heading float64 `json:"heading" msgpack:"heading"`
}

// MissionPattern selects which route of the catalog is flown.
type MissionPattern string

const (
	PatternGrid     MissionPattern = "grid"
	PatternFacade   MissionPattern = "facade"
	PatternCorridor MissionPattern = "corridor"
	PatternOrbit    MissionPattern = "orbit"
)

// Valid reports whether p is one of the known patterns.
func (p MissionPattern) Valid() bool {
	switch p {
	case PatternGrid, PatternFacade, PatternCorridor, PatternOrbit:
		return true
	}
	return false
}

// CaptureProfile is a named parameter bundle chosen before execution.
type CaptureProfile struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	OverlapSpec string  `json:"overlapSpec" yaml:"overlapSpec"`
	Altitude    float64 `json:"altitude" yaml:"altitude"`
	Speed       float64 `json:"speed" yaml:"speed"`
}

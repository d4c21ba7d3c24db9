package geo

import (
	"math"

	"github.com/skyfleet/missionctl/pkg/core"
)

// headingOffset rotates atan2 angles so that 0 points up in screen space.
const headingOffset = 90.0

// PositionAt returns the vehicle pose at progress percent along route.
// Progress outside [0,100] is clamped. The returned point always lies on the
// polyline: on a vertex or between two consecutive vertices.
func PositionAt(route core.Route, progress float64) (core.Position, error) {
	n := len(route)
	if n == 0 {
		return core.Position{}, ErrEmptyRoute
	}

	if progress <= 0 || math.IsNaN(progress) {
		return core.Position{X: route[0].X, Y: route[0].Y}, nil
	}
	if progress >= 100 {
		return core.Position{X: route[n-1].X, Y: route[n-1].Y}, nil
	}

	idx := progress / 100 * float64(n-1)
	lower := int(math.Floor(idx))
	upper := min(int(math.Ceil(idx)), n-1)
	frac := idx - float64(lower)

	a, b := route[lower], route[upper]
	pos := core.Position{
		X: a.X + (b.X-a.X)*frac,
		Y: a.Y + (b.Y-a.Y)*frac,
	}

	// On a vertex the heading follows the outgoing segment.
	if lower == upper && upper < n-1 {
		b = route[upper+1]
	}
	// A zero-length segment gives atan2(0, 0) = 0, so the heading is the bare offset.
	pos.Heading = math.Atan2(b.Y-a.Y, b.X-a.X)*180/math.Pi + headingOffset
	return pos, nil
}

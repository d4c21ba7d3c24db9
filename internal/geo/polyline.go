package geo

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/skyfleet/missionctl/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ErrEmptyRoute is returned when a route has no waypoints.
var ErrEmptyRoute = errors.New("route has no waypoints")

// ParseRoute parses a JSON array of coordinates into a core.Route.
// Input format: "[[x1,y1],[x2,y2],...]"
func ParseRoute(input string) (core.Route, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return nil, fmt.Errorf("failed to parse route JSON: %w", err)
	}
	return RouteFromCoords(coords)
}

// RouteFromCoords converts [x,y] pairs into a route. Extra values per pair are ignored.
func RouteFromCoords(coords [][]float64) (core.Route, error) {
	if len(coords) == 0 {
		return nil, ErrEmptyRoute
	}

	route := make(core.Route, len(coords))
	for i, coord := range coords {
		if len(coord) < 2 {
			return nil, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		route[i] = core.RoutePoint{X: coord[0], Y: coord[1]}
	}
	return route, nil
}

// Coords flattens a route back into [x,y] pairs.
func Coords(route core.Route) [][]float64 {
	coords := make([][]float64, len(route))
	for i, p := range route {
		coords[i] = []float64{p.X, p.Y}
	}
	return coords
}

// LineString builds a geom.LineString from a route of at least 2 points.
func LineString(route core.Route) (geom.LineString, error) {
	if len(route) < 2 {
		return geom.LineString{}, fmt.Errorf("line string needs at least 2 points, got %d", len(route))
	}

	flatCoords := make([]float64, 0, len(route)*2)
	for _, p := range route {
		flatCoords = append(flatCoords, p.X, p.Y)
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	return geom.NewLineString(seq), nil
}

// Length returns the total length of the route polyline in canvas units.
func Length(route core.Route) float64 {
	ls, err := LineString(route)
	if err != nil {
		return 0
	}
	return ls.Length()
}

package geo

import (
	"math"

	"github.com/skyfleet/missionctl/pkg/core"
	"github.com/wroge/wgs84"
)

// GeoPosition is a WGS84 position with a compass bearing in [0,360).
type GeoPosition struct {
	Longitude float64 `json:"lon" msgpack:"lon"`
	Latitude  float64 `json:"lat" msgpack:"lat"`
	Altitude  float64 `json:"alt" msgpack:"alt"`
	Bearing   float64 `json:"bearing" msgpack:"bearing"`
}

// Georeferencer places canvas coordinates around a launch site.
// Canvas X grows east and canvas Y grows south, as on screen.
type Georeferencer struct {
	originX, originY float64 // launch site in EPSG:3857
	mercatorScale    float64 // mercator metres per ground metre at the site
	metersPerUnit    float64
	toMercator       func(a, b, c float64) (float64, float64, float64)
	toWGS84          func(a, b, c float64) (float64, float64, float64)
}

// NewGeoreferencer anchors canvas origin (0,0) at the given site.
func NewGeoreferencer(longitude, latitude, metersPerUnit float64) *Georeferencer {
	epsg := wgs84.EPSG()
	g := &Georeferencer{
		metersPerUnit: metersPerUnit,
		mercatorScale: 1 / math.Cos(latitude*math.Pi/180),
		toMercator:    epsg.Transform(4326, 3857),
		toWGS84:       epsg.Transform(3857, 4326),
	}
	g.originX, g.originY, _ = g.toMercator(longitude, latitude, 0)
	return g
}

// Locate converts a canvas pose into a WGS84 position at the given altitude.
func (g *Georeferencer) Locate(p core.Position, altitude float64) GeoPosition {
	east := p.X * g.metersPerUnit * g.mercatorScale
	north := -p.Y * g.metersPerUnit * g.mercatorScale
	lon, lat, _ := g.toWGS84(g.originX+east, g.originY+north, 0)
	return GeoPosition{
		Longitude: lon,
		Latitude:  lat,
		Altitude:  altitude,
		Bearing:   NormalizeBearing(p.Heading),
	}
}

// NormalizeBearing wraps a heading in degrees into [0,360).
func NormalizeBearing(deg float64) float64 {
	b := math.Mod(deg, 360)
	if b < 0 {
		b += 360
	}
	return b
}

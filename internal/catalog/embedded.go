package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/skyfleet/missionctl/internal/geo"
	"github.com/skyfleet/missionctl/pkg/core"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type document struct {
	Patterns map[core.MissionPattern][][]float64 `yaml:"patterns"`
	Profiles []core.CaptureProfile               `yaml:"profiles"`
}

// Embedded returns the built-in catalog.
func Embedded() (*Catalog, error) {
	return Parse(defaultsYAML)
}

// LoadFile reads a catalog from a YAML file with the same layout as the built-in one.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}

	routes := make(map[core.MissionPattern]core.Route, len(doc.Patterns))
	for p, coords := range doc.Patterns {
		r, err := geo.RouteFromCoords(coords)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		routes[p] = r
	}
	return New(routes, doc.Profiles)
}

// Package catalog holds the fixed routes and capture profiles a mission can select.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/skyfleet/missionctl/pkg/core"
)

var ErrEmptyCatalog = errors.New("catalog has no patterns or no profiles")

// Catalog is an immutable set of routes per pattern and capture profiles.
type Catalog struct {
	routes   map[core.MissionPattern]core.Route
	profiles []core.CaptureProfile
	byID     map[string]int
}

// New validates and builds a catalog. Profiles keep their given order.
func New(routes map[core.MissionPattern]core.Route, profiles []core.CaptureProfile) (*Catalog, error) {
	if len(routes) == 0 || len(profiles) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		routes: make(map[core.MissionPattern]core.Route, len(routes)),
		byID:   make(map[string]int, len(profiles)),
	}
	for p, r := range routes {
		if !p.Valid() {
			return nil, fmt.Errorf("unknown pattern %q", p)
		}
		if len(r) == 0 {
			return nil, fmt.Errorf("pattern %q has an empty route", p)
		}
		c.routes[p] = append(core.Route(nil), r...)
	}
	for i, p := range profiles {
		if p.ID == "" {
			return nil, fmt.Errorf("profile %d has no id", i)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate profile id %q", p.ID)
		}
		c.byID[p.ID] = i
		c.profiles = append(c.profiles, p)
	}
	return c, nil
}

// Route returns the route flown for a pattern.
func (c *Catalog) Route(p core.MissionPattern) (core.Route, bool) {
	r, ok := c.routes[p]
	return r, ok
}

// Profile returns a capture profile by id.
func (c *Catalog) Profile(id string) (core.CaptureProfile, bool) {
	i, ok := c.byID[id]
	if !ok {
		return core.CaptureProfile{}, false
	}
	return c.profiles[i], true
}

// Patterns lists the available patterns in name order.
func (c *Catalog) Patterns() []core.MissionPattern {
	out := make([]core.MissionPattern, 0, len(c.routes))
	for p := range c.routes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Profiles lists the capture profiles in catalog order.
func (c *Catalog) Profiles() []core.CaptureProfile {
	return append([]core.CaptureProfile(nil), c.profiles...)
}

// DefaultPattern is the pattern new missions start with.
func (c *Catalog) DefaultPattern() core.MissionPattern {
	if _, ok := c.routes[core.PatternGrid]; ok {
		return core.PatternGrid
	}
	return c.Patterns()[0]
}

// DefaultProfileID is the first profile of the catalog.
func (c *Catalog) DefaultProfileID() string {
	return c.profiles[0].ID
}

package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/skyfleet/missionctl/internal/database"
	"github.com/skyfleet/missionctl/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedded(t *testing.T) {
	c, err := Embedded()
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]core.MissionPattern{core.PatternGrid, core.PatternFacade, core.PatternCorridor, core.PatternOrbit},
		c.Patterns())
	for _, p := range c.Patterns() {
		r, ok := c.Route(p)
		require.True(t, ok)
		assert.GreaterOrEqual(t, len(r), 2, "pattern %s", p)
	}

	assert.Equal(t, core.PatternGrid, c.DefaultPattern())
	assert.Equal(t, "mapping", c.DefaultProfileID())
	require.Len(t, c.Profiles(), 3)

	p, ok := c.Profile("inspection")
	require.True(t, ok)
	assert.Equal(t, 25.0, p.Altitude)
	assert.Equal(t, 3.0, p.Speed)

	_, ok = c.Profile("missing")
	assert.False(t, ok)
}

func TestNew_Errors(t *testing.T) {
	route := core.Route{{X: 0, Y: 0}}
	profile := core.CaptureProfile{ID: "a"}

	tests := []struct {
		name     string
		routes   map[core.MissionPattern]core.Route
		profiles []core.CaptureProfile
	}{
		{name: "no routes", routes: nil, profiles: []core.CaptureProfile{profile}},
		{name: "no profiles", routes: map[core.MissionPattern]core.Route{core.PatternGrid: route}},
		{name: "unknown pattern", routes: map[core.MissionPattern]core.Route{"spiral": route}, profiles: []core.CaptureProfile{profile}},
		{name: "empty route", routes: map[core.MissionPattern]core.Route{core.PatternGrid: {}}, profiles: []core.CaptureProfile{profile}},
		{name: "duplicate profile", routes: map[core.MissionPattern]core.Route{core.PatternGrid: route}, profiles: []core.CaptureProfile{profile, profile}},
		{name: "profile without id", routes: map[core.MissionPattern]core.Route{core.PatternGrid: route}, profiles: []core.CaptureProfile{{Name: "x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.routes, tt.profiles)
			assert.Error(t, err)
		})
	}
}

func TestCatalog_RoutesAreCopied(t *testing.T) {
	route := core.Route{{X: 1, Y: 1}, {X: 2, Y: 2}}
	c, err := New(map[core.MissionPattern]core.Route{core.PatternOrbit: route}, []core.CaptureProfile{{ID: "a"}})
	require.NoError(t, err)

	route[0].X = 99
	got, _ := c.Route(core.PatternOrbit)
	assert.Equal(t, 1.0, got[0].X)
	assert.Equal(t, core.PatternOrbit, c.DefaultPattern())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := `
patterns:
  corridor:
    - [0, 0]
    - [10, 5]
profiles:
  - id: quick
    name: Quick look
    altitude: 40
    speed: 12
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)

	r, ok := c.Route(core.PatternCorridor)
	require.True(t, ok)
	assert.Equal(t, core.Route{{X: 0, Y: 0}, {X: 10, Y: 5}}, r)
	assert.Equal(t, "quick", c.DefaultProfileID())
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("patterns: ["))
	assert.Error(t, err)

	_, err = Parse([]byte("patterns:\n  grid:\n    - [1]\nprofiles:\n  - id: a\n"))
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestOpen_Database(t *testing.T) {
	cfg := database.Config{Driver: database.DriverSQLite, Path: filepath.Join(t.TempDir(), "catalog.db")}

	c, m, err := Open(SourceDatabase, "", cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, m)

	defaults, err := Embedded()
	require.NoError(t, err)
	assert.Equal(t, defaults.Patterns(), c.Patterns())
	assert.Equal(t, defaults.Profiles(), c.Profiles())
	for _, p := range defaults.Patterns() {
		want, _ := defaults.Route(p)
		got, _ := c.Route(p)
		assert.Equal(t, want, got, "pattern %s", p)
	}

	// Rows edited in the database win over the built-in defaults.
	require.NoError(t, m.DB.Model(&ProfileRecord{}).Where("id = ?", "mapping").Update("altitude", 120).Error)
	require.NoError(t, m.Close())

	c, m, err = Open(SourceDatabase, "", cfg, zerolog.Nop())
	require.NoError(t, err)
	defer m.Close()

	p, ok := c.Profile("mapping")
	require.True(t, ok)
	assert.Equal(t, 120.0, p.Altitude)
}

func TestOpen_Sources(t *testing.T) {
	c, m, err := Open(SourceEmbedded, "", database.Config{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.NotNil(t, c)

	_, _, err = Open("carrier-pigeon", "", database.Config{}, zerolog.Nop())
	assert.Error(t, err)

	_, _, err = Open(SourceFile, filepath.Join(t.TempDir(), "none.yaml"), database.Config{}, zerolog.Nop())
	assert.Error(t, err)
}

package catalog

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/skyfleet/missionctl/internal/database"
)

// Catalog sources.
const (
	SourceEmbedded = "embedded"
	SourceFile     = "file"
	SourceDatabase = "database"
)

// Open loads the catalog from the configured source. A database source is
// migrated and seeded with the built-in catalog when empty; the returned
// manager must be closed by the caller and is nil for other sources.
func Open(source, path string, dbCfg database.Config, log zerolog.Logger) (*Catalog, *database.Manager, error) {
	switch source {
	case "", SourceEmbedded:
		c, err := Embedded()
		return c, nil, err
	case SourceFile:
		c, err := LoadFile(path)
		return c, nil, err
	case SourceDatabase:
		c, m, err := openDatabase(dbCfg, log)
		return c, m, err
	default:
		return nil, nil, fmt.Errorf("unknown catalog source %q", source)
	}
}

func openDatabase(cfg database.Config, log zerolog.Logger) (*Catalog, *database.Manager, error) {
	m := database.NewManager(cfg, log)
	if err := m.Connect(); err != nil {
		return nil, nil, err
	}
	if err := m.Migrate(Models()...); err != nil {
		m.Close()
		return nil, nil, err
	}

	store := NewStore(m.DB)
	empty, err := store.Empty()
	if err != nil {
		m.Close()
		return nil, nil, err
	}
	if empty {
		defaults, err := Embedded()
		if err != nil {
			m.Close()
			return nil, nil, err
		}
		if err := store.Seed(defaults); err != nil {
			m.Close()
			return nil, nil, err
		}
		log.Info().Msg("Seeded catalog database with built-in routes and profiles")
	}

	c, err := store.Load()
	if err != nil {
		m.Close()
		return nil, nil, err
	}
	return c, m, nil
}

package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/skyfleet/missionctl/internal/geo"
	"github.com/skyfleet/missionctl/pkg/core"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProfileRecord is the database row of a capture profile.
type ProfileRecord struct {
	ID          string `gorm:"primaryKey;size:64"`
	Position    int    `gorm:"not null;default:0"`
	Name        string `gorm:"size:128"`
	Description string
	OverlapSpec string  `gorm:"size:64"`
	Altitude    float64 `gorm:"not null"`
	Speed       float64 `gorm:"not null"`
}

func (ProfileRecord) TableName() string {
	return "catalog_profiles"
}

// RouteRecord is the database row of a pattern route. Points holds [[x,y],...].
type RouteRecord struct {
	Pattern string         `gorm:"primaryKey;size:32"`
	Points  datatypes.JSON `gorm:"not null"`
}

func (RouteRecord) TableName() string {
	return "catalog_routes"
}

// Store persists a catalog through gorm.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an open database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Models lists the tables used by the store, for migration.
func Models() []any {
	return []any{&ProfileRecord{}, &RouteRecord{}}
}

// Empty reports whether the store has no profiles.
func (s *Store) Empty() (bool, error) {
	var n int64
	if err := s.db.Model(&ProfileRecord{}).Count(&n).Error; err != nil {
		return false, fmt.Errorf("counting profiles: %w", err)
	}
	return n == 0, nil
}

// Seed writes every route and profile of c, replacing rows with the same key.
func (s *Store) Seed(c *Catalog) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, p := range c.Patterns() {
			route, _ := c.Route(p)
			points, err := json.Marshal(geo.Coords(route))
			if err != nil {
				return fmt.Errorf("encoding route %q: %w", p, err)
			}
			if err := tx.Save(&RouteRecord{Pattern: string(p), Points: datatypes.JSON(points)}).Error; err != nil {
				return fmt.Errorf("saving route %q: %w", p, err)
			}
		}
		for i, p := range c.Profiles() {
			rec := ProfileRecord{
				ID:          p.ID,
				Position:    i,
				Name:        p.Name,
				Description: p.Description,
				OverlapSpec: p.OverlapSpec,
				Altitude:    p.Altitude,
				Speed:       p.Speed,
			}
			if err := tx.Save(&rec).Error; err != nil {
				return fmt.Errorf("saving profile %q: %w", p.ID, err)
			}
		}
		return nil
	})
}

// Load reads the catalog back from the database.
func (s *Store) Load() (*Catalog, error) {
	var routeRows []RouteRecord
	if err := s.db.Find(&routeRows).Error; err != nil {
		return nil, fmt.Errorf("loading routes: %w", err)
	}
	var profileRows []ProfileRecord
	if err := s.db.Order("position").Find(&profileRows).Error; err != nil {
		return nil, fmt.Errorf("loading profiles: %w", err)
	}

	routes := make(map[core.MissionPattern]core.Route, len(routeRows))
	for _, row := range routeRows {
		r, err := geo.ParseRoute(string(row.Points))
		if err != nil {
			return nil, fmt.Errorf("route %q: %w", row.Pattern, err)
		}
		routes[core.MissionPattern(row.Pattern)] = r
	}

	profiles := make([]core.CaptureProfile, len(profileRows))
	for i, row := range profileRows {
		profiles[i] = core.CaptureProfile{
			ID:          row.ID,
			Name:        row.Name,
			Description: row.Description,
			OverlapSpec: row.OverlapSpec,
			Altitude:    row.Altitude,
			Speed:       row.Speed,
		}
	}
	return New(routes, profiles)
}

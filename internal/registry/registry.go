// Package registry keeps the live mission views, keyed by id.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/skyfleet/missionctl/internal/clock"
	"github.com/skyfleet/missionctl/internal/controller"
	"github.com/skyfleet/missionctl/internal/validation"
	"github.com/skyfleet/missionctl/pkg/core"
)

// DefaultMaxViews bounds the number of concurrent mission views.
const DefaultMaxViews = 16

var ErrNotFound = errors.New("mission not found")

// Catalog is the catalog view the registry needs to create missions.
type Catalog interface {
	controller.Catalog
	DefaultPattern() core.MissionPattern
	DefaultProfileID() string
}

// Options configures a Registry.
type Options struct {
	Catalog      Catalog
	Clock        clock.Clock
	Engine       *validation.Engine
	TickInterval time.Duration
	PrepareDelay time.Duration
	LaunchDelay  time.Duration
	MaxViews     int
	Logger       *slog.Logger
}

// Hook runs for every newly created mission.
type Hook func(*controller.Controller)

// Registry owns mission controllers. When full, the least recently used
// mission is disposed to make room.
type Registry struct {
	opts  Options
	views *lru.Cache[string, *controller.Controller]

	mu    sync.RWMutex
	hooks []Hook
}

// New creates an empty registry.
func New(opts Options) (*Registry, error) {
	if opts.Catalog == nil || opts.Clock == nil {
		return nil, fmt.Errorf("registry: catalog and clock are required")
	}
	if opts.MaxViews <= 0 {
		opts.MaxViews = DefaultMaxViews
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	r := &Registry{opts: opts}
	views, err := lru.NewWithEvict(opts.MaxViews, func(id string, c *controller.Controller) {
		c.Dispose()
		r.opts.Logger.Debug("mission view released", "mission", id)
	})
	if err != nil {
		return nil, fmt.Errorf("creating view cache: %w", err)
	}
	r.views = views
	return r, nil
}

// OnCreate registers a hook run after every Create.
func (r *Registry) OnCreate(h Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, h)
}

// Create starts a new mission view. Empty pattern or profile pick the catalog defaults.
func (r *Registry) Create(pattern core.MissionPattern, profileID string) (*controller.Controller, error) {
	if pattern == "" {
		pattern = r.opts.Catalog.DefaultPattern()
	}
	if profileID == "" {
		profileID = r.opts.Catalog.DefaultProfileID()
	}

	id := uuid.NewString()
	c, err := controller.New(controller.Options{
		ID:           id,
		Clock:        r.opts.Clock,
		Catalog:      r.opts.Catalog,
		Pattern:      pattern,
		ProfileID:    profileID,
		Engine:       r.opts.Engine,
		TickInterval: r.opts.TickInterval,
		PrepareDelay: r.opts.PrepareDelay,
		LaunchDelay:  r.opts.LaunchDelay,
		Logger:       r.opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	if evicted := r.views.Add(id, c); evicted {
		r.opts.Logger.Info("mission view limit reached, oldest view disposed", "limit", r.opts.MaxViews)
	}
	r.opts.Logger.Info("mission view created", "mission", id, "pattern", pattern, "profile", profileID)

	r.mu.RLock()
	hooks := append([]Hook(nil), r.hooks...)
	r.mu.RUnlock()
	for _, h := range hooks {
		h(c)
	}
	return c, nil
}

// Get returns a mission by id and marks it recently used.
func (r *Registry) Get(id string) (*controller.Controller, error) {
	c, ok := r.views.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}

// List returns the live missions, least recently used first.
func (r *Registry) List() []*controller.Controller {
	return r.views.Values()
}

// Len returns the number of live missions.
func (r *Registry) Len() int {
	return r.views.Len()
}

// Remove disposes a mission.
func (r *Registry) Remove(id string) error {
	if !r.views.Remove(id) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close disposes every mission.
func (r *Registry) Close() {
	r.views.Purge()
}

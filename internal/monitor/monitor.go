// Package monitor periodically summarises the live missions.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/skyfleet/missionctl/pkg/core"
)

// DefaultInterval is how often the status is refreshed.
const DefaultInterval = 10 * time.Second

// Missions lists the current mission snapshots.
type Missions interface {
	Snapshots() []core.Snapshot
}

// MissionsFunc adapts a function to Missions.
type MissionsFunc func() []core.Snapshot

func (f MissionsFunc) Snapshots() []core.Snapshot { return f() }

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Missions Missions
	Logger   *slog.Logger
	Interval time.Duration
	// StatusFile is rewritten with the JSON status every interval when set.
	StatusFile string
	// Dropped reports telemetry lost to backpressure, if a publisher runs.
	Dropped func() uint64
	// Counters reads the OTel counter totals when a meter provider is installed.
	Counters func(ctx context.Context) (map[string]int64, error)
}

// Status is a point-in-time summary of the mission views.
type Status struct {
	Time             time.Time        `json:"time"`
	Views            int              `json:"views"`
	ByStatus         map[string]int   `json:"byStatus"`
	Paused           int              `json:"paused"`
	Returning        int              `json:"returning"`
	TelemetryDropped uint64           `json:"telemetryDropped"`
	Counters         map[string]int64 `json:"counters,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus summarises the current missions.
func (s *Service) GetStatus(ctx context.Context) Status {
	st := Status{Time: time.Now(), ByStatus: map[string]int{}}
	for _, snap := range s.deps.Missions.Snapshots() {
		st.Views++
		st.ByStatus[snap.State.Status.String()]++
		if snap.State.Paused {
			st.Paused++
		}
		if snap.State.Returning {
			st.Returning++
		}
	}
	if s.deps.Dropped != nil {
		st.TelemetryDropped = s.deps.Dropped()
	}
	if s.deps.Counters != nil {
		counters, err := s.deps.Counters(ctx)
		if err != nil {
			s.deps.Logger.Warn("Error reading counters", "error", err)
		}
		st.Counters = counters
	}
	return st
}

// Run refreshes the status every interval until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("status monitor already running")
	}
	s.isRunning = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	}()

	s.deps.Logger.Debug("Starting status monitor", "interval", s.deps.Interval)
	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.report(s.GetStatus(ctx))
		}
	}
}

func (s *Service) report(st Status) {
	if st.Views > 0 {
		s.deps.Logger.Info("Mission status",
			"views", st.Views,
			"byStatus", st.ByStatus,
			"paused", st.Paused,
			"returning", st.Returning,
			"telemetryDropped", st.TelemetryDropped,
			"counters", st.Counters)
	}
	if s.deps.StatusFile == "" {
		return
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		s.deps.Logger.Error("Error encoding status", "error", err)
		return
	}
	if err := os.WriteFile(s.deps.StatusFile, data, 0o644); err != nil {
		s.deps.Logger.Error("Error writing status file", "error", err, "path", s.deps.StatusFile)
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/skyfleet/missionctl/internal/controller"
	"github.com/skyfleet/missionctl/internal/logging"
	"github.com/skyfleet/missionctl/pkg/core"
)

// runHeadless flies a single mission without any network surface.
func (a *app) runHeadless(ctx context.Context, opts options) error {
	c, err := a.missions.Create(core.MissionPattern(opts.pattern), opts.profile)
	if err != nil {
		return err
	}
	final, err := flyMission(logging.WithMission(ctx, c.ID()), c, a.logger)
	if err != nil {
		return err
	}
	if final.State.Status == core.StatusFailed {
		return fmt.Errorf("mission %s failed", c.ID())
	}
	return nil
}

// flyMission validates and executes c, logging each phase change, and
// returns the terminal snapshot.
func flyMission(ctx context.Context, c *controller.Controller, logger *slog.Logger) (core.Snapshot, error) {
	sub, err := c.Subscribe(64)
	if err != nil {
		return core.Snapshot{}, err
	}
	validated := make(chan core.Snapshot, 1)
	go logPhases(ctx, sub, logger, validated)
	defer sub.Close()

	if err := c.Validate(); err != nil {
		return core.Snapshot{}, err
	}
	select {
	case snap := <-validated:
		logger.InfoContext(ctx, "Route validated",
			"routeLength", snap.Verdict.RouteLength,
			"estimatedDuration", snap.Verdict.EstimatedDuration)
	case <-ctx.Done():
		return c.Snapshot(), ctx.Err()
	}

	if err := c.Execute(); err != nil {
		return core.Snapshot{}, err
	}
	final, err := c.Wait(ctx)
	if err != nil {
		return final, err
	}
	logger.InfoContext(ctx, "Mission finished", "status", final.State.Status, "progress", final.State.Progress)
	return final, nil
}

// logPhases logs every phase change on sub and reports the first validated snapshot.
func logPhases(ctx context.Context, sub *controller.Subscription, logger *slog.Logger, validated chan<- core.Snapshot) {
	var last core.Phase
	reported := false
	for snap := range sub.C {
		if snap.Phase != last {
			last = snap.Phase
			logger.InfoContext(ctx, "Phase changed",
				"phase", snap.Phase.Label,
				"progress", fmt.Sprintf("%.1f", snap.State.Progress))
		}
		if !reported && snap.Validated && snap.Verdict != nil {
			reported = true
			validated <- snap
		}
	}
}

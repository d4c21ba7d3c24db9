package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/skyfleet/missionctl/internal/api"
	"github.com/skyfleet/missionctl/internal/logging"
	"github.com/skyfleet/missionctl/pkg/core"
)

const remotePollInterval = 200 * time.Millisecond

// runRemote flies a single mission on a running missionctl server.
func (a *app) runRemote(ctx context.Context, opts options) error {
	client := api.New(opts.remote)
	if err := client.Healthcheck(ctx); err != nil {
		return err
	}
	final, err := flyRemote(ctx, client, core.MissionPattern(opts.pattern), opts.profile, a.logger, remotePollInterval)
	if err != nil {
		return err
	}
	if final.State.Status == core.StatusFailed {
		return fmt.Errorf("mission %s failed", final.MissionID)
	}
	return nil
}

// flyRemote creates, validates and executes a mission through the API,
// polling until it reaches a terminal status. The mission is deleted afterwards.
func flyRemote(ctx context.Context, client *api.Client, pattern core.MissionPattern, profile string, logger *slog.Logger, poll time.Duration) (core.Snapshot, error) {
	snap, err := client.CreateMission(ctx, pattern, profile)
	if err != nil {
		return snap, err
	}
	id := snap.MissionID
	ctx = logging.WithMission(ctx, id)
	defer func() {
		if err := client.DeleteMission(context.Background(), id); err != nil {
			logger.WarnContext(ctx, "Failed to delete remote mission", "error", err)
		}
	}()

	if snap, err = client.Action(ctx, id, "validate", ""); err != nil {
		return snap, err
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	last := snap.Phase
	executed := false
	for {
		switch {
		case snap.State.Status == core.StatusCompleted || snap.State.Status == core.StatusFailed:
			logger.InfoContext(ctx, "Mission finished", "status", snap.State.Status, "progress", snap.State.Progress)
			return snap, nil
		case snap.Validated && !executed:
			executed = true
			if snap, err = client.Action(ctx, id, "execute", ""); err != nil {
				return snap, err
			}
		}

		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-ticker.C:
		}
		if snap, err = client.Mission(ctx, id); err != nil {
			return snap, err
		}
		if snap.Phase != last {
			last = snap.Phase
			logger.InfoContext(ctx, "Phase changed",
				"phase", snap.Phase.Label,
				"progress", fmt.Sprintf("%.1f", snap.State.Progress))
		}
	}
}

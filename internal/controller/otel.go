package controller

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/skyfleet/missionctl/internal/controller"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	transitions metric.Int64Counter
	ticks       metric.Int64Counter
	stale       metric.Int64Counter
}

func newMetrics() (*metrics, error) {
	m := meter()
	var (
		out metrics
		err error
	)

	out.transitions, err = m.Int64Counter(
		"missionctl.mission.transitions",
		metric.WithDescription("Total status transitions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transitions counter: %w", err)
	}

	out.ticks, err = m.Int64Counter(
		"missionctl.mission.ticks",
		metric.WithDescription("Total scheduler ticks applied"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}

	out.stale, err = m.Int64Counter(
		"missionctl.mission.stale_callbacks",
		metric.WithDescription("Timer and validation callbacks discarded for a superseded run"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stale callbacks counter: %w", err)
	}

	return &out, nil
}

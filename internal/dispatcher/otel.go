package dispatcher

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/skyfleet/missionctl/internal/dispatcher"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	queueDepth metric.Int64ObservableGauge
	handled    metric.Int64Counter
	rejected   metric.Int64Counter
	dropped    metric.Int64Counter
}

// newMetrics creates the command instruments. depth is polled for the
// queue depth gauge.
func newMetrics(depth func() map[string]int) (*metrics, error) {
	m := meter()
	out := &metrics{}

	var err error
	out.queueDepth, err = m.Int64ObservableGauge(
		"missionctl.commands.queue_depth",
		metric.WithDescription("Commands waiting in a buffered queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue depth gauge: %w", err)
	}
	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for cmd, n := range depth() {
			o.ObserveInt64(out.queueDepth, int64(n), metric.WithAttributes(attribute.String("command", cmd)))
		}
		return nil
	}, out.queueDepth)
	if err != nil {
		return nil, fmt.Errorf("registering queue depth callback: %w", err)
	}

	out.handled, err = m.Int64Counter(
		"missionctl.commands.handled",
		metric.WithDescription("Commands handled, by command and source"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating handled counter: %w", err)
	}

	out.rejected, err = m.Int64Counter(
		"missionctl.commands.rejected",
		metric.WithDescription("Commands whose handler returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rejected counter: %w", err)
	}

	out.dropped, err = m.Int64Counter(
		"missionctl.commands.dropped",
		metric.WithDescription("Commands dropped because their queue was full"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	return out, nil
}

func (m *metrics) record(e Event, err error) {
	attrs := metric.WithAttributes(
		attribute.String("command", e.Command),
		attribute.String("source", e.Source),
	)
	m.handled.Add(context.Background(), 1, attrs)
	if err != nil {
		m.rejected.Add(context.Background(), 1, attrs)
	}
}

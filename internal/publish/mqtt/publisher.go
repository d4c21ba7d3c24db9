package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/skyfleet/missionctl/internal/commands"
	"github.com/skyfleet/missionctl/internal/controller"
	"github.com/skyfleet/missionctl/internal/dispatcher"
	"github.com/skyfleet/missionctl/internal/geo"
	"github.com/skyfleet/missionctl/internal/queue"
	"github.com/skyfleet/missionctl/pkg/core"
	"github.com/skyfleet/missionctl/pkg/streaming"
)

const (
	// DefaultFlushInterval paces publishing at 10 batches per second.
	DefaultFlushInterval = 100 * time.Millisecond
	DefaultBacklog       = 1024
	subscriptionBuffer   = 32
)

// Client is the part of paho.Client the publisher uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// Profiles resolves capture profiles for altitude lookup.
type Profiles interface {
	Profile(id string) (core.CaptureProfile, bool)
}

// Options configures a Publisher. Client and Georeferencer are required.
type Options struct {
	Client        Client
	TopicPrefix   string
	QoS           byte
	Encoding      string
	Georeferencer *geo.Georeferencer
	Profiles      Profiles
	Dispatch      func(dispatcher.Event) (any, error)
	FlushInterval time.Duration
	Backlog       int
	Logger        *slog.Logger
}

// Publisher fans mission snapshots out to the broker.
type Publisher struct {
	opts    Options
	encode  Encoder
	backlog *queue.Queue[core.Snapshot]
	wg      sync.WaitGroup
}

// New creates a publisher. Attach missions to it, then Run it.
func New(opts Options) (*Publisher, error) {
	if opts.Client == nil || opts.Georeferencer == nil {
		return nil, errors.New("mqtt publisher requires a client and a georeferencer")
	}
	encode, err := EncoderFor(opts.Encoding)
	if err != nil {
		return nil, err
	}
	if opts.TopicPrefix == "" {
		opts.TopicPrefix = "missions"
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.Backlog <= 0 {
		opts.Backlog = DefaultBacklog
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.Logger = opts.Logger.With("component", "mqtt")

	return &Publisher{
		opts:    opts,
		encode:  encode,
		backlog: queue.NewBounded[core.Snapshot](opts.Backlog),
	}, nil
}

// Attach forwards every snapshot of c into the publish backlog until the
// mission is disposed. It fits registry.Hook.
func (p *Publisher) Attach(c *controller.Controller) {
	sub, err := c.Subscribe(subscriptionBuffer)
	if err != nil {
		p.opts.Logger.Warn("cannot attach mission", "mission", c.ID(), "error", err)
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for snap := range sub.C {
			if dropped := p.backlog.Push(snap); dropped > 0 {
				p.opts.Logger.Debug("telemetry backlog full, dropped oldest", "dropped", dropped)
			}
		}
	}()
}

// Run subscribes to commands and publishes the backlog until ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
	if p.opts.Dispatch != nil {
		filter := CommandFilter(p.opts.TopicPrefix)
		tok := p.opts.Client.Subscribe(filter, p.opts.QoS, func(_ paho.Client, m paho.Message) {
			p.handleCommand(m.Topic(), m.Payload())
		})
		if !tok.WaitTimeout(connectTimeout) {
			p.opts.Logger.Warn("command subscription not confirmed", "filter", filter)
		} else if err := tok.Error(); err != nil {
			return fmt.Errorf("subscribing to %s: %w", filter, err)
		}
		p.opts.Logger.Info("subscribed to commands", "filter", filter)
	}

	ticker := time.NewTicker(p.opts.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.Flush()
			return nil
		case <-ticker.C:
			p.Flush()
		}
	}
}

// Flush publishes everything in the backlog.
func (p *Publisher) Flush() {
	for _, snap := range p.backlog.GetAndEmpty() {
		p.publish(snap)
	}
}

// Wait blocks until all attached missions have been disposed.
func (p *Publisher) Wait() {
	p.wg.Wait()
}

// Dropped returns the number of snapshots lost to a full backlog.
func (p *Publisher) Dropped() uint64 {
	return p.backlog.Dropped()
}

func (p *Publisher) publish(snap core.Snapshot) {
	altitude := 0.0
	if p.opts.Profiles != nil {
		if prof, ok := p.opts.Profiles.Profile(snap.ProfileID); ok {
			altitude = prof.Altitude
		}
	}
	msg := NewTelemetry(snap, p.opts.Georeferencer, altitude)
	b, err := p.encode(msg)
	if err != nil {
		p.opts.Logger.Error("failed to encode telemetry", "mission", snap.MissionID, "error", err)
		return
	}
	p.opts.Client.Publish(StateTopic(p.opts.TopicPrefix, snap.MissionID), p.opts.QoS, false, b)
}

// handleCommand dispatches a command received on <prefix>/<mission>/command.
func (p *Publisher) handleCommand(topic string, payload []byte) {
	id, ok := MissionFromCommandTopic(p.opts.TopicPrefix, topic)
	if !ok {
		p.opts.Logger.Debug("ignoring message on unexpected topic", "topic", topic)
		return
	}

	var cmd streaming.CommandPayload
	if err := json.Unmarshal(payload, &cmd); err != nil {
		p.opts.Logger.Warn("invalid command payload", "mission", id, "error", err)
		return
	}
	name, ok := commands.ForAction(cmd.Action)
	if !ok {
		p.opts.Logger.Warn("unknown command action", "mission", id, "action", cmd.Action)
		return
	}

	if _, err := p.opts.Dispatch(dispatcher.Event{
		Command: name,
		Args:    []string{id, cmd.Value},
		Source:  "mqtt",
	}); err != nil {
		p.opts.Logger.Warn("command rejected", "mission", id, "action", cmd.Action, "error", err)
	}
}

// Disconnect closes the broker connection.
func Disconnect(client paho.Client) {
	client.Disconnect(disconnectWait)
}

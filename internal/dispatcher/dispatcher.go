// Package dispatcher routes operator commands from every surface (HTTP,
// websocket, MQTT, CLI) to their registered handlers.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrQueueFull      = errors.New("queue full")
	ErrClosed         = errors.New("dispatcher closed")
)

// Event is an operator command routed to a handler.
type Event struct {
	Command   string
	Args      []string
	Source    string // "http", "websocket", "mqtt", "cli"
	Timestamp time.Time
}

// Arg returns the i-th argument or "" when absent.
func (e Event) Arg(i int) string {
	if i < 0 || i >= len(e.Args) {
		return ""
	}
	return e.Args[i]
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*route)

type route struct {
	queue    int
	blocking bool
	logged   bool
}

// Buffered hands events to a single worker through a queue of the given size.
// The caller gets "queued" back instead of the handler result.
func Buffered(size int) Option {
	return func(r *route) {
		r.queue = size
	}
}

// Blocking makes a buffered handler wait for queue space instead of dropping.
func Blocking() Option {
	return func(r *route) {
		r.blocking = true
	}
}

// Logged logs every call with its source and duration.
func Logged() Option {
	return func(r *route) {
		r.logged = true
	}
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	logger  Logger
	metrics *metrics

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	queues   map[string]chan Event
	closed   bool
	workers  sync.WaitGroup
}

// New creates a Dispatcher. Metrics go to the global OTel meter, which is a
// no-op until a provider is installed.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
		queues:   make(map[string]chan Event),
	}

	m, err := newMetrics(d.queueDepths)
	if err != nil {
		return nil, err
	}
	d.metrics = m
	return d, nil
}

// Register adds a handler for the given command.
// Registering a command twice replaces the previous handler.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	r := &route{}
	for _, opt := range opts {
		opt(r)
	}

	handler := h
	if r.queue > 0 {
		handler = d.queued(command, r.queue, r.blocking, handler)
	}
	if r.logged {
		handler = d.logged(command, handler)
	}

	d.mu.Lock()
	d.handlers[command] = handler
	d.mu.Unlock()
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	// Held for the call so Close cannot close a queue mid-send.
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, ErrClosed
	}
	h, ok := d.handlers[e.Command]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	result, err := h(e)
	d.metrics.record(e, err)
	return result, err
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[command]
	return ok
}

// Commands lists the registered commands in name order.
func (d *Dispatcher) Commands() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for cmd := range d.handlers {
		out = append(out, cmd)
	}
	sort.Strings(out)
	return out
}

// Close stops accepting events and waits for queued ones to be handled.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	d.workers.Wait()
}

func (d *Dispatcher) queueDepths() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]int, len(d.queues))
	for cmd, q := range d.queues {
		out[cmd] = len(q)
	}
	return out
}

func (d *Dispatcher) queued(command string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	q := make(chan Event, size)

	d.mu.Lock()
	d.queues[command] = q
	d.mu.Unlock()

	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		for e := range q {
			if _, err := h(e); err != nil {
				d.logger.Error("queued event failed", "command", command, "source", e.Source, "error", err)
			}
		}
	}()

	if blocking {
		return func(e Event) (any, error) {
			q <- e
			return "queued", nil
		}
	}

	cmdAttr := metric.WithAttributes(attribute.String("command", command))
	return func(e Event) (any, error) {
		select {
		case q <- e:
			return "queued", nil
		default:
			d.metrics.dropped.Add(context.Background(), 1, cmdAttr)
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, command)
		}
	}
}

func (d *Dispatcher) logged(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "source", e.Source, "args", len(e.Args))

		result, err := h(e)
		if err != nil {
			d.logger.Error("event failed", "command", command, "source", e.Source, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "command", command, "duration", time.Since(start))
		}
		return result, err
	}
}

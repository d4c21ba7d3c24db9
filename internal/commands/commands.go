// Package commands exposes mission operations as dispatcher commands.
// Every command takes the mission id as its first argument, except :CREATE:.
package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/skyfleet/missionctl/internal/controller"
	"github.com/skyfleet/missionctl/internal/dispatcher"
	"github.com/skyfleet/missionctl/internal/registry"
	"github.com/skyfleet/missionctl/pkg/core"
)

// Command names.
const (
	Create   = ":CREATE:"
	Pattern  = ":PATTERN:"
	Profile  = ":PROFILE:"
	Validate = ":VALIDATE:"
	Execute  = ":EXECUTE:"
	Pause    = ":PAUSE:"
	Resume   = ":RESUME:"
	Return   = ":RETURN:"
	Restart  = ":RESTART:"
	Status   = ":STATUS:"
	Dispose  = ":DISPOSE:"
)

var ErrMissingArgument = errors.New("missing argument")

// actions maps the lower-case action names used by the HTTP and MQTT
// surfaces onto commands.
var actions = map[string]string{
	"pattern":  Pattern,
	"profile":  Profile,
	"validate": Validate,
	"execute":  Execute,
	"pause":    Pause,
	"resume":   Resume,
	"return":   Return,
	"restart":  Restart,
	"status":   Status,
}

// ForAction returns the command for an action name such as "execute".
func ForAction(action string) (string, bool) {
	cmd, ok := actions[strings.ToLower(action)]
	return cmd, ok
}

// Manager routes commands to missions held in a registry.
type Manager struct {
	missions *registry.Registry
}

// NewManager creates a command manager over missions.
func NewManager(missions *registry.Registry) *Manager {
	return &Manager{missions: missions}
}

// RegisterHandlers registers all mission commands with the dispatcher.
// Handlers are synchronous so callers see rejections immediately.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(Create, m.handleCreate, dispatcher.Logged())
	d.Register(Dispose, m.handleDispose, dispatcher.Logged())
	d.Register(Status, m.handleStatus)

	d.Register(Pattern, m.withValue(func(c *controller.Controller, v string) error {
		return c.SelectPattern(core.MissionPattern(v))
	}), dispatcher.Logged())
	d.Register(Profile, m.withValue(func(c *controller.Controller, v string) error {
		return c.SelectProfile(v)
	}), dispatcher.Logged())

	d.Register(Validate, m.withMission((*controller.Controller).Validate), dispatcher.Logged())
	d.Register(Execute, m.withMission((*controller.Controller).Execute), dispatcher.Logged())
	d.Register(Pause, m.withMission((*controller.Controller).Pause), dispatcher.Logged())
	d.Register(Resume, m.withMission((*controller.Controller).Resume), dispatcher.Logged())
	d.Register(Return, m.withMission((*controller.Controller).ReturnToLaunch), dispatcher.Logged())
	d.Register(Restart, m.withMission((*controller.Controller).Restart), dispatcher.Logged())
}

func (m *Manager) handleCreate(e dispatcher.Event) (any, error) {
	c, err := m.missions.Create(core.MissionPattern(e.Arg(0)), e.Arg(1))
	if err != nil {
		return nil, fmt.Errorf("failed to create mission: %w", err)
	}
	return c.Snapshot(), nil
}

func (m *Manager) handleDispose(e dispatcher.Event) (any, error) {
	id := e.Arg(0)
	if id == "" {
		return nil, fmt.Errorf("%w: mission id", ErrMissingArgument)
	}
	return nil, m.missions.Remove(id)
}

func (m *Manager) handleStatus(e dispatcher.Event) (any, error) {
	c, err := m.mission(e)
	if err != nil {
		return nil, err
	}
	return c.Snapshot(), nil
}

// withMission adapts a controller operation into a handler returning the resulting snapshot.
func (m *Manager) withMission(op func(*controller.Controller) error) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) (any, error) {
		c, err := m.mission(e)
		if err != nil {
			return nil, err
		}
		if err := op(c); err != nil {
			return nil, fmt.Errorf("%s %s: %w", e.Command, c.ID(), err)
		}
		return c.Snapshot(), nil
	}
}

// withValue is withMission for operations taking the second argument.
func (m *Manager) withValue(op func(*controller.Controller, string) error) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) (any, error) {
		value := e.Arg(1)
		if value == "" {
			return nil, fmt.Errorf("%w: value for %s", ErrMissingArgument, e.Command)
		}
		return m.withMission(func(c *controller.Controller) error {
			return op(c, value)
		})(e)
	}
}

func (m *Manager) mission(e dispatcher.Event) (*controller.Controller, error) {
	id := e.Arg(0)
	if id == "" {
		return nil, fmt.Errorf("%w: mission id", ErrMissingArgument)
	}
	return m.missions.Get(id)
}

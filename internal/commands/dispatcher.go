// Package commands maps command names to typed handlers over the shared
// application state. All transports (HTTP, MCP, CLI) dispatch through here.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/joescharf/marie/internal/ai"
	"github.com/joescharf/marie/internal/apperr"
	"github.com/joescharf/marie/internal/checkpoint"
	"github.com/joescharf/marie/internal/events"
	"github.com/joescharf/marie/internal/git"
	"github.com/joescharf/marie/internal/models"
	"github.com/joescharf/marie/internal/state"
	"github.com/joescharf/marie/internal/store"
	"github.com/joescharf/marie/internal/watch"
	"github.com/joescharf/marie/internal/workspace"
)

// DefaultTimeout bounds a command when Deps.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Handler runs one command with its raw JSON arguments.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Param describes one argument of a command.
type Param struct {
	Name        string
	Type        string // string, boolean, number, object, array
	Description string
	Required    bool
}

// Command is an entry of the dispatch table.
type Command struct {
	Name        string
	Description string
	Params      []Param
	Timeout     time.Duration // zero uses the dispatcher default
	handler     Handler
}

// Deps are the capabilities the handlers work with.
type Deps struct {
	State       *state.AppState
	Store       store.Store
	Checkpoints *checkpoint.Service
	Git         git.Client
	AI          *ai.Router
	Scanner     *workspace.Scanner
	Bus         *events.Bus
	Logger      *zap.Logger

	Timeout       time.Duration
	AITimeout     time.Duration
	AtomicWrite   bool
	WatchEnabled  bool
	WatchDebounce time.Duration
}

// Dispatcher owns the command table.
type Dispatcher struct {
	deps     Deps
	commands map[string]*Command

	watchMu sync.Mutex
	watcher *watch.Watcher
}

// New builds the dispatcher and registers every command.
func New(deps Deps) *Dispatcher {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Bus == nil {
		deps.Bus = events.NewBus(0)
	}
	if deps.Scanner == nil {
		deps.Scanner = workspace.NewScanner()
	}
	if deps.Git == nil {
		deps.Git = git.NewStatic()
	}
	if deps.AI == nil {
		deps.AI = ai.NewRouter(ai.RouterOptions{Logger: deps.Logger})
	}
	if deps.Checkpoints == nil {
		deps.Checkpoints = checkpoint.New(deps.Store, deps.State, deps.Git, checkpoint.Options{
			AtomicWrite: deps.AtomicWrite,
			Logger:      deps.Logger,
		})
	}
	if deps.Timeout <= 0 {
		deps.Timeout = DefaultTimeout
	}

	d := &Dispatcher{deps: deps, commands: map[string]*Command{}}
	d.registerSettings()
	d.registerWorkspace()
	d.registerFiles()
	d.registerCheckpoints()
	d.registerGit()
	d.registerAI()
	return d
}

func (d *Dispatcher) register(c *Command) {
	if _, dup := d.commands[c.Name]; dup {
		panic("duplicate command " + c.Name)
	}
	d.commands[c.Name] = c
}

// Commands returns the dispatch table sorted by name.
func (d *Dispatcher) Commands() []*Command {
	out := make([]*Command, 0, len(d.commands))
	for _, c := range d.commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered command names, sorted.
func (d *Dispatcher) Names() []string {
	cmds := d.Commands()
	names := make([]string, len(cmds))
	for i, c := range cmds {
		names[i] = c.Name
	}
	return names
}

// Bus returns the event bus handlers publish to.
func (d *Dispatcher) Bus() *events.Bus { return d.deps.Bus }

// Invoke runs the named command. Errors are apperr values; a panic in a
// handler is reported as an internal error.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args json.RawMessage) (result any, err error) {
	c, ok := d.commands[name]
	if !ok {
		return nil, apperr.Invalid("command", fmt.Sprintf("unknown command %q", name))
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = d.deps.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.deps.Logger.Error("command panicked", zap.String("command", name), zap.Any("panic", r))
			result, err = nil, fmt.Errorf("command %s panicked: %v", name, r)
		}
		fields := []zap.Field{
			zap.String("command", name),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			fields = append(fields, zap.String("kind", string(apperr.KindOf(err))), zap.Error(err))
			d.deps.Logger.Info("command failed", fields...)
			return
		}
		d.deps.Logger.Debug("command", fields...)
	}()

	return c.handler(ctx, args)
}

// Close stops background work started by commands.
func (d *Dispatcher) Close() {
	d.stopWatcher()
}

// typed adapts a handler over a decoded argument struct.
func typed[A any, R any](fn func(ctx context.Context, args A) (R, error)) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var a A
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &a); err != nil {
				return nil, apperr.Invalid("args", err.Error())
			}
		}
		return fn(ctx, a)
	}
}

type noArgs struct{}

func (d *Dispatcher) publish(typ string, payload any) {
	d.deps.Bus.Publish(typ, payload)
}

func (d *Dispatcher) requireWorkspace() (*models.Workspace, error) {
	ws := d.deps.State.Workspace()
	if ws == nil {
		return nil, state.ErrNoWorkspace()
	}
	return ws, nil
}

// LoadSettings returns the stored settings, or the defaults when none have
// been saved.
func LoadSettings(ctx context.Context, st store.SettingsStore) (models.AppSettings, error) {
	s, err := st.LoadSettings(ctx)
	if err != nil {
		return models.AppSettings{}, err
	}
	if s == nil {
		return models.DefaultSettings(), nil
	}
	return *s, nil
}

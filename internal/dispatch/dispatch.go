// Package dispatch tracks the selected robot and sends fire-and-forget
// commands to it.
package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"

	"fleet-visualizer/internal/api"
	"fleet-visualizer/internal/logging"
	"fleet-visualizer/internal/model"
)

// ErrNoSelection is returned when a command is issued with nothing selected.
var ErrNoSelection = errors.New("no robot selected")

// Acknowledgement messages used when the backend gives none.
const (
	MsgSent          = "command sent"
	MsgFailed        = "command failed"
	MsgRequestFailed = "request failed"
)

// Selection is the single selected robot id. It changes only when set and
// is never cleared automatically.
type Selection struct {
	mu       sync.RWMutex
	id       string
	onChange func(id string)
}

// Set selects id. Setting an empty id is ignored.
func (s *Selection) Set(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	s.mu.Lock()
	changed := s.id != id
	s.id = id
	fn := s.onChange
	s.mu.Unlock()
	if changed && fn != nil {
		fn(id)
	}
}

// Get returns the selected id, or "".
func (s *Selection) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// OnChange registers fn to be called after the selection changes.
func (s *Selection) OnChange(fn func(id string)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Ack is the user-visible outcome of a command.
type Ack struct {
	OK  bool   `json:"ok"`
	Msg string `json:"msg"`
}

// Commander is the backend side of the dispatcher.
type Commander interface {
	Navigate(ctx context.Context, id string, lat, lng float64) (api.Reply, error)
	Control(ctx context.Context, id, command string) (api.Reply, error)
}

// Dispatcher sends commands to the selected robot. A command is sent once;
// there is no retry or queue.
type Dispatcher struct {
	sel *Selection
	cmd Commander
	log *logging.Logger
}

// New returns a dispatcher for sel.
func New(sel *Selection, cmd Commander, log *logging.Logger) *Dispatcher {
	if log == nil {
		log = logging.Default()
	}
	return &Dispatcher{sel: sel, cmd: cmd, log: log}
}

// Selection returns the dispatcher's selection.
func (d *Dispatcher) Selection() *Selection {
	return d.sel
}

// Navigate asks the selected robot to drive to pos.
func (d *Dispatcher) Navigate(ctx context.Context, pos model.Position) (Ack, error) {
	id := d.sel.Get()
	if id == "" {
		return Ack{}, ErrNoSelection
	}
	if err := pos.Validate(); err != nil {
		return Ack{}, err
	}
	reply, err := d.cmd.Navigate(ctx, id, pos.Lat, pos.Lng)
	return d.ack("navigate", id, reply, err), nil
}

// Control sends command (e.g. GRAB, RESET, STOP) to the selected robot.
func (d *Dispatcher) Control(ctx context.Context, command string) (Ack, error) {
	id := d.sel.Get()
	if id == "" {
		return Ack{}, ErrNoSelection
	}
	command = strings.ToUpper(strings.TrimSpace(command))
	if command == "" {
		return Ack{}, errors.New("command is required")
	}
	reply, err := d.cmd.Control(ctx, id, command)
	return d.ack("control", id, reply, err), nil
}

func (d *Dispatcher) ack(kind, id string, reply api.Reply, err error) Ack {
	switch {
	case err == nil:
		msg := reply.Msg
		if msg == "" {
			msg = MsgSent
		}
		d.log.Info("command sent", "kind", kind, "robot", id)
		return Ack{OK: true, Msg: msg}
	case errors.Is(err, api.ErrNotOK):
		msg := reply.Msg
		if msg == "" {
			msg = MsgFailed
		}
		d.log.Warn("command rejected", "kind", kind, "robot", id, "msg", msg)
		return Ack{OK: false, Msg: msg}
	default:
		d.log.Warn("command request failed", "kind", kind, "robot", id, "error", err)
		return Ack{OK: false, Msg: MsgRequestFailed}
	}
}

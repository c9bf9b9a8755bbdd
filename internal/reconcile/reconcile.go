// Package reconcile keeps a rendering surface in step with polled snapshots.
//
// A Reconciler turns each snapshot into create, move, update and destroy
// calls against a Surface. Bindings are owned by the caller and threaded
// through successive Reconcile calls, so independent views can each keep
// their own.
package reconcile

import (
	"fmt"

	"github.com/paulmach/orb/geo"

	"fleet-visualizer/internal/logging"
	"fleet-visualizer/internal/model"
)

// Surface creates visual elements (map markers, table rows).
type Surface interface {
	Create(id string, pos model.Position, content string) (Element, error)
}

// Element is one visual element owned by a binding.
type Element interface {
	Move(pos model.Position) error
	UpdateContent(content string) error
	Destroy() error
}

// Binding associates a live entity id with its visual element.
type Binding struct {
	ID       string
	Position model.Position
	Content  string
	Element  Element
}

// Bindings maps entity id to binding.
type Bindings map[string]*Binding

// IDs returns the bound ids in no particular order.
func (b Bindings) IDs() []string {
	out := make([]string, 0, len(b))
	for id := range b {
		out = append(out, id)
	}
	return out
}

// Changes tallies what one Reconcile call did.
type Changes struct {
	Created   int
	Moved     int
	Refreshed int
	Removed   int
	Skipped   int
}

// Empty reports whether nothing changed on the surface.
func (c Changes) Empty() bool {
	return c.Created == 0 && c.Moved == 0 && c.Refreshed == 0 && c.Removed == 0
}

func (c Changes) String() string {
	return fmt.Sprintf("created=%d moved=%d refreshed=%d removed=%d skipped=%d",
		c.Created, c.Moved, c.Refreshed, c.Removed, c.Skipped)
}

// Options configures a Reconciler.
type Options struct {
	// Content formats an entity's display text. Defaults to model.FormatContent.
	Content func(model.Entity) string
	// MinMoveMeters suppresses moves shorter than this distance. Zero moves
	// on any change.
	MinMoveMeters float64
	Logger        *logging.Logger
}

// Reconciler applies snapshots to a Surface.
type Reconciler struct {
	surface       Surface
	content       func(model.Entity) string
	minMoveMeters float64
	log           *logging.Logger
}

// New returns a Reconciler drawing on surface.
func New(surface Surface, opts Options) *Reconciler {
	r := &Reconciler{
		surface:       surface,
		content:       opts.Content,
		minMoveMeters: opts.MinMoveMeters,
		log:           opts.Logger,
	}
	if r.content == nil {
		r.content = model.FormatContent
	}
	if r.log == nil {
		r.log = logging.Default()
	}
	return r
}

// Reconcile brings the surface in line with snap and returns the bindings
// to pass to the next call. prev is consumed and must not be reused.
//
// Entities are processed in snapshot order. When an id repeats within one
// snapshot the last occurrence wins. Entities without an id are skipped;
// entities without a valid position remove any existing binding.
func (r *Reconciler) Reconcile(prev Bindings, snap model.Snapshot) (Bindings, Changes) {
	var ch Changes
	pending := prev
	if pending == nil {
		pending = Bindings{}
	}
	next := make(Bindings, len(snap))

	// Only the last occurrence of an id is applied, so a repeated id never
	// creates and destroys within one pass.
	last := make(map[string]int, len(snap))
	for i, e := range snap {
		if e.ID != "" {
			last[e.ID] = i
		}
	}

	for i, e := range snap {
		if e.ID == "" {
			ch.Skipped++
			r.log.Warn("skipping entity without id", "index", i)
			continue
		}
		if last[e.ID] != i {
			continue
		}

		b, ok := pending[e.ID]
		if ok {
			delete(pending, e.ID)
		}

		if !e.Placeable() {
			if ok {
				r.destroy(b)
				ch.Removed++
			}
			continue
		}

		pos := *e.Position
		content := r.content(e)

		if !ok {
			el, err := r.surface.Create(e.ID, pos, content)
			if err != nil {
				ch.Skipped++
				r.log.Warn("create element failed", "id", e.ID, "error", err)
				continue
			}
			next[e.ID] = &Binding{ID: e.ID, Position: pos, Content: content, Element: el}
			ch.Created++
			continue
		}

		if pos != b.Position && r.farEnough(b.Position, pos) {
			if err := b.Element.Move(pos); err != nil {
				r.log.Warn("move element failed", "id", e.ID, "error", err)
			} else {
				b.Position = pos
				ch.Moved++
			}
		}
		if content != b.Content {
			if err := b.Element.UpdateContent(content); err != nil {
				r.log.Warn("update element failed", "id", e.ID, "error", err)
			} else {
				b.Content = content
				ch.Refreshed++
			}
		}
		next[e.ID] = b
	}

	for id, b := range pending {
		r.destroy(b)
		delete(pending, id)
		ch.Removed++
	}
	return next, ch
}

// Clear destroys every element in b.
func (r *Reconciler) Clear(b Bindings) {
	for id, bnd := range b {
		r.destroy(bnd)
		delete(b, id)
	}
}

func (r *Reconciler) farEnough(from, to model.Position) bool {
	if r.minMoveMeters <= 0 {
		return true
	}
	return geo.Distance(from.Point(), to.Point()) >= r.minMoveMeters
}

// destroy swallows errors: an element that is already gone is not a failure.
func (r *Reconciler) destroy(b *Binding) {
	if b == nil || b.Element == nil {
		return
	}
	if err := b.Element.Destroy(); err != nil {
		r.log.Debug("destroy element failed", "id", b.ID, "error", err)
	}
}

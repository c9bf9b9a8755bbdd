// Package table renders reconciled entities as rows of a terminal table.
package table

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"

	"fleet-visualizer/internal/model"
	"fleet-visualizer/internal/reconcile"
)

var errDetached = errors.New("row already removed")

// Row is one rendered table row.
type Row struct {
	ID       string
	Position model.Position
	Content  string
	order    uint64
}

// Table is a reconcile.Surface holding rows in first-seen order.
type Table struct {
	mu    sync.Mutex
	rows  map[string]*Row
	order uint64
}

// New returns an empty table.
func New() *Table {
	return &Table{rows: make(map[string]*Row)}
}

type rowHandle struct {
	t  *Table
	id string
}

// Create implements reconcile.Surface.
func (t *Table) Create(id string, pos model.Position, content string) (reconcile.Element, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[id]; ok {
		return nil, fmt.Errorf("row %s already exists", id)
	}
	t.order++
	t.rows[id] = &Row{ID: id, Position: pos, Content: content, order: t.order}
	return &rowHandle{t: t, id: id}, nil
}

func (h *rowHandle) Move(pos model.Position) error {
	return h.t.update(h.id, func(r *Row) { r.Position = pos })
}

func (h *rowHandle) UpdateContent(content string) error {
	return h.t.update(h.id, func(r *Row) { r.Content = content })
}

func (h *rowHandle) Destroy() error {
	h.t.mu.Lock()
	defer h.t.mu.Unlock()
	if _, ok := h.t.rows[h.id]; !ok {
		return errDetached
	}
	delete(h.t.rows, h.id)
	return nil
}

func (t *Table) update(id string, fn func(*Row)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.rows[id]
	if !ok {
		return errDetached
	}
	fn(r)
	return nil
}

// Rows returns a copy of the rows in first-seen order.
func (t *Table) Rows() []Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Row, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].order < out[j].order })
	return out
}

// Len returns the number of rows.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}

// Render writes the table with aligned columns. Multi-line content is
// joined with " | ".
func (t *Table) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLAT\tLNG\tDETAILS")
	for _, r := range t.Rows() {
		fmt.Fprintf(tw, "%s\t%.5f\t%.5f\t%s\n", r.ID, r.Position.Lat, r.Position.Lng,
			strings.ReplaceAll(r.Content, "\n", " | "))
	}
	return tw.Flush()
}

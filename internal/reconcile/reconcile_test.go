package reconcile

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-visualizer/internal/logging"
	"fleet-visualizer/internal/model"
)

// fakeSurface records every element it creates.
type fakeSurface struct {
	created   []*fakeElement
	failNext  bool
	destroyed int
}

type fakeElement struct {
	s         *fakeSurface
	id        string
	pos       model.Position
	content   string
	moves     int
	updates   int
	destroyed bool
	failKill  bool
}

func (s *fakeSurface) Create(id string, pos model.Position, content string) (Element, error) {
	if s.failNext {
		s.failNext = false
		return nil, errors.New("surface unavailable")
	}
	el := &fakeElement{s: s, id: id, pos: pos, content: content}
	s.created = append(s.created, el)
	return el, nil
}

func (s *fakeSurface) live() map[string]*fakeElement {
	out := map[string]*fakeElement{}
	for _, el := range s.created {
		if !el.destroyed {
			out[el.id] = el
		}
	}
	return out
}

func (e *fakeElement) Move(pos model.Position) error {
	e.pos = pos
	e.moves++
	return nil
}

func (e *fakeElement) UpdateContent(content string) error {
	e.content = content
	e.updates++
	return nil
}

func (e *fakeElement) Destroy() error {
	if e.destroyed || e.failKill {
		return errors.New("already detached")
	}
	e.destroyed = true
	e.s.destroyed++
	return nil
}

func quietLogger() *logging.Logger {
	return logging.New(io.Discard, logging.LevelError)
}

func robot(id string, lat, lng float64, status string) model.Entity {
	return model.Entity{
		ID:       id,
		Position: &model.Position{Lat: lat, Lng: lng},
		Fields:   map[string]string{model.FieldStatus: status},
	}
}

func unplaced(id string) model.Entity {
	return model.Entity{ID: id}
}

func newTestReconciler(s Surface) *Reconciler {
	return New(s, Options{Logger: quietLogger()})
}

func TestReconcile_CreatesOnFirstSighting(t *testing.T) {
	t.Parallel()

	s := &fakeSurface{}
	r := newTestReconciler(s)

	b, ch := r.Reconcile(nil, model.Snapshot{robot("a", 1, 2, "ONLINE"), robot("b", 3, 4, "OFFLINE")})

	assert.ElementsMatch(t, []string{"a", "b"}, b.IDs())
	assert.Equal(t, 2, ch.Created)
	require.Len(t, s.created, 2)
	assert.Equal(t, "a", s.created[0].id)
	assert.Equal(t, model.Position{Lat: 1, Lng: 2}, s.created[0].pos)
	assert.Equal(t, "ONLINE", s.created[0].content)
}

func TestReconcile_NoDuplicateCreation(t *testing.T) {
	t.Parallel()

	s := &fakeSurface{}
	r := newTestReconciler(s)

	b, _ := r.Reconcile(nil, model.Snapshot{robot("a", 1, 2, "ONLINE")})
	b, ch := r.Reconcile(b, model.Snapshot{robot("a", 1, 2, "ONLINE")})

	assert.Len(t, s.created, 1)
	assert.Len(t, b, 1)
	assert.True(t, ch.Empty())
}

func TestReconcile_MovesInPlace(t *testing.T) {
	t.Parallel()

	s := &fakeSurface{}
	r := newTestReconciler(s)

	b, _ := r.Reconcile(nil, model.Snapshot{robot("r1", 30.0, 110.0, "ONLINE")})
	first := b["r1"].Element

	next := robot("r1", 30.5, 110.5, "ONLINE")
	next.Fields[model.FieldBattery] = "55"
	b, ch := r.Reconcile(b, model.Snapshot{next})

	require.Len(t, s.created, 1, "element must not be recreated")
	assert.Same(t, first, b["r1"].Element)
	el := s.created[0]
	assert.False(t, el.destroyed)
	assert.Equal(t, 1, el.moves)
	assert.Equal(t, model.Position{Lat: 30.5, Lng: 110.5}, el.pos)
	assert.Equal(t, "ONLINE 55%", el.content)
	assert.Equal(t, 1, ch.Moved)
	assert.Equal(t, 1, ch.Refreshed)
	assert.Equal(t, model.Position{Lat: 30.5, Lng: 110.5}, b["r1"].Position)
}

func TestReconcile_RemovesAbsent(t *testing.T) {
	t.Parallel()

	s := &fakeSurface{}
	r := newTestReconciler(s)

	b, _ := r.Reconcile(nil, model.Snapshot{robot("a", 1, 1, ""), robot("b", 2, 2, "")})
	b, ch := r.Reconcile(b, model.Snapshot{robot("b", 2, 2, "")})

	assert.Equal(t, 1, ch.Removed)
	assert.NotContains(t, b, "a")
	assert.True(t, s.created[0].destroyed)
	assert.False(t, s.created[1].destroyed)

	// does not reappear on its own
	b, _ = r.Reconcile(b, model.Snapshot{robot("b", 2, 2, "")})
	assert.NotContains(t, b, "a")
	assert.Len(t, s.live(), 1)

	// unless resent with a position
	b, ch = r.Reconcile(b, model.Snapshot{robot("a", 5, 5, ""), robot("b", 2, 2, "")})
	assert.Equal(t, 1, ch.Created)
	assert.Contains(t, b, "a")
	assert.Len(t, s.created, 3)
}

func TestReconcile_PositionLostRemoves(t *testing.T) {
	t.Parallel()

	s := &fakeSurface{}
	r := newTestReconciler(s)

	b, _ := r.Reconcile(nil, model.Snapshot{robot("a", 1, 1, "")})
	b, ch := r.Reconcile(b, model.Snapshot{unplaced("a")})

	assert.Empty(t, b)
	assert.Equal(t, 1, ch.Removed)
	assert.True(t, s.created[0].destroyed)

	invalid := robot("a", 95, 1, "")
	b, ch = r.Reconcile(b, model.Snapshot{invalid})
	assert.Empty(t, b)
	assert.Zero(t, ch.Created)
}

func TestReconcile_EmptySnapshotClearsAll(t *testing.T) {
	t.Parallel()

	s := &fakeSurface{}
	r := newTestReconciler(s)

	b, _ := r.Reconcile(nil, model.Snapshot{robot("a", 1, 1, ""), robot("b", 2, 2, ""), robot("c", 3, 3, "")})
	b, ch := r.Reconcile(b, model.Snapshot{})

	assert.Empty(t, b)
	assert.Equal(t, 3, ch.Removed)
	assert.Empty(t, s.live())
	assert.Equal(t, 3, s.destroyed)
}

func TestReconcile_DuplicateIDsLastWins(t *testing.T) {
	t.Parallel()

	s := &fakeSurface{}
	r := newTestReconciler(s)

	snap := model.Snapshot{
		{ID: "1", Position: &model.Position{Lat: 10, Lng: 20}},
		{ID: "1", Position: &model.Position{Lat: 11, Lng: 21}},
	}
	b, ch := r.Reconcile(nil, snap)

	require.Len(t, b, 1)
	assert.Equal(t, model.Position{Lat: 11, Lng: 21}, b["1"].Position)
	require.Len(t, s.created, 1)
	assert.Equal(t, model.Position{Lat: 11, Lng: 21}, s.created[0].pos)
	assert.Equal(t, 1, ch.Created)

	// Deterministic across runs.
	for i := 0; i < 10; i++ {
		s2 := &fakeSurface{}
		b2, _ := newTestReconciler(s2).Reconcile(nil, snap)
		assert.Equal(t, model.Position{Lat: 11, Lng: 21}, b2["1"].Position)
	}
}

func TestReconcile_DuplicateIDMovesExistingElement(t *testing.T) {
	t.Parallel()

	s := &fakeSurface{}
	r := newTestReconciler(s)

	b, _ := r.Reconcile(nil, model.Snapshot{robot("1", 10, 20, "")})
	b, ch := r.Reconcile(b, model.Snapshot{unplaced("1"), robot("1", 11, 21, "")})

	require.Len(t, b, 1)
	require.Len(t, s.created, 1)
	assert.Equal(t, 0, s.destroyed)
	assert.Equal(t, 1, s.created[0].moves)
	assert.Equal(t, model.Position{Lat: 11, Lng: 21}, s.created[0].pos)
	assert.Equal(t, 1, ch.Moved)
	assert.Equal(t, 0, ch.Created)
	assert.Equal(t, 0, ch.Removed)
}

func TestReconcile_NewDuplicateEndingUnplacedNeverCreated(t *testing.T) {
	t.Parallel()

	s := &fakeSurface{}
	r := newTestReconciler(s)

	b, ch := r.Reconcile(nil, model.Snapshot{robot("1", 10, 20, ""), unplaced("1")})

	assert.Empty(t, b)
	assert.Empty(t, s.created)
	assert.True(t, ch.Empty())
}

func TestReconcile_DuplicateLastWithoutPositionRemoves(t *testing.T) {
	t.Parallel()

	s := &fakeSurface{}
	r := newTestReconciler(s)

	b, _ := r.Reconcile(nil, model.Snapshot{robot("1", 10, 20, "")})
	b, _ = r.Reconcile(b, model.Snapshot{robot("1", 11, 21, ""), unplaced("1")})

	assert.Empty(t, b)
	assert.Empty(t, s.live())
}

func TestReconcile_MissingIDSkipped(t *testing.T) {
	t.Parallel()

	s := &fakeSurface{}
	r := newTestReconciler(s)

	snap := model.Snapshot{
		robot("a", 1, 1, ""),
		{Position: &model.Position{Lat: 2, Lng: 2}},
		robot("c", 3, 3, ""),
	}
	b, ch := r.Reconcile(nil, snap)

	assert.Len(t, b, 2)
	assert.Contains(t, b, "a")
	assert.Contains(t, b, "c")
	assert.Equal(t, 1, ch.Skipped)
	assert.Equal(t, 2, ch.Created)
}

func TestReconcile_DestroyFailureSwallowed(t *testing.T) {
	t.Parallel()

	s := &fakeSurface{}
	r := newTestReconciler(s)

	b, _ := r.Reconcile(nil, model.Snapshot{robot("a", 1, 1, ""), robot("b", 2, 2, "")})
	s.created[0].failKill = true

	b, ch := r.Reconcile(b, model.Snapshot{robot("b", 2, 2, "")})
	assert.Equal(t, 1, ch.Removed)
	assert.NotContains(t, b, "a")
	assert.Contains(t, b, "b")
}

func TestReconcile_CreateFailureRetriedNextPass(t *testing.T) {
	t.Parallel()

	s := &fakeSurface{failNext: true}
	r := newTestReconciler(s)

	b, ch := r.Reconcile(nil, model.Snapshot{robot("a", 1, 1, ""), robot("b", 2, 2, "")})
	assert.Equal(t, 1, ch.Skipped)
	assert.NotContains(t, b, "a")
	assert.Contains(t, b, "b")

	b, ch = r.Reconcile(b, model.Snapshot{robot("a", 1, 1, ""), robot("b", 2, 2, "")})
	assert.Equal(t, 1, ch.Created)
	assert.Len(t, b, 2)
}

func TestReconcile_MinMoveMeters(t *testing.T) {
	t.Parallel()

	s := &fakeSurface{}
	r := New(s, Options{MinMoveMeters: 50, Logger: quietLogger()})

	b, _ := r.Reconcile(nil, model.Snapshot{robot("a", 30.0, 110.0, "")})

	// ~11m north: suppressed
	b, ch := r.Reconcile(b, model.Snapshot{robot("a", 30.0001, 110.0, "")})
	assert.Zero(t, ch.Moved)
	assert.Equal(t, 30.0, b["a"].Position.Lat)

	// ~1.1km north: moved
	b, ch = r.Reconcile(b, model.Snapshot{robot("a", 30.01, 110.0, "")})
	assert.Equal(t, 1, ch.Moved)
	assert.Equal(t, 30.01, b["a"].Position.Lat)
}

func TestReconcile_CustomContent(t *testing.T) {
	t.Parallel()

	s := &fakeSurface{}
	r := New(s, Options{
		Content: func(e model.Entity) string { return "robot " + e.ID },
		Logger:  quietLogger(),
	})

	r.Reconcile(nil, model.Snapshot{robot("a", 1, 1, "")})
	require.Len(t, s.created, 1)
	assert.Equal(t, "robot a", s.created[0].content)
}

func TestReconciler_Clear(t *testing.T) {
	t.Parallel()

	s := &fakeSurface{}
	r := newTestReconciler(s)

	b, _ := r.Reconcile(nil, model.Snapshot{robot("a", 1, 1, ""), robot("b", 2, 2, "")})
	r.Clear(b)

	assert.Empty(t, b)
	assert.Empty(t, s.live())
}

func TestChanges_String(t *testing.T) {
	t.Parallel()

	c := Changes{Created: 1, Removed: 2}
	assert.Equal(t, "created=1 moved=0 refreshed=0 removed=2 skipped=0", c.String())
	assert.False(t, c.Empty())
	assert.True(t, Changes{Skipped: 3}.Empty())
}

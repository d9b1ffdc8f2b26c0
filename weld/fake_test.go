package weld

import (
	"errors"
	"fmt"

	"github.com/milk9111/shipweld/tag"
)

type rod struct {
	A, B BodyID
	Len  float64
}

func (r rod) Bodies() (BodyID, BodyID) { return r.A, r.B }
func (r rod) Kind() string              { return "rod" }

type rodCodec struct{}

func (rodCodec) Encode(c Constraint) (tag.Compound, error) {
	r, ok := c.(rod)
	if !ok {
		return nil, fmt.Errorf("unsupported %T", c)
	}
	doc := tag.New()
	doc.Put("type", "rod")
	doc.Put("a", int64(r.A))
	doc.Put("b", int64(r.B))
	doc.Put("len", r.Len)
	return doc, nil
}

func (rodCodec) Decode(doc tag.Compound) (Constraint, error) {
	kind, _ := doc.String("type")
	if kind != "rod" {
		return nil, fmt.Errorf("unknown variant %q", kind)
	}
	a, okA := doc.Int("a")
	b, okB := doc.Int("b")
	if !okA || !okB {
		return nil, errors.New("missing bodies")
	}
	l, _ := doc.Float("len")
	return rod{A: BodyID(a), B: BodyID(b), Len: l}, nil
}

type fakeSolver struct {
	next   NativeID
	live   map[NativeID]Constraint
	reject func(Constraint) bool

	refuseRemove bool
	refuseUpdate bool
	created      []Constraint
}

func newFakeSolver() *fakeSolver {
	return &fakeSolver{next: 100, live: make(map[NativeID]Constraint)}
}

func (s *fakeSolver) CreateConstraint(c Constraint) (NativeID, bool) {
	if s.reject != nil && s.reject(c) {
		return 0, false
	}
	id := s.next
	s.next++
	s.live[id] = c
	s.created = append(s.created, c)
	return id, true
}

func (s *fakeSolver) RemoveConstraint(id NativeID) bool {
	if s.refuseRemove {
		return false
	}
	if _, ok := s.live[id]; !ok {
		return false
	}
	delete(s.live, id)
	return true
}

func (s *fakeSolver) UpdateConstraint(id NativeID, c Constraint) bool {
	if s.refuseUpdate {
		return false
	}
	if _, ok := s.live[id]; !ok {
		return false
	}
	s.live[id] = c
	return true
}

type fakeBody struct {
	id      BodyID
	static  bool
	history []bool
}

func (b *fakeBody) ID() BodyID     { return b.id }
func (b *fakeBody) IsStatic() bool { return b.static }
func (b *fakeBody) SetStatic(s bool) {
	b.static = s
	b.history = append(b.history, s)
}

// fakeWorld is a body registry with an event stream.
type fakeWorld struct {
	bodies  map[BodyID]*fakeBody
	loaded  map[int]func(Body)
	removed map[int]func(BodyID)
	nextSub int
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		bodies:  make(map[BodyID]*fakeBody),
		loaded:  make(map[int]func(Body)),
		removed: make(map[int]func(BodyID)),
	}
}

func (w *fakeWorld) Body(id BodyID) (Body, bool) {
	b, ok := w.bodies[id]
	if !ok {
		return nil, false
	}
	return b, true
}

func (w *fakeWorld) OnBodyLoaded(fn func(Body)) func() {
	w.nextSub++
	key := w.nextSub
	w.loaded[key] = fn
	return func() { delete(w.loaded, key) }
}

func (w *fakeWorld) OnBodyRemoved(fn func(BodyID)) func() {
	w.nextSub++
	key := w.nextSub
	w.removed[key] = fn
	return func() { delete(w.removed, key) }
}

// add registers a body without firing an event.
func (w *fakeWorld) add(id BodyID, static bool) *fakeBody {
	b := &fakeBody{id: id, static: static}
	w.bodies[id] = b
	return b
}

// load registers a body and fires the loaded event.
func (w *fakeWorld) load(id BodyID, static bool) *fakeBody {
	b := w.add(id, static)
	for _, fn := range w.loaded {
		fn(b)
	}
	return b
}

func (w *fakeWorld) remove(id BodyID) {
	delete(w.bodies, id)
	for _, fn := range w.removed {
		fn(id)
	}
}

type dirtyCounter struct {
	n int
}

func (d *dirtyCounter) SetDirty() { d.n++ }

type harness struct {
	solver *fakeSolver
	world  *fakeWorld
	dirty  *dirtyCounter
	m      *Manager
}

func newHarness() *harness {
	h := &harness{
		solver: newFakeSolver(),
		world:  newFakeWorld(),
		dirty:  &dirtyCounter{},
	}
	h.m = h.manager()
	return h
}

// manager builds a manager on the harness' world with a fresh solver, the
// way a reloaded world would.
func (h *harness) manager() *Manager {
	return NewManager(Options{
		Solver:   h.solver,
		Bodies:   h.world,
		Events:   h.world,
		Variants: rodCodec{},
		Dirty:    h.dirty,
	})
}

// Package physics hosts bodies and joints in a chipmunk space and exposes
// them to the weld package as its solver.
package physics

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jakecoffman/cp"
	"go.uber.org/zap"

	"github.com/milk9111/shipweld/weld"
)

var (
	ErrDuplicateBody = errors.New("physics: body already exists")
	ErrUnknownBody   = errors.New("physics: unknown body")
	ErrInvalidBody   = errors.New("physics: invalid body definition")
)

// Builder is a constraint that can realize itself between two chipmunk
// bodies.
type Builder interface {
	Build(a, b *cp.Body) *cp.Constraint
}

// Settings tune the chipmunk space.
type Settings struct {
	Iterations int
	Gravity    float64
}

// DefaultSettings mirrors the game's space setup.
func DefaultSettings() Settings {
	return Settings{Iterations: 20, Gravity: 0.5}
}

// BodyDef describes a box shaped body.
type BodyDef struct {
	ID     weld.BodyID
	X, Y   float64
	Width  float64
	Height float64
	Mass   float64
	Static bool
}

func (d BodyDef) validate() error {
	if d.ID == weld.Ground || !d.ID.Valid() {
		return fmt.Errorf("%w: id %s", ErrInvalidBody, d.ID)
	}
	if d.Width < 0 || d.Height < 0 || d.Mass < 0 {
		return fmt.Errorf("%w: body %s has negative size or mass", ErrInvalidBody, d.ID)
	}
	return nil
}

// Body is a loaded body. It implements weld.Body.
type Body struct {
	id    weld.BodyID
	body  *cp.Body
	shape *cp.Shape
}

func (b *Body) ID() weld.BodyID {
	return b.id
}

// IsStatic reports whether the body is frozen in place.
func (b *Body) IsStatic() bool {
	return b.body.GetType() == cp.BODY_STATIC
}

// SetStatic freezes or releases the body. A released body gets its mass back
// from its shape.
func (b *Body) SetStatic(static bool) {
	if static {
		b.body.SetType(cp.BODY_STATIC)
		return
	}
	b.body.SetType(cp.BODY_DYNAMIC)
}

// Position returns the body's center.
func (b *Body) Position() (x, y float64) {
	p := b.body.Position()
	return p.X, p.Y
}

type solverJoint struct {
	c        *cp.Constraint
	a, b     weld.BodyID
	attached bool
}

// Space owns the chipmunk space, the bodies in it and the joints between
// them. Joint handles are only meaningful for the lifetime of the Space.
type Space struct {
	space *cp.Space
	log   *zap.Logger

	bodies    map[weld.BodyID]*Body
	staged    map[weld.BodyID]BodyDef
	joints    map[weld.NativeID]*solverJoint
	nextJoint weld.NativeID

	events  EventQueue
	loaded  subscribers[weld.Body]
	removed subscribers[weld.BodyID]
}

// NewSpace creates an empty space.
func NewSpace(settings Settings, log *zap.Logger) *Space {
	if log == nil {
		log = zap.NewNop()
	}
	if settings.Iterations <= 0 {
		settings.Iterations = DefaultSettings().Iterations
	}
	space := cp.NewSpace()
	space.Iterations = uint(settings.Iterations)
	space.SetGravity(cp.Vector{X: 0, Y: settings.Gravity})

	return &Space{
		space:     space,
		log:       log,
		bodies:    make(map[weld.BodyID]*Body),
		staged:    make(map[weld.BodyID]BodyDef),
		joints:    make(map[weld.NativeID]*solverJoint),
		nextJoint: 1,
	}
}

// Stage registers a body that exists in the world but has not been loaded
// into the simulation yet.
func (s *Space) Stage(def BodyDef) error {
	if err := def.validate(); err != nil {
		return err
	}
	if _, ok := s.bodies[def.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateBody, def.ID)
	}
	if _, ok := s.staged[def.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateBody, def.ID)
	}
	s.staged[def.ID] = def
	return nil
}

// Load moves a staged body into the simulation and queues its loaded event.
func (s *Space) Load(id weld.BodyID) (*Body, error) {
	def, ok := s.staged[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not staged", ErrUnknownBody, id)
	}
	delete(s.staged, id)
	return s.add(def), nil
}

// AddBody adds a body to the simulation right away and queues its loaded
// event.
func (s *Space) AddBody(def BodyDef) (*Body, error) {
	if err := s.Stage(def); err != nil {
		return nil, err
	}
	return s.Load(def.ID)
}

func (s *Space) add(def BodyDef) *Body {
	mass := def.Mass
	if mass <= 0 {
		mass = 1
	}
	w, h := def.Width, def.Height
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}

	cpBody := cp.NewBody(mass, cp.MomentForBox(mass, w, h))
	cpBody.SetPosition(cp.Vector{X: def.X, Y: def.Y})
	cpBody.SetAngle(0)
	cpBody.SetAngularVelocity(0)
	shape := cp.NewBox(cpBody, w, h, 0)
	shape.SetMass(mass)
	shape.SetFriction(0.8)

	s.space.AddBody(cpBody)
	s.space.AddShape(shape)

	b := &Body{id: def.ID, body: cpBody, shape: shape}
	if def.Static {
		b.SetStatic(true)
	}
	s.bodies[def.ID] = b

	s.log.Debug("body loaded", zap.Stringer("body", def.ID), zap.Bool("static", def.Static))
	s.events.Push(Event{Kind: EventBodyLoaded, Body: def.ID, ref: b})
	return b
}

// RemoveBody deletes a body for good, loaded or staged. Joints attached to
// it are detached from the space but keep their handles until removed.
func (s *Space) RemoveBody(id weld.BodyID) bool {
	if _, ok := s.staged[id]; ok {
		delete(s.staged, id)
		s.events.Push(Event{Kind: EventBodyRemoved, Body: id})
		return true
	}
	b, ok := s.bodies[id]
	if !ok {
		return false
	}
	for _, j := range s.joints {
		if j.attached && (j.a == id || j.b == id) {
			s.space.RemoveConstraint(j.c)
			j.attached = false
		}
	}
	s.space.RemoveShape(b.shape)
	s.space.RemoveBody(b.body)
	delete(s.bodies, id)

	s.log.Debug("body removed", zap.Stringer("body", id))
	s.events.Push(Event{Kind: EventBodyRemoved, Body: id})
	return true
}

// Body implements weld.Bodies.
func (s *Space) Body(id weld.BodyID) (weld.Body, bool) {
	b, ok := s.bodies[id]
	if !ok {
		return nil, false
	}
	return b, true
}

// Lookup returns the concrete body.
func (s *Space) Lookup(id weld.BodyID) (*Body, bool) {
	b, ok := s.bodies[id]
	return b, ok
}

// Staged returns the ids of bodies waiting to be loaded, sorted.
func (s *Space) Staged() []weld.BodyID {
	out := make([]weld.BodyID, 0, len(s.staged))
	for id := range s.staged {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Space) cpBody(id weld.BodyID) (*cp.Body, bool) {
	if id == weld.Ground {
		return s.space.StaticBody, true
	}
	b, ok := s.bodies[id]
	if !ok {
		return nil, false
	}
	return b.body, true
}

func (s *Space) build(c weld.Constraint) (*cp.Constraint, weld.BodyID, weld.BodyID, bool) {
	builder, ok := c.(Builder)
	if !ok {
		s.log.Warn("constraint cannot be built", zap.String("kind", c.Kind()))
		return nil, 0, 0, false
	}
	a, b := c.Bodies()
	if a == b {
		return nil, 0, 0, false
	}
	bodyA, okA := s.cpBody(a)
	bodyB, okB := s.cpBody(b)
	if !okA || !okB {
		return nil, 0, 0, false
	}
	con := builder.Build(bodyA, bodyB)
	if con == nil {
		return nil, 0, 0, false
	}
	return con, a, b, true
}

// CreateConstraint implements weld.Solver. Both bodies must be loaded.
func (s *Space) CreateConstraint(c weld.Constraint) (weld.NativeID, bool) {
	con, a, b, ok := s.build(c)
	if !ok {
		return 0, false
	}
	s.space.AddConstraint(con)

	id := s.nextJoint
	s.nextJoint++
	s.joints[id] = &solverJoint{c: con, a: a, b: b, attached: true}
	return id, true
}

// RemoveConstraint implements weld.Solver.
func (s *Space) RemoveConstraint(id weld.NativeID) bool {
	j, ok := s.joints[id]
	if !ok {
		return false
	}
	if j.attached {
		s.space.RemoveConstraint(j.c)
	}
	delete(s.joints, id)
	return true
}

// UpdateConstraint implements weld.Solver. The joint is rebuilt under the
// same handle.
func (s *Space) UpdateConstraint(id weld.NativeID, c weld.Constraint) bool {
	j, ok := s.joints[id]
	if !ok {
		return false
	}
	con, a, b, ok := s.build(c)
	if !ok {
		return false
	}
	if j.attached {
		s.space.RemoveConstraint(j.c)
	}
	s.space.AddConstraint(con)
	j.c, j.a, j.b, j.attached = con, a, b, true
	return true
}

// Constraints returns the number of joints attached to the space.
func (s *Space) Constraints() int {
	n := 0
	for _, j := range s.joints {
		if j.attached {
			n++
		}
	}
	return n
}

// OnBodyLoaded implements weld.BodyEvents.
func (s *Space) OnBodyLoaded(fn func(weld.Body)) func() {
	return s.loaded.add(fn)
}

// OnBodyRemoved implements weld.BodyEvents.
func (s *Space) OnBodyRemoved(fn func(weld.BodyID)) func() {
	return s.removed.add(fn)
}

// Subscribers returns the number of live subscriptions.
func (s *Space) Subscribers() int {
	return s.loaded.len() + s.removed.len()
}

// Flush delivers queued body events in the order they happened.
func (s *Space) Flush() {
	for {
		events := s.events.Drain()
		if len(events) == 0 {
			return
		}
		for _, evt := range events {
			switch evt.Kind {
			case EventBodyLoaded:
				if evt.ref != nil {
					s.loaded.emit(evt.ref)
				}
			case EventBodyRemoved:
				s.removed.emit(evt.Body)
			}
		}
	}
}

// Step advances the simulation and then delivers queued events.
func (s *Space) Step(dt float64) {
	parked := s.parkRigid()
	s.space.Step(dt)
	for _, c := range parked {
		s.space.AddConstraint(c)
	}
	s.Flush()
}

// parkRigid takes joints whose ends are both static out of the space for one
// step. The solver cannot solve a joint with no mass on either side.
func (s *Space) parkRigid() []*cp.Constraint {
	var parked []*cp.Constraint
	for _, j := range s.joints {
		if !j.attached {
			continue
		}
		a, okA := s.cpBody(j.a)
		b, okB := s.cpBody(j.b)
		if !okA || !okB {
			continue
		}
		if a.GetType() == cp.BODY_STATIC && b.GetType() == cp.BODY_STATIC {
			s.space.RemoveConstraint(j.c)
			parked = append(parked, j.c)
		}
	}
	return parked
}

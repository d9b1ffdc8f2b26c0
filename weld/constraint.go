// Package weld keeps track of the constraints joining simulated bodies.
//
// Constraints are realized in an external solver which hands out its own
// handles. Those handles do not survive a save/load cycle, so every
// constraint also gets an internal ID that is persisted alongside it. When a
// world is loaded the persisted constraints are held back until every body
// they reference has been loaded, and the bodies involved are kept static in
// the meantime so they do not drift apart.
//
// Nothing in this package locks. All calls are expected to come from the
// simulation tick.
package weld

import "strconv"

// BodyID identifies a simulated body. It is assigned by the host and is
// stable across save/load.
type BodyID int64

// Ground is the immovable world frame. It is always considered loaded.
const Ground BodyID = 0

// Valid reports whether id can name a body.
func (id BodyID) Valid() bool {
	return id >= 0
}

func (id BodyID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Constraint is a joint between two bodies. The variant specific parameters
// are opaque here.
type Constraint interface {
	// Bodies returns the two endpoints. Body A owns the constraint.
	Bodies() (a, b BodyID)
	// Kind names the variant, e.g. "pin" or "spring".
	Kind() string
}

// Owner returns the body a constraint is filed under.
func Owner(c Constraint) BodyID {
	a, _ := c.Bodies()
	return a
}

// NativeID is the solver's handle for a realized constraint.
type NativeID int

// Solver realizes constraints.
type Solver interface {
	CreateConstraint(c Constraint) (NativeID, bool)
	RemoveConstraint(id NativeID) bool
	UpdateConstraint(id NativeID, c Constraint) bool
}

// Body is a loaded simulated body.
type Body interface {
	ID() BodyID
	IsStatic() bool
	SetStatic(static bool)
}

// Bodies looks up loaded bodies.
type Bodies interface {
	Body(id BodyID) (Body, bool)
}

// BodyEvents delivers body lifecycle events. Each subscription returns a
// cancel func that disposes it.
type BodyEvents interface {
	OnBodyLoaded(fn func(Body)) (cancel func())
	OnBodyRemoved(fn func(BodyID)) (cancel func())
}

// Dirtier is told when persisted state changed.
type Dirtier interface {
	SetDirty()
}

// DirtyFunc adapts a func to Dirtier.
type DirtyFunc func()

func (f DirtyFunc) SetDirty() {
	if f != nil {
		f()
	}
}

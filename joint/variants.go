package joint

import (
	"fmt"

	"github.com/jakecoffman/cp"

	"github.com/milk9111/shipweld/tag"
	"github.com/milk9111/shipweld/weld"
)

// Pin keeps the anchors at the distance they had when the joint was made.
type Pin struct {
	A, B             weld.BodyID
	AnchorA, AnchorB cp.Vector
}

func (j Pin) Bodies() (weld.BodyID, weld.BodyID) { return j.A, j.B }
func (j Pin) Kind() string                        { return KindPin }

func (j Pin) Build(a, b *cp.Body) *cp.Constraint {
	return cp.NewPinJoint(a, b, j.AnchorA, j.AnchorB)
}

func (j Pin) encode(doc tag.Compound) {
	doc.PutVec("anchorA", j.AnchorA.X, j.AnchorA.Y)
	doc.PutVec("anchorB", j.AnchorB.X, j.AnchorB.Y)
}

func parsePin(a, b weld.BodyID, r *reader) (Joint, error) {
	return Pin{A: a, B: b, AnchorA: r.vec("anchorA"), AnchorB: r.vec("anchorB")}, nil
}

// Slide is a rope: the anchors stay between Min and Max apart.
type Slide struct {
	A, B             weld.BodyID
	AnchorA, AnchorB cp.Vector
	Min, Max         float64
}

func (j Slide) Bodies() (weld.BodyID, weld.BodyID) { return j.A, j.B }
func (j Slide) Kind() string                        { return KindSlide }

func (j Slide) Build(a, b *cp.Body) *cp.Constraint {
	return cp.NewSlideJoint(a, b, j.AnchorA, j.AnchorB, j.Min, j.Max)
}

func (j Slide) encode(doc tag.Compound) {
	doc.PutVec("anchorA", j.AnchorA.X, j.AnchorA.Y)
	doc.PutVec("anchorB", j.AnchorB.X, j.AnchorB.Y)
	doc.Put("min", j.Min)
	doc.Put("max", j.Max)
}

func parseSlide(a, b weld.BodyID, r *reader) (Joint, error) {
	j := Slide{A: a, B: b, AnchorA: r.vec("anchorA"), AnchorB: r.vec("anchorB")}
	j.Min = r.float("min", 0)
	j.Max = r.float("max", j.Min)
	if j.Min < 0 || j.Max < j.Min {
		return nil, fmt.Errorf("%w: slide range [%g, %g]", ErrInvalidParams, j.Min, j.Max)
	}
	return j, nil
}

// Pivot lets both bodies rotate around a shared point given in world
// coordinates.
type Pivot struct {
	A, B  weld.BodyID
	Point cp.Vector
}

func (j Pivot) Bodies() (weld.BodyID, weld.BodyID) { return j.A, j.B }
func (j Pivot) Kind() string                        { return KindPivot }

func (j Pivot) Build(a, b *cp.Body) *cp.Constraint {
	return cp.NewPivotJoint(a, b, j.Point)
}

func (j Pivot) encode(doc tag.Compound) {
	doc.PutVec("point", j.Point.X, j.Point.Y)
}

func parsePivot(a, b weld.BodyID, r *reader) (Joint, error) {
	return Pivot{A: a, B: b, Point: r.vec("point")}, nil
}

// Spring is a damped spring between two anchors.
type Spring struct {
	A, B             weld.BodyID
	AnchorA, AnchorB cp.Vector
	RestLength       float64
	Stiffness        float64
	Damping          float64
}

func (j Spring) Bodies() (weld.BodyID, weld.BodyID) { return j.A, j.B }
func (j Spring) Kind() string                        { return KindSpring }

func (j Spring) Build(a, b *cp.Body) *cp.Constraint {
	return cp.NewDampedSpring(a, b, j.AnchorA, j.AnchorB, j.RestLength, j.Stiffness, j.Damping)
}

func (j Spring) encode(doc tag.Compound) {
	doc.PutVec("anchorA", j.AnchorA.X, j.AnchorA.Y)
	doc.PutVec("anchorB", j.AnchorB.X, j.AnchorB.Y)
	doc.Put("restLength", j.RestLength)
	doc.Put("stiffness", j.Stiffness)
	doc.Put("damping", j.Damping)
}

func parseSpring(a, b weld.BodyID, r *reader) (Joint, error) {
	j := Spring{
		A:          a,
		B:          b,
		AnchorA:    r.vec("anchorA"),
		AnchorB:    r.vec("anchorB"),
		RestLength: r.float("restLength", 0),
		Stiffness:  r.float("stiffness", 100),
		Damping:    r.float("damping", 10),
	}
	if j.RestLength < 0 || j.Stiffness < 0 || j.Damping < 0 {
		return nil, fmt.Errorf("%w: negative spring parameter", ErrInvalidParams)
	}
	return j, nil
}

// RotaryLimit bounds the relative angle of the two bodies, in radians.
type RotaryLimit struct {
	A, B     weld.BodyID
	Min, Max float64
}

func (j RotaryLimit) Bodies() (weld.BodyID, weld.BodyID) { return j.A, j.B }
func (j RotaryLimit) Kind() string                        { return KindRotaryLimit }

func (j RotaryLimit) Build(a, b *cp.Body) *cp.Constraint {
	return cp.NewRotaryLimitJoint(a, b, j.Min, j.Max)
}

func (j RotaryLimit) encode(doc tag.Compound) {
	doc.Put("min", j.Min)
	doc.Put("max", j.Max)
}

func parseRotaryLimit(a, b weld.BodyID, r *reader) (Joint, error) {
	j := RotaryLimit{A: a, B: b, Min: r.float("min", 0)}
	j.Max = r.float("max", j.Min)
	if j.Max < j.Min {
		return nil, fmt.Errorf("%w: rotary range [%g, %g]", ErrInvalidParams, j.Min, j.Max)
	}
	return j, nil
}

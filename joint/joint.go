// Package joint provides the constraint variants used between bodies and
// their chipmunk realization.
package joint

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jakecoffman/cp"

	"github.com/milk9111/shipweld/tag"
	"github.com/milk9111/shipweld/weld"
)

var (
	ErrUnknownKind   = errors.New("joint: unknown kind")
	ErrInvalidParams = errors.New("joint: invalid parameters")
)

const (
	KindPin         = "pin"
	KindSlide       = "slide"
	KindPivot       = "pivot"
	KindSpring      = "spring"
	KindRotaryLimit = "rotary_limit"
)

const (
	typeKey  = "type"
	bodyAKey = "bodyA"
	bodyBKey = "bodyB"
)

// Joint is a constraint variant that knows how to build itself in a
// chipmunk space.
type Joint interface {
	weld.Constraint
	Build(a, b *cp.Body) *cp.Constraint
	encode(doc tag.Compound)
}

type parser func(a, b weld.BodyID, r *reader) (Joint, error)

var parsers = map[string]parser{
	KindPin:         parsePin,
	KindSlide:       parseSlide,
	KindPivot:       parsePivot,
	KindSpring:      parseSpring,
	KindRotaryLimit: parseRotaryLimit,
}

// Kinds returns the registered variant names.
func Kinds() []string {
	out := make([]string, 0, len(parsers))
	for k := range parsers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New builds a joint of the given kind from a parameter document.
func New(kind string, a, b weld.BodyID, params tag.Compound) (Joint, error) {
	parse, ok := parsers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if !a.Valid() || !b.Valid() {
		return nil, fmt.Errorf("%w: bodies %s and %s", ErrInvalidParams, a, b)
	}
	if a == b {
		return nil, fmt.Errorf("%w: body %s joined to itself", ErrInvalidParams, a)
	}
	r := &reader{doc: params}
	j, err := parse(a, b, r)
	if err != nil {
		return nil, err
	}
	if r.err != nil {
		return nil, r.err
	}
	return j, nil
}

// Codec persists joints. It implements weld.VariantCodec.
type Codec struct{}

func (Codec) Encode(c weld.Constraint) (tag.Compound, error) {
	j, ok := c.(Joint)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, c)
	}
	a, b := j.Bodies()
	doc := tag.New()
	doc.Put(typeKey, j.Kind())
	doc.Put(bodyAKey, int64(a))
	doc.Put(bodyBKey, int64(b))
	j.encode(doc)
	return doc, nil
}

func (Codec) Decode(doc tag.Compound) (weld.Constraint, error) {
	kind, ok := doc.String(typeKey)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrUnknownKind, typeKey)
	}
	a, okA := doc.Int(bodyAKey)
	b, okB := doc.Int(bodyBKey)
	if !okA || !okB {
		return nil, fmt.Errorf("%w: missing bodies", ErrInvalidParams)
	}
	return New(kind, weld.BodyID(a), weld.BodyID(b), doc)
}

// reader pulls optional fields out of a document, remembering the first
// type error.
type reader struct {
	doc tag.Compound
	err error
}

func (r *reader) float(key string, def float64) float64 {
	if r.err != nil || !r.doc.Has(key) {
		return def
	}
	v, ok := r.doc.Float(key)
	if !ok {
		r.err = fmt.Errorf("%w: %s is not a number", ErrInvalidParams, key)
		return def
	}
	return v
}

func (r *reader) vec(key string) cp.Vector {
	if r.err != nil || !r.doc.Has(key) {
		return cp.Vector{}
	}
	x, y, ok := r.doc.Vec(key)
	if !ok {
		r.err = fmt.Errorf("%w: %s is not a vector", ErrInvalidParams, key)
		return cp.Vector{}
	}
	return cp.Vector{X: x, Y: y}
}

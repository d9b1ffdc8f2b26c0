// Package tag holds the structured documents that world data is persisted as.
//
// A Compound is a string-keyed tree whose leaves are the scalar types a YAML
// or JSON decoder produces. Accessors tolerate the numeric widening those
// decoders apply, so a document read back from disk answers the same
// questions as the one that was written.
package tag

import (
	"math"
	"sort"
)

// Compound is a string-keyed document node.
type Compound map[string]any

// New returns an empty compound.
func New() Compound {
	return Compound{}
}

// AsCompound converts a decoded value into a Compound.
func AsCompound(v any) (Compound, bool) {
	switch m := v.(type) {
	case Compound:
		return m, m != nil
	case map[string]any:
		return Compound(m), m != nil
	case map[any]any:
		out := make(Compound, len(m))
		for k, val := range m {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[key] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// Has reports whether key is present.
func (c Compound) Has(key string) bool {
	if c == nil {
		return false
	}
	_, ok := c[key]
	return ok
}

// Put stores v under key.
func (c Compound) Put(key string, v any) {
	if c == nil {
		return
	}
	c[key] = v
}

// Keys returns the keys in sorted order.
func (c Compound) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Int returns an integral value stored under key.
func (c Compound) Int(key string) (int64, bool) {
	if c == nil {
		return 0, false
	}
	return toInt(c[key])
}

// Float returns a numeric value stored under key.
func (c Compound) Float(key string) (float64, bool) {
	if c == nil {
		return 0, false
	}
	return toFloat(c[key])
}

// String returns a string stored under key.
func (c Compound) String(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	s, ok := c[key].(string)
	return s, ok
}

// Compound returns a nested compound stored under key.
func (c Compound) Compound(key string) (Compound, bool) {
	if c == nil {
		return nil, false
	}
	return AsCompound(c[key])
}

// List returns a list stored under key.
func (c Compound) List(key string) ([]any, bool) {
	if c == nil {
		return nil, false
	}
	switch l := c[key].(type) {
	case []any:
		return l, true
	case []Compound:
		out := make([]any, len(l))
		for i, v := range l {
			out[i] = v
		}
		return out, true
	default:
		return nil, false
	}
}

// PutVec stores a 2D vector as a two element list.
func (c Compound) PutVec(key string, x, y float64) {
	c.Put(key, []any{x, y})
}

// Vec returns a 2D vector stored with PutVec.
func (c Compound) Vec(key string) (x, y float64, ok bool) {
	l, ok := c.List(key)
	if !ok || len(l) != 2 {
		return 0, 0, false
	}
	x, okX := toFloat(l[0])
	y, okY := toFloat(l[1])
	if !okX || !okY {
		return 0, 0, false
	}
	return x, y, true
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, false
		}
		if n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		i, ok := toInt(v)
		return float64(i), ok
	}
}

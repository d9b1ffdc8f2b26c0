package weld

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/milk9111/shipweld/tag"
)

const (
	// RootKey holds the per-body constraint lists.
	RootKey = "constraints_by_body"
	// LegacyRootKey is the layout older saves used: per-body compounds keyed
	// by list index.
	LegacyRootKey = "vsource_ships_constraints"
	// IDKey holds the internal ID inside a constraint document.
	IDKey = "managedID"
	// NextIDKey holds the registry counter so retired IDs stay retired.
	NextIDKey = "nextManagedID"
)

// VariantCodec encodes the variant specific part of a constraint.
type VariantCodec interface {
	Encode(c Constraint) (tag.Compound, error)
	Decode(doc tag.Compound) (Constraint, error)
}

// Pending is a constraint waiting to be realized, with the ID it should get.
type Pending struct {
	Constraint Constraint
	Requested  RequestedID
}

// Codec turns constraint sets into documents and back.
type Codec struct {
	variants VariantCodec
	log      *zap.Logger
}

func NewCodec(variants VariantCodec, log *zap.Logger) *Codec {
	if log == nil {
		log = zap.NewNop()
	}
	return &Codec{variants: variants, log: log}
}

// Encode writes one list per owning body. Constraints the variant codec
// cannot encode are left out.
func (c *Codec) Encode(byBody map[BodyID][]Pending) tag.Compound {
	bodies := make([]BodyID, 0, len(byBody))
	for body := range byBody {
		bodies = append(bodies, body)
	}
	sort.Slice(bodies, func(i, j int) bool { return bodies[i] < bodies[j] })

	root := tag.New()
	for _, body := range bodies {
		list := make([]any, 0, len(byBody[body]))
		for _, p := range byBody[body] {
			doc, err := c.variants.Encode(p.Constraint)
			if err != nil {
				c.log.Warn("skipping unencodable constraint",
					zap.Stringer("body", body),
					zap.Stringer("id", p.Requested),
					zap.Error(err))
				continue
			}
			if id, ok := p.Requested.Value(); ok {
				doc.Put(IDKey, int64(id))
			}
			list = append(list, doc)
		}
		if len(list) == 0 {
			continue
		}
		root.Put(body.String(), list)
	}

	out := tag.New()
	out.Put(RootKey, root)
	return out
}

// Decode reads the constraint lists back. Records that fail to decode are
// logged and skipped; the rest of the document still loads.
func (c *Codec) Decode(doc tag.Compound) map[BodyID][]Pending {
	out := make(map[BodyID][]Pending)
	if root, ok := doc.Compound(RootKey); ok {
		for _, key := range root.Keys() {
			body, ok := c.parseBody(key)
			if !ok {
				continue
			}
			list, ok := root.List(key)
			if !ok {
				c.log.Warn("constraint list is not a list", zap.String("body", key))
				continue
			}
			c.decodeList(out, body, list)
		}
		return out
	}

	if legacy, ok := doc.Compound(LegacyRootKey); ok {
		for _, key := range legacy.Keys() {
			body, ok := c.parseBody(key)
			if !ok {
				continue
			}
			byIndex, ok := legacy.Compound(key)
			if !ok {
				c.log.Warn("legacy constraint set is not a compound", zap.String("body", key))
				continue
			}
			c.decodeList(out, body, legacyOrder(byIndex))
		}
	}
	return out
}

func (c *Codec) decodeList(out map[BodyID][]Pending, body BodyID, list []any) {
	for i, item := range list {
		p, err := c.decodeOne(item)
		if err != nil {
			c.log.Warn("skipping malformed constraint",
				zap.Stringer("body", body),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		out[body] = append(out[body], p)
	}
}

func (c *Codec) decodeOne(item any) (Pending, error) {
	doc, ok := tag.AsCompound(item)
	if !ok {
		return Pending{}, fmt.Errorf("not a compound: %w", ErrMalformedRecord)
	}
	constraint, err := c.variants.Decode(doc)
	if err != nil {
		return Pending{}, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	if constraint == nil {
		return Pending{}, fmt.Errorf("variant decoded to nil: %w", ErrMalformedRecord)
	}

	req := Auto()
	if doc.Has(IDKey) {
		raw, ok := doc.Int(IDKey)
		switch {
		case !ok || raw > math.MaxUint32:
			return Pending{}, fmt.Errorf("bad %s %v: %w", IDKey, doc[IDKey], ErrMalformedRecord)
		case raw >= 0:
			req = Explicit(ID(raw))
		}
		// negative IDs were the old "allocate one for me" marker
	}
	return Pending{Constraint: constraint, Requested: req}, nil
}

func (c *Codec) parseBody(key string) (BodyID, bool) {
	n, err := strconv.ParseInt(key, 10, 64)
	if err != nil || !BodyID(n).Valid() {
		c.log.Warn("skipping constraints of unparsable body", zap.String("body", key))
		return 0, false
	}
	return BodyID(n), true
}

// legacyOrder flattens an index-keyed compound into a list ordered by index.
func legacyOrder(byIndex tag.Compound) []any {
	type entry struct {
		index int
		key   string
	}
	entries := make([]entry, 0, len(byIndex))
	for key := range byIndex {
		n, err := strconv.Atoi(key)
		if err != nil {
			n = math.MaxInt
		}
		entries = append(entries, entry{index: n, key: key})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].index != entries[j].index {
			return entries[i].index < entries[j].index
		}
		return entries[i].key < entries[j].key
	})

	out := make([]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, byIndex[e.key])
	}
	return out
}

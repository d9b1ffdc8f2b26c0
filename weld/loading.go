package weld

import (
	"sort"
	"strings"

	"go.uber.org/zap"
)

// materializer realizes a pending constraint under its persisted ID. Only the
// Manager can produce one.
type materializer func(c Constraint, req RequestedID) (ID, error)

// loadingGroup collects pending constraints that wait on the same set of
// bodies.
type loadingGroup struct {
	key      string
	records  []Pending
	needed   map[BodyID]struct{}
	watching []BodyID // bodies the group is registered under
	held     []BodyID // bodies frozen on behalf of this group
	done     bool
}

func (g *loadingGroup) checkOff(id BodyID) bool {
	if g.done {
		return false
	}
	if _, ok := g.needed[id]; !ok {
		return false
	}
	delete(g.needed, id)
	g.held = append(g.held, id)
	return true
}

func (g *loadingGroup) ready() bool {
	return !g.done && len(g.needed) == 0
}

// hold is the saved static flag of a frozen body and the number of groups
// still holding it.
type hold struct {
	body      Body
	wasStatic bool
	refs      int
}

// Coordinator defers persisted constraints until their bodies are loaded.
//
// Pending groups wait for body load events. A body is frozen the first time
// a group checks it off and stays frozen until every group holding it has
// resolved; only then is its prior static flag put back.
//
// A group waiting on a body that never loads stays pending for the life of
// the world unless the host reports the body as removed, which evicts it.
type Coordinator struct {
	bodies Bodies
	ids    *Registry
	create materializer
	log    *zap.Logger

	groups  map[string]*loadingGroup
	byBody  map[BodyID][]*loadingGroup
	active  []*loadingGroup
	holds   map[BodyID]*hold
	cancels []func()
}

func newCoordinator(bodies Bodies, events BodyEvents, ids *Registry, create materializer, log *zap.Logger) *Coordinator {
	c := &Coordinator{
		bodies: bodies,
		ids:    ids,
		create: create,
		log:    log,
		groups: make(map[string]*loadingGroup),
		byBody: make(map[BodyID][]*loadingGroup),
		holds:  make(map[BodyID]*hold),
	}
	if events != nil {
		c.cancels = append(c.cancels,
			events.OnBodyLoaded(c.BodyLoaded),
			events.OnBodyRemoved(c.BodyRemoved),
		)
	}
	return c
}

// Enqueue groups raw records by the bodies they still need. Records whose
// bodies are all present are realized right away.
func (c *Coordinator) Enqueue(raw map[BodyID][]Pending) {
	owners := make([]BodyID, 0, len(raw))
	for body := range raw {
		owners = append(owners, body)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })

	var immediate []Pending
	for _, owner := range owners {
		for _, p := range raw[owner] {
			if id, ok := p.Requested.Value(); ok {
				c.ids.Reserve(id)
			}
			needed := c.missing(p.Constraint)
			if len(needed) == 0 {
				immediate = append(immediate, p)
				continue
			}
			c.join(needed, p)
		}
	}

	for _, p := range immediate {
		c.realize(p)
	}
}

// BodyLoaded checks the body off every group waiting for it, then realizes
// the groups that are no longer waiting on anything.
func (c *Coordinator) BodyLoaded(b Body) {
	if b == nil {
		return
	}
	groups := c.byBody[b.ID()]
	if len(groups) == 0 {
		return
	}

	var ready []*loadingGroup
	for _, g := range groups {
		if !g.checkOff(b.ID()) {
			continue
		}
		c.freeze(b)
		if g.ready() {
			ready = append(ready, g)
		}
	}

	for _, g := range ready {
		c.materialize(g)
	}
}

// BodyRemoved evicts every group that references a body which will never
// load again.
func (c *Coordinator) BodyRemoved(id BodyID) {
	groups := append([]*loadingGroup(nil), c.byBody[id]...)
	for _, g := range groups {
		if g.done {
			continue
		}
		c.log.Warn("evicting loading group of removed body",
			zap.Stringer("body", id),
			zap.String("group", g.key),
			zap.Int("constraints", len(g.records)))
		c.resolve(g)
	}
}

// Pending returns the records that are still waiting, in the order their
// groups were formed.
func (c *Coordinator) Pending() []Pending {
	var out []Pending
	for _, g := range c.active {
		out = append(out, g.records...)
	}
	return out
}

// Groups returns the number of unresolved groups.
func (c *Coordinator) Groups() int {
	return len(c.active)
}

// Waiting returns the bodies unresolved groups still need, sorted.
func (c *Coordinator) Waiting() []BodyID {
	seen := make(map[BodyID]struct{})
	for _, g := range c.active {
		for id := range g.needed {
			seen[id] = struct{}{}
		}
	}
	out := make([]BodyID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Close disposes the event subscriptions. Pending groups are abandoned.
func (c *Coordinator) Close() {
	for _, cancel := range c.cancels {
		if cancel != nil {
			cancel()
		}
	}
	c.cancels = nil
}

func (c *Coordinator) missing(con Constraint) []BodyID {
	a, b := con.Bodies()
	var out []BodyID
	for _, id := range []BodyID{a, b} {
		if id == Ground {
			continue
		}
		if len(out) == 1 && out[0] == id {
			continue
		}
		if c.bodies != nil {
			if _, ok := c.bodies.Body(id); ok {
				continue
			}
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c *Coordinator) join(needed []BodyID, p Pending) {
	key := groupKey(needed)
	g, ok := c.groups[key]
	if !ok {
		g = &loadingGroup{
			key:      key,
			needed:   make(map[BodyID]struct{}, len(needed)),
			watching: needed,
		}
		for _, id := range needed {
			g.needed[id] = struct{}{}
			c.byBody[id] = append(c.byBody[id], g)
		}
		c.groups[key] = g
		c.active = append(c.active, g)
	}
	g.records = append(g.records, p)
}

func (c *Coordinator) freeze(b Body) {
	h, ok := c.holds[b.ID()]
	if !ok {
		h = &hold{body: b, wasStatic: b.IsStatic()}
		c.holds[b.ID()] = h
		b.SetStatic(true)
	}
	h.refs++
}

func (c *Coordinator) release(id BodyID) {
	h, ok := c.holds[id]
	if !ok {
		return
	}
	h.refs--
	if h.refs > 0 {
		return
	}
	h.body.SetStatic(h.wasStatic)
	delete(c.holds, id)
}

func (c *Coordinator) materialize(g *loadingGroup) {
	c.log.Debug("loading group complete",
		zap.String("group", g.key),
		zap.Int("constraints", len(g.records)))
	for _, p := range g.records {
		c.realize(p)
	}
	c.resolve(g)
}

func (c *Coordinator) realize(p Pending) {
	if _, err := c.create(p.Constraint, p.Requested); err != nil {
		c.log.Warn("failed to realize loaded constraint",
			zap.String("kind", p.Constraint.Kind()),
			zap.Stringer("id", p.Requested),
			zap.Error(err))
	}
}

// resolve releases the group's bodies and unregisters it. The group keeps
// no references afterwards.
func (c *Coordinator) resolve(g *loadingGroup) {
	for _, id := range g.held {
		c.release(id)
	}
	for _, id := range g.watching {
		c.byBody[id] = without(c.byBody[id], g)
		if len(c.byBody[id]) == 0 {
			delete(c.byBody, id)
		}
	}
	c.active = without(c.active, g)
	delete(c.groups, g.key)

	g.done = true
	g.records = nil
	g.needed = nil
	g.held = nil
	g.watching = nil
}

func without(groups []*loadingGroup, g *loadingGroup) []*loadingGroup {
	for i, other := range groups {
		if other == g {
			return append(groups[:i:i], groups[i+1:]...)
		}
	}
	return groups
}

func groupKey(ids []BodyID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}

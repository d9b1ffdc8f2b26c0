package weld

import (
	"math"

	"go.uber.org/zap"

	"github.com/milk9111/shipweld/tag"
)

// ParticipantKey is the key the manager's document is saved under.
const ParticipantKey = "welds"

// Options wires a Manager to its world.
type Options struct {
	Solver   Solver
	Bodies   Bodies
	Events   BodyEvents
	Variants VariantCodec
	Dirty    Dirtier
	Logger   *zap.Logger
}

// Manager is the entry point for one world's constraints. It owns the
// store, the ID registry and the loader that replays saved constraints.
type Manager struct {
	ids    *Registry
	store  *Store
	codec  *Codec
	loader *Coordinator
	log    *zap.Logger
}

func NewManager(opts Options) *Manager {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	ids := NewRegistry()
	m := &Manager{
		ids:   ids,
		store: NewStore(opts.Solver, ids, opts.Dirty),
		codec: NewCodec(opts.Variants, log),
		log:   log,
	}
	m.loader = newCoordinator(opts.Bodies, opts.Events, ids, m.createWithExplicitID, log)
	return m
}

// Create realizes c and returns its new ID.
func (m *Manager) Create(c Constraint) (ID, error) {
	id, err := m.store.Create(c)
	if err != nil {
		m.log.Debug("create constraint failed", zap.Error(err))
		return 0, err
	}
	return id, nil
}

// Remove removes the constraint with the given ID.
func (m *Manager) Remove(id ID) error {
	if err := m.store.Remove(id); err != nil {
		m.log.Debug("remove constraint failed", zap.Stringer("id", id), zap.Error(err))
		return err
	}
	return nil
}

// Update replaces the parameters of the constraint with the given ID.
func (m *Manager) Update(id ID, c Constraint) error {
	if err := m.store.Update(id, c); err != nil {
		m.log.Debug("update constraint failed", zap.Stringer("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ListByBody returns the IDs of the constraints owned by body.
func (m *Manager) ListByBody(body BodyID) []ID {
	return m.store.ListByBody(body)
}

// Get returns the constraint with the given ID.
func (m *Manager) Get(id ID) (Constraint, bool) {
	return m.store.Get(id)
}

// Len returns the number of realized constraints.
func (m *Manager) Len() int {
	return m.store.Len()
}

// Pending returns the loaded constraints still waiting for their bodies.
func (m *Manager) Pending() []Pending {
	return m.loader.Pending()
}

// Waiting returns the bodies pending constraints are waiting for.
func (m *Manager) Waiting() []BodyID {
	return m.loader.Waiting()
}

// Key implements savedata.Participant.
func (m *Manager) Key() string {
	return ParticipantKey
}

// Save encodes the realized constraints together with the ones still
// waiting to load, so saving mid-load loses nothing.
func (m *Manager) Save() tag.Compound {
	byBody := make(map[BodyID][]Pending)
	for body, recs := range m.store.Snapshot() {
		for _, rec := range recs {
			byBody[body] = append(byBody[body], Pending{Constraint: rec.Constraint, Requested: Explicit(rec.ID)})
		}
	}
	for _, p := range m.loader.Pending() {
		owner := Owner(p.Constraint)
		byBody[owner] = append(byBody[owner], p)
	}
	doc := m.codec.Encode(byBody)
	doc.Put(NextIDKey, int64(m.ids.Counter()))
	return doc
}

// Load replays a saved document. Constraints whose bodies are not loaded yet
// wait for them.
func (m *Manager) Load(doc tag.Compound) error {
	if next, ok := doc.Int(NextIDKey); ok && next > 0 && next <= math.MaxUint32 {
		m.ids.Reserve(ID(next - 1))
	}
	raw := m.codec.Decode(doc)
	total := 0
	for _, recs := range raw {
		total += len(recs)
	}
	m.loader.Enqueue(raw)
	m.log.Info("loaded constraints",
		zap.Int("decoded", total),
		zap.Int("realized", m.store.Len()),
		zap.Int("pending_groups", m.loader.Groups()))
	return nil
}

// Close disposes the loader's event subscriptions.
func (m *Manager) Close() {
	m.loader.Close()
}

// createWithExplicitID is only reachable through the loader.
func (m *Manager) createWithExplicitID(c Constraint, req RequestedID) (ID, error) {
	return m.store.create(c, req)
}

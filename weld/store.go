package weld

import (
	"fmt"
	"sort"
)

// Record is a realized constraint and its internal ID.
type Record struct {
	Constraint Constraint
	ID         ID
}

// Store is the authoritative set of realized constraints, filed under the
// body that owns them (body A).
type Store struct {
	solver Solver
	ids    *Registry
	dirty  Dirtier

	byBody map[BodyID][]*Record
	byID   map[ID]*Record
}

// NewStore creates a store that realizes constraints through solver.
func NewStore(solver Solver, ids *Registry, dirty Dirtier) *Store {
	if ids == nil {
		ids = NewRegistry()
	}
	return &Store{
		solver: solver,
		ids:    ids,
		dirty:  dirty,
		byBody: make(map[BodyID][]*Record),
		byID:   make(map[ID]*Record),
	}
}

// Create realizes c and files it under a fresh ID.
func (s *Store) Create(c Constraint) (ID, error) {
	return s.create(c, Auto())
}

func (s *Store) create(c Constraint, req RequestedID) (ID, error) {
	if c == nil {
		return 0, ErrNilConstraint
	}
	if id, ok := req.Value(); ok && s.ids.Has(id) {
		return 0, fmt.Errorf("create %s: %w", id, ErrIDInUse)
	}

	native, ok := s.solver.CreateConstraint(c)
	if !ok {
		return 0, fmt.Errorf("create %s: %w", c.Kind(), ErrRejectedBySolver)
	}
	id, err := s.ids.AllocateWithID(native, req)
	if err != nil {
		s.solver.RemoveConstraint(native)
		return 0, err
	}

	rec := &Record{Constraint: c, ID: id}
	owner := Owner(c)
	s.byBody[owner] = append(s.byBody[owner], rec)
	s.byID[id] = rec

	s.markDirty()
	return id, nil
}

// Remove removes the constraint from the solver and the store.
func (s *Store) Remove(id ID) error {
	rec, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("remove %s: %w", id, ErrUnknownID)
	}
	native, ok := s.ids.Resolve(id)
	if !ok {
		return fmt.Errorf("remove %s: %w", id, ErrUnknownID)
	}
	if !s.solver.RemoveConstraint(native) {
		return fmt.Errorf("remove %s: %w", id, ErrRejectedBySolver)
	}

	s.unfile(rec)
	s.markDirty()
	return nil
}

// Update swaps the parameters of a realized constraint. The owner must stay
// the same.
func (s *Store) Update(id ID, c Constraint) error {
	if c == nil {
		return ErrNilConstraint
	}
	rec, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("update %s: %w", id, ErrUnknownID)
	}
	native, ok := s.ids.Resolve(id)
	if !ok {
		return fmt.Errorf("update %s: %w", id, ErrUnknownID)
	}
	if Owner(rec.Constraint) != Owner(c) {
		return fmt.Errorf("update %s: body %s to %s: %w", id, Owner(rec.Constraint), Owner(c), ErrOwnerChanged)
	}
	if !s.solver.UpdateConstraint(native, c) {
		return fmt.Errorf("update %s: %w", id, ErrRejectedBySolver)
	}

	rec.Constraint = c
	s.markDirty()
	return nil
}

// ListByBody returns the IDs of the constraints owned by body, in creation
// order.
func (s *Store) ListByBody(body BodyID) []ID {
	recs := s.byBody[body]
	out := make([]ID, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.ID)
	}
	return out
}

// Get returns the constraint stored under id.
func (s *Store) Get(id ID) (Constraint, bool) {
	rec, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return rec.Constraint, true
}

// Owners returns every body that owns at least one constraint, sorted.
func (s *Store) Owners() []BodyID {
	out := make([]BodyID, 0, len(s.byBody))
	for body := range s.byBody {
		out = append(out, body)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Snapshot copies the per-body record lists.
func (s *Store) Snapshot() map[BodyID][]Record {
	out := make(map[BodyID][]Record, len(s.byBody))
	for body, recs := range s.byBody {
		cp := make([]Record, len(recs))
		for i, rec := range recs {
			cp[i] = *rec
		}
		out[body] = cp
	}
	return out
}

// Len returns the number of realized constraints.
func (s *Store) Len() int {
	return len(s.byID)
}

func (s *Store) unfile(rec *Record) {
	owner := Owner(rec.Constraint)
	recs := s.byBody[owner]
	for i, r := range recs {
		if r == rec {
			recs = append(recs[:i], recs[i+1:]...)
			break
		}
	}
	if len(recs) == 0 {
		delete(s.byBody, owner)
	} else {
		s.byBody[owner] = recs
	}
	delete(s.byID, rec.ID)
	s.ids.Forget(rec.ID)
}

func (s *Store) markDirty() {
	if s.dirty != nil {
		s.dirty.SetDirty()
	}
}

package weld

import (
	"fmt"
	"strconv"
)

// ID is the internal, persisted handle of a constraint. IDs are minted in
// increasing order and never reused by a Registry.
type ID uint32

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// RequestedID is either Auto, asking for a fresh ID, or an explicit ID that
// was recorded when the constraint was saved.
type RequestedID struct {
	id       ID
	explicit bool
}

// Auto requests a freshly minted ID.
func Auto() RequestedID {
	return RequestedID{}
}

// Explicit requests a specific ID.
func Explicit(id ID) RequestedID {
	return RequestedID{id: id, explicit: true}
}

func (r RequestedID) IsAuto() bool {
	return !r.explicit
}

// Value returns the explicit ID, if any.
func (r RequestedID) Value() (ID, bool) {
	return r.id, r.explicit
}

func (r RequestedID) String() string {
	if !r.explicit {
		return "auto"
	}
	return r.id.String()
}

// Registry maps internal IDs to solver IDs.
type Registry struct {
	natives map[ID]NativeID
	counter ID
}

func NewRegistry() *Registry {
	return &Registry{natives: make(map[ID]NativeID)}
}

// Allocate mints a new ID for native.
func (r *Registry) Allocate(native NativeID) ID {
	id := r.counter
	r.counter++
	r.natives[id] = native
	return id
}

// AllocateWithID maps native under the requested ID. An explicit ID at or
// past the counter moves the counter beyond it; lower IDs leave it alone.
func (r *Registry) AllocateWithID(native NativeID, req RequestedID) (ID, error) {
	id, ok := req.Value()
	if !ok {
		return r.Allocate(native), nil
	}
	if _, taken := r.natives[id]; taken {
		return 0, fmt.Errorf("allocate %s: %w", id, ErrIDInUse)
	}
	r.natives[id] = native
	r.Reserve(id)
	return id, nil
}

// Reserve makes sure id is never handed out by Allocate.
func (r *Registry) Reserve(id ID) {
	if id >= r.counter {
		r.counter = id + 1
	}
}

// Resolve returns the solver ID for id.
func (r *Registry) Resolve(id ID) (NativeID, bool) {
	native, ok := r.natives[id]
	return native, ok
}

// Has reports whether id is currently mapped.
func (r *Registry) Has(id ID) bool {
	_, ok := r.natives[id]
	return ok
}

// Forget drops the mapping for id. The ID itself stays retired.
func (r *Registry) Forget(id ID) {
	delete(r.natives, id)
}

// Counter returns the next ID Allocate would mint.
func (r *Registry) Counter() ID {
	return r.counter
}

// Len returns the number of mapped IDs.
func (r *Registry) Len() int {
	return len(r.natives)
}

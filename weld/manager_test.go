package weld

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerSaveLoadRoundTrip(t *testing.T) {
	h := newHarness()
	for _, id := range []BodyID{1, 2, 3} {
		h.world.add(id, false)
	}

	want := map[ID]Constraint{}
	for _, c := range []rod{{A: 1, B: 2, Len: 1}, {A: 1, B: 3, Len: 2}, {A: 2, B: Ground, Len: 3}, {A: 3, B: 1, Len: 4}} {
		id, err := h.m.Create(c)
		require.NoError(t, err)
		want[id] = c
	}
	first := h.m.ListByBody(1)[0]
	require.NoError(t, h.m.Remove(first))
	delete(want, first)

	doc := h.m.Save()
	h.m.Close()

	// the solver numbers constraints differently after a reload
	h.solver = newFakeSolver()
	h.solver.next = 9000
	h.m = h.manager()
	require.NoError(t, h.m.Load(doc))

	got := map[ID]Constraint{}
	for _, body := range []BodyID{1, 2, 3} {
		for _, id := range h.m.ListByBody(body) {
			_, dup := got[id]
			require.False(t, dup)
			c, ok := h.m.Get(id)
			require.True(t, ok)
			got[id] = c
		}
	}
	assert.Equal(t, want, got)
	assert.Equal(t, 3, h.m.Len())

	fresh, err := h.m.Create(rod{A: 2, B: 3})
	require.NoError(t, err)
	_, taken := want[fresh]
	assert.False(t, taken)
	assert.NotEqual(t, first, fresh, "removed ids stay retired across reloads")
}

func TestManagerFacade(t *testing.T) {
	h := newHarness()
	id, err := h.m.Create(rod{A: 4, B: 5})
	require.NoError(t, err)
	assert.Equal(t, []ID{id}, h.m.ListByBody(4))
	assert.Empty(t, h.m.ListByBody(5))
	assert.Equal(t, 1, h.dirty.n)

	require.NoError(t, h.m.Update(id, rod{A: 4, B: 5, Len: 2}))
	require.NoError(t, h.m.Remove(id))
	assert.Empty(t, h.m.ListByBody(4))
	assert.Equal(t, 3, h.dirty.n)

	assert.True(t, errors.Is(h.m.Remove(id), ErrUnknownID))
	assert.True(t, errors.Is(h.m.Update(id, rod{A: 4, B: 5}), ErrUnknownID))
	_, err = h.m.Create(nil)
	assert.True(t, errors.Is(err, ErrNilConstraint))
	assert.Equal(t, 3, h.dirty.n)
	assert.Equal(t, ParticipantKey, h.m.Key())
}

func TestManagerRetiredIDsSurviveReload(t *testing.T) {
	h := newHarness()
	h.world.add(1, false)
	_, err := h.m.Create(rod{A: 1, B: Ground})
	require.NoError(t, err)
	last, err := h.m.Create(rod{A: 1, B: Ground, Len: 1})
	require.NoError(t, err)
	require.NoError(t, h.m.Remove(last))

	doc := h.m.Save()
	h.m.Close()
	h.m = h.manager()
	require.NoError(t, h.m.Load(doc))

	next, err := h.m.Create(rod{A: 1, B: Ground, Len: 2})
	require.NoError(t, err)
	assert.Equal(t, last+1, next)
}

package weld

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAllocate(t *testing.T) {
	r := NewRegistry()
	a := r.Allocate(10)
	b := r.Allocate(11)
	assert.Equal(t, ID(0), a)
	assert.Equal(t, ID(1), b)

	native, ok := r.Resolve(b)
	require.True(t, ok)
	assert.Equal(t, NativeID(11), native)

	r.Forget(a)
	_, ok = r.Resolve(a)
	assert.False(t, ok)
	assert.Equal(t, ID(2), r.Allocate(12), "forgotten ids are not reused")
}

func TestRegistryAllocateWithID(t *testing.T) {
	cases := []struct {
		name        string
		counter     ID
		req         RequestedID
		wantID      ID
		wantCounter ID
	}{
		{"auto", 5, Auto(), 5, 6},
		{"below_counter", 5, Explicit(2), 2, 5},
		{"at_counter", 5, Explicit(5), 5, 6},
		{"above_counter", 5, Explicit(40), 40, 41},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRegistry()
			r.Reserve(tc.counter - 1)
			require.Equal(t, tc.counter, r.Counter())

			id, err := r.AllocateWithID(99, tc.req)
			require.NoError(t, err)
			assert.Equal(t, tc.wantID, id)
			assert.Equal(t, tc.wantCounter, r.Counter())
		})
	}
}

func TestRegistryRejectsDuplicateReplay(t *testing.T) {
	r := NewRegistry()
	_, err := r.AllocateWithID(1, Explicit(3))
	require.NoError(t, err)

	_, err = r.AllocateWithID(2, Explicit(3))
	assert.True(t, errors.Is(err, ErrIDInUse))

	native, _ := r.Resolve(3)
	assert.Equal(t, NativeID(1), native)
}

func TestRequestedID(t *testing.T) {
	assert.True(t, Auto().IsAuto())
	_, ok := Auto().Value()
	assert.False(t, ok)

	id, ok := Explicit(0).Value()
	assert.True(t, ok)
	assert.Equal(t, ID(0), id)
	assert.False(t, Explicit(0).IsAuto())
	assert.Equal(t, "auto", Auto().String())
	assert.Equal(t, "7", Explicit(7).String())
}

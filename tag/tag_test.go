package tag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestCompoundAccessors(t *testing.T) {
	c := New()
	c.Put("i", 7)
	c.Put("f", 2.5)
	c.Put("whole", 3.0)
	c.Put("huge", 1e19)
	c.Put("tiny", -1e19)
	c.Put("edge", float64(1<<63))
	c.Put("wide", uint64(1<<63))
	c.Put("s", "pin")
	c.PutVec("anchor", 1, -2)
	c.Put("child", map[string]any{"k": 1})

	cases := []struct {
		name  string
		check func(t *testing.T)
	}{
		{"int", func(t *testing.T) {
			v, ok := c.Int("i")
			require.True(t, ok)
			assert.Equal(t, int64(7), v)
		}},
		{"int_from_whole_float", func(t *testing.T) {
			v, ok := c.Int("whole")
			require.True(t, ok)
			assert.Equal(t, int64(3), v)
		}},
		{"int_rejects_fraction", func(t *testing.T) {
			_, ok := c.Int("f")
			assert.False(t, ok)
		}},
		{"int_rejects_out_of_range", func(t *testing.T) {
			for _, key := range []string{"huge", "tiny", "edge", "wide"} {
				_, ok := c.Int(key)
				assert.False(t, ok, key)
			}
		}},
		{"float_from_int", func(t *testing.T) {
			v, ok := c.Float("i")
			require.True(t, ok)
			assert.Equal(t, 7.0, v)
		}},
		{"string", func(t *testing.T) {
			v, ok := c.String("s")
			require.True(t, ok)
			assert.Equal(t, "pin", v)
		}},
		{"string_wrong_type", func(t *testing.T) {
			_, ok := c.String("i")
			assert.False(t, ok)
		}},
		{"vec", func(t *testing.T) {
			x, y, ok := c.Vec("anchor")
			require.True(t, ok)
			assert.Equal(t, 1.0, x)
			assert.Equal(t, -2.0, y)
		}},
		{"child", func(t *testing.T) {
			child, ok := c.Compound("child")
			require.True(t, ok)
			assert.True(t, child.Has("k"))
		}},
		{"missing", func(t *testing.T) {
			_, ok := c.Int("nope")
			assert.False(t, ok)
			assert.False(t, c.Has("nope"))
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, tc.check)
	}
}

func TestCompoundSurvivesYAML(t *testing.T) {
	c := New()
	c.Put("id", 12)
	c.PutVec("a", 0.5, 4)
	c.Put("items", []any{Compound{"n": 1}, Compound{"n": 2}})

	data, err := yaml.Marshal(c)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	back, ok := AsCompound(decoded)
	require.True(t, ok)

	id, ok := back.Int("id")
	require.True(t, ok)
	assert.Equal(t, int64(12), id)

	x, y, ok := back.Vec("a")
	require.True(t, ok)
	assert.Equal(t, 0.5, x)
	assert.Equal(t, 4.0, y)

	items, ok := back.List("items")
	require.True(t, ok)
	require.Len(t, items, 2)
	second, ok := AsCompound(items[1])
	require.True(t, ok)
	n, _ := second.Int("n")
	assert.Equal(t, int64(2), n)
}

func TestKeysSorted(t *testing.T) {
	c := Compound{"b": 1, "a": 2, "10": 3}
	assert.Equal(t, []string{"10", "a", "b"}, c.Keys())
}

package weld

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/milk9111/shipweld/tag"
)

func rodDoc(a, b BodyID, id any) tag.Compound {
	doc := tag.Compound{"type": "rod", "a": int64(a), "b": int64(b), "len": 1.0}
	if id != nil {
		doc.Put(IDKey, id)
	}
	return doc
}

func TestCodecRoundTrip(t *testing.T) {
	codec := NewCodec(rodCodec{}, nil)
	in := map[BodyID][]Pending{
		1: {
			{Constraint: rod{A: 1, B: 2, Len: 3}, Requested: Explicit(0)},
			{Constraint: rod{A: 1, B: Ground, Len: 1}, Requested: Explicit(4)},
		},
		2: {
			{Constraint: rod{A: 2, B: 1, Len: 2}, Requested: Explicit(1)},
		},
	}

	out := codec.Decode(codec.Encode(in))
	assert.Equal(t, in, out)

	seen := map[ID]Constraint{}
	for _, recs := range out {
		for _, p := range recs {
			id, ok := p.Requested.Value()
			require.True(t, ok)
			_, dup := seen[id]
			assert.False(t, dup, "id %s decoded twice", id)
			seen[id] = p.Constraint
		}
	}
}

func TestCodecSkipsMalformed(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	codec := NewCodec(rodCodec{}, zap.New(core))

	doc := tag.Compound{RootKey: tag.Compound{
		"10": []any{
			rodDoc(10, 20, 0),
			tag.Compound{"type": "hinge", IDKey: 1},
			rodDoc(10, Ground, 2),
		},
		"11":    []any{"not a compound", rodDoc(11, 10, 3)},
		"ship":  []any{rodDoc(1, 2, 9)},
		"12":    "not a list",
		"13":    []any{rodDoc(13, 10, -4)},
		"14":    []any{rodDoc(14, 10, 1.5)},
		"15":    []any{rodDoc(15, 10, nil)},
		"16":    []any{rodDoc(16, 10, "7")},
		"-2":    []any{rodDoc(1, 2, 5)},
		"17":    []any{},
		"18":    []any{rodDoc(18, 10, int64(1) << 40)},
		"19":    []any{rodDoc(19, 10, 1e19), rodDoc(19, 10, -1e19)},
		"extra": nil,
	}}

	out := codec.Decode(doc)
	require.Len(t, out[10], 2)
	assert.Equal(t, Explicit(0), out[10][0].Requested)
	assert.Equal(t, Explicit(2), out[10][1].Requested)
	require.Len(t, out[11], 1)
	assert.Equal(t, Explicit(3), out[11][0].Requested)
	require.Len(t, out[13], 1)
	assert.True(t, out[13][0].Requested.IsAuto(), "negative id means allocate")
	assert.Empty(t, out[14])
	require.Len(t, out[15], 1)
	assert.True(t, out[15][0].Requested.IsAuto())
	assert.Empty(t, out[16])
	assert.Empty(t, out[18])
	assert.Empty(t, out[19], "out of range ids are not taken for auto")
	assert.NotContains(t, out, BodyID(-2))

	assert.NotZero(t, logs.FilterMessage("skipping malformed constraint").Len())
	assert.NotZero(t, logs.FilterMessage("skipping constraints of unparsable body").Len())
}

func TestCodecLegacyLayout(t *testing.T) {
	codec := NewCodec(rodCodec{}, nil)
	doc := tag.Compound{LegacyRootKey: tag.Compound{
		"7": tag.Compound{
			"10": rodDoc(7, 3, 12),
			"2":  rodDoc(7, 2, 11),
			"0":  rodDoc(7, 1, nil),
		},
	}}

	out := codec.Decode(doc)
	require.Len(t, out[7], 3)
	assert.Equal(t, BodyID(1), out[7][0].Constraint.(rod).B)
	assert.True(t, out[7][0].Requested.IsAuto())
	assert.Equal(t, Explicit(11), out[7][1].Requested)
	assert.Equal(t, Explicit(12), out[7][2].Requested)
}

func TestCodecEncodeLayout(t *testing.T) {
	codec := NewCodec(rodCodec{}, nil)
	doc := codec.Encode(map[BodyID][]Pending{
		5: {{Constraint: rod{A: 5, B: 6}, Requested: Explicit(3)}},
		6: {{Constraint: rod{A: 6, B: 5}, Requested: Auto()}},
	})

	root, ok := doc.Compound(RootKey)
	require.True(t, ok)
	list, ok := root.List("5")
	require.True(t, ok)
	require.Len(t, list, 1)
	first, _ := tag.AsCompound(list[0])
	id, ok := first.Int(IDKey)
	require.True(t, ok)
	assert.Equal(t, int64(3), id)

	list, ok = root.List("6")
	require.True(t, ok)
	second, _ := tag.AsCompound(list[0])
	assert.False(t, second.Has(IDKey), "auto ids are not written")
}

package nbt

import (
	"errors"
	"testing"

	"github.com/danmuck/backwire/internal/protocol"
	"github.com/danmuck/backwire/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func sampleRegistry(t *testing.T) *Root {
	t.Helper()
	element := NewCompound()
	element.Put("has_precipitation", NewByte(1))
	element.Put("temperature", NewFloat(0.8))
	biome := NewCompound()
	biome.Put("name", NewString("minecraft:plains"))
	biome.Put("id", NewInt(1))
	biome.Put("element", element)
	values := NewList(KindCompound)
	require.NoError(t, values.Append(biome))
	biomes := NewCompound()
	biomes.Put("type", NewString("minecraft:worldgen/biome"))
	biomes.Put("value", values)

	root := NewCompound()
	root.Put("minecraft:trim_pattern", NewCompound())
	root.Put("minecraft:worldgen/biome", biomes)
	root.Put("minecraft:damage_type", NewCompound())
	root.Put("heights", NewIntArray([]int32{-64, 320}))
	root.Put("seeds", NewLongArray([]int64{1, -2}))
	root.Put("raw", NewByteArray([]byte{0xDE, 0xAD}))
	root.Put("empty", NewList(KindString))
	return &Root{Name: "", Compound: root}
}

func TestMarshalUnmarshalRoundTripIsByteIdentical(t *testing.T) {
	testlog.Start(t)
	in := sampleRegistry(t)
	b, err := Marshal(in)
	require.NoError(t, err)

	out, n, err := Unmarshal(append(b, 0xAA))
	require.NoError(t, err)
	require.Equal(t, len(b), n, "decode must stop at the end of the root")
	again, err := Marshal(out)
	require.NoError(t, err)
	require.Equal(t, b, again)
	require.Equal(t, in.Compound.Keys(), out.Compound.Keys())

	empty, ok := out.Compound.List("empty")
	require.True(t, ok)
	require.Equal(t, KindString, empty.Elem())
}

func TestUnmarshalEndTagIsNilRoot(t *testing.T) {
	testlog.Start(t)
	root, n, err := Unmarshal([]byte{0x00, 0x01})
	require.NoError(t, err)
	require.Nil(t, root)
	require.Equal(t, 1, n)

	b, err := Marshal(nil)
	require.NoError(t, err)
	require.Equal(t, []byte{0x00}, b)
}

func TestUnmarshalTruncatedIsMalformed(t *testing.T) {
	testlog.Start(t)
	b, err := Marshal(sampleRegistry(t))
	require.NoError(t, err)
	for _, cut := range []int{1, 3, len(b) / 2, len(b) - 1} {
		_, _, err := Unmarshal(b[:cut])
		require.Truef(t, errors.Is(err, protocol.ErrMalformedField), "cut=%d err=%v", cut, err)
	}
}

func TestUnmarshalRejectsOversizedArrayLength(t *testing.T) {
	testlog.Start(t)
	// root compound "", int_array "a" claiming 1<<30 elements
	b := []byte{10, 0, 0, 11, 0, 1, 'a', 0x40, 0, 0, 0, 0}
	_, _, err := Unmarshal(b)
	var mf *protocol.MalformedFieldError
	require.ErrorAs(t, err, &mf)
}

func TestUnmarshalRejectsDuplicateKeys(t *testing.T) {
	testlog.Start(t)
	// root compound "" holding byte "a" twice
	b := []byte{10, 0, 0, 1, 0, 1, 'a', 1, 1, 0, 1, 'a', 2, 0}
	_, _, err := Unmarshal(b)
	var mf *protocol.MalformedFieldError
	require.ErrorAs(t, err, &mf)
	require.Contains(t, mf.Reason, "duplicate")
}

func TestRemoveKeepsSiblingsInOrder(t *testing.T) {
	testlog.Start(t)
	root := sampleRegistry(t).Compound
	before := root.Keys()

	require.True(t, Remove(root, "minecraft:trim_pattern"))
	_, ok := Get(root, "minecraft:trim_pattern")
	require.False(t, ok)
	require.False(t, Remove(root, "minecraft:trim_pattern"))

	require.Equal(t, before[1:], root.Keys())
	heights, ok := root.Leaf("heights")
	require.True(t, ok)
	require.Equal(t, []int32{-64, 320}, heights.Value())
}

func TestPutReplaceKeepsPosition(t *testing.T) {
	testlog.Start(t)
	c := NewCompound()
	Put(c, "a", NewByte(1))
	Put(c, "b", NewByte(2))
	Put(c, "a", NewString("x"))
	require.Equal(t, []string{"a", "b"}, c.Keys())
	leaf, ok := c.Leaf("a")
	require.True(t, ok)
	s, ok := leaf.String()
	require.True(t, ok)
	require.Equal(t, "x", s)
}

func TestGetWalksCompoundsAndLists(t *testing.T) {
	testlog.Start(t)
	root := sampleRegistry(t).Compound
	tag, ok := Get(root, "minecraft:worldgen/biome", "value", 0, "element", "has_precipitation")
	require.True(t, ok)
	v, ok := tag.(*Leaf).Int()
	require.True(t, ok)
	require.EqualValues(t, 1, v)

	_, ok = Get(root, "minecraft:worldgen/biome", "value", 5)
	require.False(t, ok)
	_, ok = Get(root, "heights", "x")
	require.False(t, ok)
	_, ok = Get(root, 1.5)
	require.False(t, ok)
}

func TestListRejectsHeterogeneousElements(t *testing.T) {
	testlog.Start(t)
	l := NewList(KindEnd)
	require.NoError(t, l.Append(NewString("a")))
	require.Equal(t, KindString, l.Elem())

	err := l.Append(NewInt(1))
	require.ErrorIs(t, err, protocol.ErrSchemaViolation)
	err = l.Set(0, NewCompound())
	require.ErrorIs(t, err, protocol.ErrSchemaViolation)
	require.Equal(t, 1, l.Len())

	typed := NewList(KindCompound)
	require.ErrorIs(t, typed.Append(NewByte(1)), protocol.ErrSchemaViolation)
	require.Equal(t, KindCompound, typed.Elem())
}

func TestForEachIsSinglePass(t *testing.T) {
	testlog.Start(t)
	l := NewList(KindInt)
	for i := int32(0); i < 3; i++ {
		require.NoError(t, l.Append(NewInt(i)))
	}
	seq := ForEach(l)
	count := 0
	for range seq {
		count++
	}
	require.Equal(t, 3, count)
	for range seq {
		t.Fatalf("exhausted sequence yielded again")
	}

	count = 0
	for range ForEach(l) {
		count++
	}
	require.Equal(t, 3, count)
}

func TestReplaceInPlaceKeepsKind(t *testing.T) {
	testlog.Start(t)
	leaf := NewByte(0)
	require.NoError(t, ReplaceInPlace(leaf, int8(1)))
	v, _ := leaf.Int()
	require.EqualValues(t, 1, v)

	err := ReplaceInPlace(leaf, "rain")
	require.ErrorIs(t, err, protocol.ErrSchemaViolation)
	err = ReplaceInPlace(leaf, struct{}{})
	require.ErrorIs(t, err, protocol.ErrSchemaViolation)
}

func TestCloneIsDeep(t *testing.T) {
	testlog.Start(t)
	root := sampleRegistry(t).Compound
	cp := Clone(root).(*Compound)
	Remove(cp, "heights")
	_, ok := root.Get("heights")
	require.True(t, ok)
}

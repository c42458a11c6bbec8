package index

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeylessAppendAndOverwrite(t *testing.T) {
	k := NewKeyless(2, 0)

	require.NoError(t, k.Set(0, []uint64{10, 20}))
	require.NoError(t, k.Set(1, []uint64{30, 40}))
	require.Equal(t, 2, k.Len())

	row, err := k.Get(0)
	require.NoError(t, err)

	v0, _ := row.At(0)
	v1, _ := row.At(1)
	require.Equal(t, uint64(10), v0)
	require.Equal(t, uint64(20), v1)

	require.NoError(t, k.Set(0, []uint64{99, 98}))

	row, err = k.Get(0)
	require.NoError(t, err)

	v0, _ = row.At(0)
	require.Equal(t, uint64(99), v0)
}

func TestKeylessRejectsGap(t *testing.T) {
	k := NewKeyless(1, 0)

	err := k.Set(1, []uint64{5})
	require.Error(t, err)
}

func TestGeneralInsertAndOverwrite(t *testing.T) {
	g := NewGeneral(2, 0)

	require.NoError(t, g.Set("a", []uint64{1, 2}))
	require.NoError(t, g.Set("b", []uint64{3, 4}))
	require.Equal(t, []any{"a", "b"}, g.Keys())

	require.NoError(t, g.Set("a", []uint64{9, 9}))
	require.Equal(t, []any{"a", "b"}, g.Keys(), "overwrite must not change insertion order")

	row, err := g.Get("a")
	require.NoError(t, err)

	v0, _ := row.At(0)
	require.Equal(t, uint64(9), v0)
}

func TestGeneralMissingKey(t *testing.T) {
	g := NewGeneral(1, 0)

	_, err := g.Get("missing")
	require.Error(t, err)
	require.False(t, g.Contains("missing"))
}

func TestSortedBuildAndLookup(t *testing.T) {
	keys := []any{"c", "a", "b"}
	rows := [][]uint64{{3}, {1}, {2}}

	s, err := BuildSorted(keys, rows, 0, DefaultLess)
	require.NoError(t, err)
	require.Equal(t, []any{"a", "b", "c"}, s.Keys())

	row, err := s.Get("b")
	require.NoError(t, err)

	v0, _ := row.At(0)
	require.Equal(t, uint64(2), v0)

	require.False(t, s.Contains("z"))
}

func TestSortedFallsBackOnNonComparable(t *testing.T) {
	keys := []any{[]byte("x"), []byte("y")}
	rows := [][]uint64{{1}, {2}}

	_, err := BuildSorted(keys, rows, 0, DefaultLess)
	require.ErrorIs(t, err, ErrNotComparable)
}

func TestIntListNegativeIndex(t *testing.T) {
	buf := []byte{1, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0}
	l := NewIntList(buf, 0, 2, 6)

	v, err := l.At(-1)
	require.NoError(t, err)
	require.Equal(t, uint64(2), v)

	_, err = l.At(5)
	require.Error(t, err)
}

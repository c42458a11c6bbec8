package fdd_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	fdd "github.com/tstandley/freeze-dried-data"
	"github.com/tstandley/freeze-dried-data/pkg/fs"
)

func tempPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}

func TestSchemalessRoundTrip(t *testing.T) {
	fsys := fs.NewReal()
	path := tempPath(t, "schemaless.fdd")

	w, err := fdd.OpenWriter(fsys, path, fdd.WriterOptions{})
	require.NoError(t, err)
	require.NoError(t, w.Set("hello", "world"))
	require.NoError(t, w.Set("number", int64(123)))
	_, err = w.Close()
	require.NoError(t, err)

	r, err := fdd.OpenReader(fsys, path, fdd.ReaderOptions{})
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, 2, r.Len())

	v, err := r.Get("hello")
	require.NoError(t, err)
	require.Equal(t, "world", v)

	n, err := r.Get("number")
	require.NoError(t, err)
	require.EqualValues(t, 123, n)
}

func houseColumns() fdd.ColumnDef {
	return fdd.ColumnDef{
		{Name: "name", Codec: "str"},
		{Name: "area", Codec: "any"},
		{Name: "price", Codec: "any"},
	}
}

func TestSchemaRowAccessAgrees(t *testing.T) {
	fsys := fs.NewReal()
	path := tempPath(t, "houses.fdd")

	w, err := fdd.OpenWriter(fsys, path, fdd.WriterOptions{Columns: houseColumns()})
	require.NoError(t, err)

	require.NoError(t, w.Set("house1", map[string]any{"name": "house1", "area": 100.0, "price": 100000.0}))
	require.NoError(t, w.Set("house3", []any{"house3", 300.0, 300000.0}))

	_, err = w.Close()
	require.NoError(t, err)

	r, err := fdd.OpenReader(fsys, path, fdd.ReaderOptions{})
	require.NoError(t, err)
	defer r.Close()

	got, err := r.Get("house3")
	require.NoError(t, err)

	row, ok := got.(*fdd.RowView)
	require.True(t, ok)

	name, err := row.GetName("name")
	require.NoError(t, err)
	require.Equal(t, "house3", name)

	area, err := row.Get(1)
	require.NoError(t, err)
	require.Equal(t, 300.0, area)

	cell, err := r.Get(fdd.CellRef{Row: "house3", Column: "price"})
	require.NoError(t, err)
	require.Equal(t, 300000.0, cell)
}

func TestSplitUnionExpression(t *testing.T) {
	fsys := fs.NewReal()
	path := tempPath(t, "splits.fdd")

	w, err := fdd.OpenWriter(fsys, path, fdd.WriterOptions{Columns: houseColumns()})
	require.NoError(t, err)

	var odds, evens, big []any

	for i := 0; i < 100; i++ {
		key := houseKey(i)
		require.NoError(t, w.Set(key, map[string]any{
			"name": key, "area": float64(100 + 10*i), "price": float64(100000 + 1000*i),
		}))

		if i%2 == 1 {
			odds = append(odds, key)
		} else {
			evens = append(evens, key)
		}

		if i >= 80 {
			big = append(big, key)
		}
	}

	require.NoError(t, w.MakeSplit("odds", odds, false, false, true))
	require.NoError(t, w.MakeSplit("evens", evens, false, false, true))
	require.NoError(t, w.MakeSplit("big", big, false, false, true))

	_, err = w.Close()
	require.NoError(t, err)

	r, err := fdd.OpenReader(fsys, path, fdd.ReaderOptions{Split: "odds+big"})
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, 60, r.Len())

	for _, k := range r.Keys() {
		v, err := r.Get(k)
		require.NoError(t, err)

		row := v.(*fdd.RowView)
		area, err := row.GetName("area")
		require.NoError(t, err)
		require.NotNil(t, area)
	}
}

func houseKey(i int) string {
	return "house_" + itoa(i)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}

	var digits []byte

	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}

	return string(digits)
}

func TestReopenAndExtend(t *testing.T) {
	fsys := fs.NewReal()
	path := tempPath(t, "reopen.fdd")

	w, err := fdd.OpenWriter(fsys, path, fdd.WriterOptions{Columns: fdd.ColumnDef{{Name: "v", Codec: "any"}}})
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		require.NoError(t, w.Set(i, map[string]any{"v": float64(i)}))
	}

	_, err = w.Close()
	require.NoError(t, err)

	w2, err := fdd.OpenWriter(fsys, path, fdd.WriterOptions{Reopen: true})
	require.NoError(t, err)

	for i := 1000; i < 2000; i++ {
		require.NoError(t, w2.Set(i, map[string]any{"v": float64(i)}))
	}

	var odds []any

	for i := 1; i < 2000; i += 2 {
		odds = append(odds, i)
	}

	require.NoError(t, w2.MakeSplit("odds", odds, false, false, true))
	_, err = w2.Close()
	require.NoError(t, err)

	r, err := fdd.OpenReader(fsys, path, fdd.ReaderOptions{})
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, 2000, r.Len())

	require.NoError(t, r.LoadNewSplit("odds"))
	require.Equal(t, 1000, r.Len())
}

func TestSetterWarningAtClose(t *testing.T) {
	fsys := fs.NewReal()
	path := tempPath(t, "setters.fdd")

	// Two columns, so setting only "v" leaves each setter pending until Close.
	w, err := fdd.OpenWriter(fsys, path, fdd.WriterOptions{Columns: fdd.ColumnDef{{Name: "v", Codec: "any"}, {Name: "w", Codec: "any"}}})
	require.NoError(t, err)

	for i := 0; i < 1100; i++ {
		s, err := w.Get(i)
		require.NoError(t, err)

		setter := s.(*fdd.Setter)
		require.NoError(t, setter.Set("v", float64(i)))
	}

	report, err := w.Close()
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)

	r, err := fdd.OpenReader(fsys, path, fdd.ReaderOptions{})
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, 1100, r.Len())

	v, err := r.Get(5)
	require.NoError(t, err)
	require.Equal(t, float64(5), v.(*fdd.RowView).MustGet(0))
}

func TestIdempotentClose(t *testing.T) {
	fsys := fs.NewReal()
	path := tempPath(t, "empty.fdd")

	w, err := fdd.OpenWriter(fsys, path, fdd.WriterOptions{Columns: houseColumns()})
	require.NoError(t, err)
	w.SetProperty("source", "nowhere")
	_, err = w.Close()
	require.NoError(t, err)

	w2, err := fdd.OpenWriter(fsys, path, fdd.WriterOptions{Reopen: true})
	require.NoError(t, err)
	_, err = w2.Close()
	require.NoError(t, err)

	r, err := fdd.OpenReader(fsys, path, fdd.ReaderOptions{})
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, 0, r.Len())
	require.Equal(t, []string{"area", "name", "price"}, sortedNames(r.Columns().Names()))

	source, err := r.GetProperty("source")
	require.NoError(t, err)
	require.Equal(t, "nowhere", source)
}

func sortedNames(names []string) []string {
	out := append([]string(nil), names...)

	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}

	return out
}

func TestReopenAfterForkServesSameValue(t *testing.T) {
	fsys := fs.NewReal()
	path := tempPath(t, "fork.fdd")

	w, err := fdd.OpenWriter(fsys, path, fdd.WriterOptions{Columns: houseColumns()})
	require.NoError(t, err)
	require.NoError(t, w.Set("house1", map[string]any{"name": "house1", "area": 100.0, "price": 100000.0}))
	_, err = w.Close()
	require.NoError(t, err)

	r, err := fdd.OpenReader(fsys, path, fdd.ReaderOptions{})
	require.NoError(t, err)
	defer r.Close()

	before, err := r.Get("house1")
	require.NoError(t, err)
	wantArea, err := before.(*fdd.RowView).GetName("area")
	require.NoError(t, err)

	// Simulate a post-fork child reopening its inherited descriptor.
	require.NoError(t, r.ReopenAfterFork())

	after, err := r.Get("house1")
	require.NoError(t, err)
	gotArea, err := after.(*fdd.RowView).GetName("area")
	require.NoError(t, err)
	require.Equal(t, wantArea, gotArea)
}

func TestWriterSetFromRowViewCopiesUntouchedCellsVerbatim(t *testing.T) {
	fsys := fs.NewReal()
	srcPath := tempPath(t, "src.fdd")
	dstPath := tempPath(t, "dst.fdd")

	sw, err := fdd.OpenWriter(fsys, srcPath, fdd.WriterOptions{Columns: houseColumns()})
	require.NoError(t, err)
	require.NoError(t, sw.Set("house1", map[string]any{"name": "house1", "area": 100.0, "price": 100000.0}))
	_, err = sw.Close()
	require.NoError(t, err)

	sr, err := fdd.OpenReader(fsys, srcPath, fdd.ReaderOptions{})
	require.NoError(t, err)
	defer sr.Close()

	row, err := sr.Get("house1")
	require.NoError(t, err)

	srcView := row.(*fdd.RowView)
	srcOffsets := append([]uint64(nil), srcView.Offsets()...)

	dw, err := fdd.OpenWriter(fsys, dstPath, fdd.WriterOptions{Columns: houseColumns()})
	require.NoError(t, err)
	require.NoError(t, dw.Set("house1", srcView))
	_, err = dw.Close()
	require.NoError(t, err)

	dr, err := fdd.OpenReader(fsys, dstPath, fdd.ReaderOptions{})
	require.NoError(t, err)
	defer dr.Close()

	dstRow, err := dr.Get("house1")
	require.NoError(t, err)

	dstView := dstRow.(*fdd.RowView)

	name, err := dstView.GetName("name")
	require.NoError(t, err)
	require.Equal(t, "house1", name)

	// The cell byte lengths (not absolute offsets, which necessarily shift
	// between files) must match exactly: no re-encoding happened.
	dstOffsets := dstView.Offsets()
	for i := 0; i < len(srcOffsets)-1; i++ {
		require.Equal(t, srcOffsets[i+1]-srcOffsets[i], dstOffsets[i+1]-dstOffsets[i])
	}
}

func TestSplitUnionIsIdempotentAndCommutativeOnKeys(t *testing.T) {
	fsys := fs.NewReal()
	path := tempPath(t, "union.fdd")

	w, err := fdd.OpenWriter(fsys, path, fdd.WriterOptions{Columns: fdd.ColumnDef{{Name: "v", Codec: "any"}}})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, w.Set(i, map[string]any{"v": float64(i)}))
	}

	require.NoError(t, w.MakeSplit("a", []any{0, 1, 2}, false, false, true))
	require.NoError(t, w.MakeSplit("b", []any{2, 3, 4}, false, false, true))

	_, err = w.Close()
	require.NoError(t, err)

	r, err := fdd.OpenReader(fsys, path, fdd.ReaderOptions{Split: "a+a"})
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, 3, r.Len())

	require.NoError(t, r.LoadNewSplit("a+b"))
	require.Equal(t, 5, r.Len())

	abKeys := r.Keys()

	require.NoError(t, r.LoadNewSplit("b+a"))
	require.ElementsMatch(t, abKeys, r.Keys())
}

func TestFilterOverKeylessSplitKeysAreNormalized(t *testing.T) {
	fsys := fs.NewReal()
	path := tempPath(t, "keyless-filter.fdd")

	w, err := fdd.OpenWriter(fsys, path, fdd.WriterOptions{Columns: houseColumns()})
	require.NoError(t, err)

	var all []any

	for i := 0; i < 10; i++ {
		key := houseKey(i)
		require.NoError(t, w.Set(key, map[string]any{
			"name": key, "area": float64(100 + 10*i), "price": float64(100000 + 1000*i),
		}))

		all = append(all, key)
	}

	require.NoError(t, w.MakeSplit("ordered", all, false, true, true))
	_, err = w.Close()
	require.NoError(t, err)

	r, err := fdd.OpenReader(fsys, path, fdd.ReaderOptions{Split: "ordered$area>150"})
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, 4, r.Len())

	// The split-closure property (§8): every key the filtered split reports
	// via Keys() must also resolve through Get/Contains, matching the
	// Reader's own int64-normalized key space, not the keyless split's raw
	// int positions.
	for _, k := range r.Keys() {
		require.True(t, r.Contains(k))

		v, err := r.Get(k)
		require.NoError(t, err)
		require.NotNil(t, v)
	}
}

func TestCellOverwriteSameSizeSucceedsDifferentSizeFails(t *testing.T) {
	fsys := fs.NewReal()
	path := tempPath(t, "overwrite.fdd")

	cols := fdd.ColumnDef{{Name: "n", Codec: "int64"}, {Name: "s", Codec: "str"}}

	w, err := fdd.OpenWriter(fsys, path, fdd.WriterOptions{Columns: cols})
	require.NoError(t, err)
	require.NoError(t, w.Set("k", []any{int64(7), "hello"}))
	_, err = w.Close()
	require.NoError(t, err)

	r, err := fdd.OpenReader(fsys, path, fdd.ReaderOptions{AllowCellModification: true})
	require.NoError(t, err)
	defer r.Close()

	v, err := r.Get("k")
	require.NoError(t, err)

	row := v.(*fdd.RowView)
	require.NoError(t, row.Set(0, int64(99)))

	require.Error(t, row.Set(1, "a much longer string than before"))
}

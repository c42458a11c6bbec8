package fdd

import (
	"fmt"

	"github.com/tstandley/freeze-dried-data/pkg/fs"
)

// AddColumn copies src to dst with one extra column appended to the
// schema. For every key present in data, it copies the existing row's
// entire byte range verbatim (no re-decoding of untouched cells), encodes
// the new cell, and records an offset tuple extending the old one by the
// new cell's length. Splits and properties are preserved. A duplicate
// column name fails with ErrSchema.
func AddColumn(fsys fs.FS, src, dst, columnName, columnType string, data map[any]any, overwrite bool, registry *Registry) error {
	if registry == nil {
		registry = DefaultRegistry
	}

	r, err := OpenReader(fsys, src, ReaderOptions{Registry: registry})
	if err != nil {
		return err
	}
	defer r.Close()

	if r.Columns().IndexOf(columnName) >= 0 {
		return wrapErr(ErrSchema, "fdd: column %q already exists in %s", columnName, src)
	}

	newColumns := make(ColumnDef, len(r.Columns()), len(r.Columns())+1)
	copy(newColumns, r.Columns())
	newColumns = append(newColumns, Column{Name: columnName, Codec: columnType})

	w, err := OpenWriter(fsys, dst, WriterOptions{Columns: newColumns, Overwrite: overwrite, Registry: registry})
	if err != nil {
		return err
	}

	codec, err := registry.Lookup(columnType)
	if err != nil {
		w.Close()
		return err
	}

	normData := make(map[any]any, len(data))
	for rawKey, v := range data {
		normData[normalizeKey(rawKey)] = v
	}

	for key, newVal := range normData {
		l, ok, err := r.current.Get(key)
		if err != nil {
			w.Close()
			return err
		}

		if !ok {
			w.Close()
			return wrapErr(ErrLookup, "fdd: key %v not found in %s", key, src)
		}

		oldOffsets := l.ToSlice()

		raw, err := r.ReadRange(oldOffsets[0], oldOffsets[len(oldOffsets)-1])
		if err != nil {
			w.Close()
			return err
		}

		newCell, err := codec.Encode(newVal)
		if err != nil {
			w.Close()
			return fmt.Errorf("fdd: encoding new column value for key %v: %w", key, err)
		}

		combined := append(append([]byte{}, raw...), newCell...)

		start, _, err := w.appendBytes(combined)
		if err != nil {
			w.Close()
			return err
		}

		rebased := make([]uint64, len(oldOffsets)+1)
		base := oldOffsets[0]

		for i, o := range oldOffsets {
			rebased[i] = o - base + start
		}

		rebased[len(rebased)-1] = start + uint64(len(combined))

		if err := w.index.Set(key, rebased); err != nil {
			w.Close()
			return err
		}
	}

	for _, name := range r.GetAvailableSplits() {
		si, err := r.loadSplitByName(name)
		if err != nil {
			w.Close()
			return err
		}

		rows := make([]any, 0, si.Len())

		for _, k := range si.Keys() {
			if _, ok := normData[normalizeKey(k)]; ok {
				rows = append(rows, k)
			}
		}

		if name == "all_rows" {
			continue
		}

		if err := w.MakeSplit(name, rows, true, si.kind == splitKeyless, si.kind != splitSorted); err != nil {
			w.Close()
			return err
		}
	}

	for _, name := range r.PropertyNames() {
		v, err := r.GetProperty(name)
		if err != nil {
			w.Close()
			return err
		}

		w.SetProperty(name, v)
	}

	_, err = w.Close()

	return err
}

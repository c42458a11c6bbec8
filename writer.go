package fdd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tstandley/freeze-dried-data/index"
	"github.com/tstandley/freeze-dried-data/layout"
	"github.com/tstandley/freeze-dried-data/pkg/fs"
)

// CloseReport carries non-fatal warnings surfaced at Close, such as a large
// number of still-unfinalized setters. Go has no ambient warnings channel,
// so these are returned directly rather than dropped.
type CloseReport struct {
	Warnings []string
}

// unfinishedSetterWarnThreshold is the pending-setter count above which
// Close reports a warning instead of silently closing out the stragglers.
const unfinishedSetterWarnThreshold = 1000

// Writer is the append-only builder side of a freeze-dried-data file.
type Writer struct {
	fsys     fs.FS
	path     string
	file     fs.File
	registry *Registry
	columns  ColumnDef

	index      *index.General
	unfinished map[any]*Setter
	splits     map[string]*splitIndex
	properties map[string]any

	allowCellMod bool
	closed       bool
	pos          uint64
	identity     fileIdentity
}

// OpenWriter opens (creating, overwriting, or reopening) a freeze-dried-data
// file for writing.
func OpenWriter(fsys fs.FS, path string, opts WriterOptions) (*Writer, error) {
	registry := opts.Registry
	if registry == nil {
		registry = DefaultRegistry
	}

	w := &Writer{
		fsys:         fsys,
		path:         path,
		registry:     registry,
		columns:      opts.Columns,
		unfinished:   make(map[any]*Setter),
		splits:       make(map[string]*splitIndex),
		properties:   make(map[string]any),
		allowCellMod: opts.AllowCellModification,
	}

	if opts.Reopen {
		if err := w.openForReopen(); err != nil {
			return nil, err
		}

		return w, nil
	}

	exists, err := fsys.Exists(path)
	if err != nil {
		return nil, fmt.Errorf("%w: checking %s: %v", ErrIO, path, err)
	}

	if exists && !opts.Overwrite {
		return nil, wrapErr(ErrState, "fdd: %s already exists (pass Overwrite to replace it)", path)
	}

	f, err := fsys.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: creating %s: %v", ErrIO, path, err)
	}

	w.file = f

	if identity, err := getFileIdentity(f); err == nil {
		w.identity = identity
	}

	numVals := numValsFor(w.columns)
	w.index = index.NewGeneral(numVals, index.DefaultByteWidth)

	return w, nil
}

func numValsFor(columns ColumnDef) int {
	if len(columns) == 0 {
		return 2
	}

	return len(columns) + 1
}

// openForReopen implements reopen-and-extend: parse the existing trailer,
// load every split/property/column-def into memory, and position the
// cursor at the earliest metadata offset so subsequent appends overwrite
// it.
func (w *Writer) openForReopen() error {
	f, err := w.fsys.OpenFile(w.path, os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("%w: reopening %s: %v", ErrIO, w.path, err)
	}

	w.file = f

	if identity, err := getFileIdentity(f); err == nil {
		w.identity = identity
	}

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %s: %v", ErrIO, w.path, err)
	}

	table, _, err := layout.ReadTrailer(readerAtFile{f}, info.Size())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFormat, err)
	}

	earliest := uint64(info.Size())

	trackEarliest := func(r layout.Range) {
		if r.Start < earliest {
			earliest = r.Start
		}
	}

	if r, ok := table.Get(layout.ColumnsTag); ok {
		b, err := pread(f, r.Start, r.End)
		if err != nil {
			return err
		}

		var names []string
		if err := json.Unmarshal(b, &names); err != nil {
			return fmt.Errorf("%w: decoding columns: %v", ErrFormat, err)
		}

		trackEarliest(r)
		_ = names
	}

	if r, ok := table.Get(layout.ColumnDefTag); ok {
		b, err := pread(f, r.Start, r.End)
		if err != nil {
			return err
		}

		var def ColumnDef
		if err := json.Unmarshal(b, &def); err != nil {
			return fmt.Errorf("%w: decoding column_def: %v", ErrFormat, err)
		}

		w.columns = def

		trackEarliest(r)
	}

	for _, name := range table.TagsWithPrefix(layout.PropPrefix) {
		r, _ := table.Get(layout.PropPrefix + name)

		b, err := pread(f, r.Start, r.End)
		if err != nil {
			return err
		}

		codec, err := w.registry.Lookup("any")
		if err != nil {
			return err
		}

		val, err := codec.Decode(b)
		if err != nil {
			return fmt.Errorf("%w: decoding property %s: %v", ErrFormat, name, err)
		}

		w.properties[name] = val

		trackEarliest(r)
	}

	numVals := numValsFor(w.columns)

	for _, name := range table.TagsWithPrefix(layout.SplitPrefix) {
		r, _ := table.Get(layout.SplitPrefix + name)

		b, err := pread(f, r.Start, r.End)
		if err != nil {
			return err
		}

		si, err := deserializeSplit(b, numVals)
		if err != nil {
			return err
		}

		if name == "all_rows" {
			g, err := toGeneral(si)
			if err != nil {
				return err
			}

			w.index = g
		} else {
			w.splits[name] = si
		}

		trackEarliest(r)
	}

	if w.index == nil {
		w.index = index.NewGeneral(numVals, index.DefaultByteWidth)
	}

	w.pos = earliest

	if _, err := f.Seek(int64(w.pos), 0); err != nil {
		return fmt.Errorf("%w: seeking to %d: %v", ErrIO, w.pos, err)
	}

	return nil
}

// --- cellSource, for RowView built over rows still in this writer. ---

func (w *Writer) ReadRange(start, end uint64) ([]byte, error) { return pread(w.file, start, end) }

func (w *Writer) Mutable() bool { return w.allowCellMod }

func (w *Writer) WriteRange(start uint64, data []byte) error {
	if !w.allowCellMod {
		return wrapErr(ErrState, "fdd: cell modification is not enabled on this writer")
	}

	return pwrite(w.file, start, data)
}

// appendBytes writes b at the writer's current append position and returns
// the byte range it now occupies.
func (w *Writer) appendBytes(b []byte) (start, end uint64, err error) {
	start = w.pos

	n, err := w.file.Write(b)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: appending %d bytes: %v", ErrIO, len(b), err)
	}

	w.pos += uint64(n)

	return start, w.pos, nil
}

func (w *Writer) codecForIndex(i int) string {
	if len(w.columns) == 0 {
		return "any"
	}

	return w.columns[i].Codec
}

// writeRow appends one row's cells in column order and records its offset
// tuple in the live index.
func (w *Writer) writeRow(key any, vals []any) error {
	offsets := make([]uint64, len(vals)+1)
	offsets[0] = w.pos

	for i, val := range vals {
		if val == nil {
			offsets[i+1] = offsets[i]
			continue
		}

		codec, err := w.registry.Lookup(w.codecForIndex(i))
		if err != nil {
			return err
		}

		enc, err := codec.Encode(val)
		if err != nil {
			return fmt.Errorf("fdd: encoding column %d for key %v: %w", i, key, err)
		}

		_, end, err := w.appendBytes(enc)
		if err != nil {
			return err
		}

		offsets[i+1] = end
	}

	return w.index.Set(key, offsets)
}

// Set inserts a new row under key, dispatching on item's dynamic type
// (*RowView, map[string]any, or []any). Duplicate keys fail with ErrLookup.
func (w *Writer) Set(key any, item any) error {
	key = normalizeKey(key)

	if w.closed {
		return wrapErr(ErrState, "fdd: set on a closed writer")
	}

	if w.index.Contains(key) {
		return wrapErr(ErrLookup, "fdd: duplicate key %v", key)
	}

	if _, pending := w.unfinished[key]; pending {
		return wrapErr(ErrLookup, "fdd: key %v already has a pending setter", key)
	}

	if len(w.columns) == 0 {
		return w.writeRow(key, []any{item})
	}

	switch v := item.(type) {
	case *RowView:
		return w.setFromRowView(key, v)
	case map[string]any:
		return w.setFromMap(key, v)
	case []any:
		if len(v) != len(w.columns) {
			return wrapErr(ErrSchema, "fdd: row has %d values, schema has %d columns", len(v), len(w.columns))
		}

		return w.writeRow(key, v)
	default:
		return wrapErr(ErrSchema, "fdd: unsupported row value of type %T; use a map[string]any, []any, or *RowView", item)
	}
}

// setFromMap validates that values' keys are a subset of the schema and
// writes the row, with missing columns becoming empty cells.
func (w *Writer) setFromMap(key any, values map[string]any) error {
	for name := range values {
		if w.columns.IndexOf(name) < 0 {
			return wrapErr(ErrSchema, "fdd: unknown column %q", name)
		}
	}

	vals := make([]any, len(w.columns))

	for i, col := range w.columns {
		if v, ok := values[col.Name]; ok {
			vals[i] = v
		}
	}

	return w.writeRow(key, vals)
}

// setFromRowView implements the RowView-copy-through path: cached
// (read-or-modified) cells are re-encoded, untouched cells are copied
// verbatim from the source's raw bytes with no decode step at all.
func (w *Writer) setFromRowView(key any, src *RowView) error {
	if src.numCells() != len(w.columns) {
		return wrapErr(ErrSchema, "fdd: source row has %d columns, destination schema has %d", src.numCells(), len(w.columns))
	}

	srcOffsets := src.Offsets()
	offsets := make([]uint64, len(w.columns)+1)
	offsets[0] = w.pos

	for i := range w.columns {
		if src.IsCached(i) {
			val := src.CachedValue(i)
			if val == nil {
				offsets[i+1] = offsets[i]
				continue
			}

			codec, err := w.registry.Lookup(w.codecForIndex(i))
			if err != nil {
				return err
			}

			enc, err := codec.Encode(val)
			if err != nil {
				return fmt.Errorf("fdd: encoding column %d for key %v: %w", i, key, err)
			}

			_, end, err := w.appendBytes(enc)
			if err != nil {
				return err
			}

			offsets[i+1] = end

			continue
		}

		s, e := srcOffsets[i], srcOffsets[i+1]
		if s == e {
			offsets[i+1] = offsets[i]
			continue
		}

		raw, err := src.Source().ReadRange(s, e)
		if err != nil {
			return err
		}

		_, end, err := w.appendBytes(raw)
		if err != nil {
			return err
		}

		offsets[i+1] = end
	}

	return w.index.Set(key, offsets)
}

// Get returns the setter for key if one is pending, the decoded blob for a
// schemaless row, a *RowView for a schema'd row, or creates a new pending
// Setter if key is absent and the schema has columns.
func (w *Writer) Get(key any) (any, error) {
	key = normalizeKey(key)

	if s, pending := w.unfinished[key]; pending {
		return s, nil
	}

	if w.index.Contains(key) {
		l, err := w.index.Get(key)
		if err != nil {
			return nil, err
		}

		offsets := l.ToSlice()

		if len(w.columns) == 0 {
			raw, err := w.ReadRange(offsets[0], offsets[1])
			if err != nil {
				return nil, err
			}

			codec, err := w.registry.Lookup("any")
			if err != nil {
				return nil, err
			}

			return codec.Decode(raw)
		}

		return newRowView(offsets, w.columns, w, w.registry), nil
	}

	if len(w.columns) == 0 {
		return nil, wrapErr(ErrLookup, "fdd: key %v not found", key)
	}

	s := newSetter(w, key)
	w.unfinished[key] = s

	return s, nil
}

// SetProperty attaches a named opaque value to the file.
func (w *Writer) SetProperty(name string, value any) { w.properties[name] = value }

// DeleteProperty removes a previously-set property.
func (w *Writer) DeleteProperty(name string) { delete(w.properties, name) }

// MakeSplit builds a named split index from rows, a list of keys already
// present in the live row index. keyless requests the positional variant;
// preserveOrder=false attempts a sorted-comparable variant (falling back to
// general if the keys aren't comparable); otherwise a general variant is
// used. Overwriting an existing split requires overwrite=true.
func (w *Writer) MakeSplit(name string, rows []any, overwrite, keyless, preserveOrder bool) error {
	if _, exists := w.splits[name]; exists && !overwrite {
		return wrapErr(ErrLookup, "fdd: split %q already exists (pass overwrite)", name)
	}

	splitRows := make([]splitRow, len(rows))

	for i, raw := range rows {
		k := normalizeKey(raw)

		l, err := w.index.Get(k)
		if err != nil {
			return wrapErr(ErrLookup, "fdd: split %q references unknown key %v", name, k)
		}

		splitRows[i] = splitRow{key: k, offsets: l.ToSlice()}
	}

	si, err := buildSplit(splitRows, keyless, preserveOrder, index.DefaultByteWidth)
	if err != nil {
		return err
	}

	w.splits[name] = si

	return nil
}

// AddToSplit merges additional keys, already present in the live row
// index, into an existing split. Only general-variant splits are
// supported; a sorted or keyless split fails with ErrSchema.
func (w *Writer) AddToSplit(name string, rows []any) error {
	si, ok := w.splits[name]
	if !ok {
		return wrapErr(ErrLookup, "fdd: split %q not found", name)
	}

	if si.kind != splitGeneral {
		return wrapErr(ErrSchema, "fdd: add_to_split only supports general-variant splits")
	}

	for _, raw := range rows {
		k := normalizeKey(raw)

		l, err := w.index.Get(k)
		if err != nil {
			return wrapErr(ErrLookup, "fdd: split %q references unknown key %v", name, k)
		}

		if err := si.general.Set(k, l.ToSlice()); err != nil {
			return err
		}
	}

	return nil
}

// Close finalizes any pending setters, emits the column definition,
// properties, splits (including the canonical all_rows), columns, section
// table, and 8-byte trailer footer, then truncates and closes the file.
func (w *Writer) Close() (*CloseReport, error) {
	if w.closed {
		return &CloseReport{}, nil
	}

	report := &CloseReport{}

	if len(w.unfinished) > unfinishedSetterWarnThreshold {
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"fdd: %d rows were left as partial setters instead of being explicitly finalized; "+
				"call Setter.Finalize explicitly to avoid this warning", len(w.unfinished)))
	}

	for key, s := range w.unfinished {
		if err := s.Finalize(); err != nil {
			return nil, fmt.Errorf("fdd: finalizing pending row %v at close: %w", key, err)
		}
	}

	table := layout.NewTable()

	if len(w.columns) > 0 {
		b, err := json.Marshal(w.columns)
		if err != nil {
			return nil, fmt.Errorf("fdd: encoding column_def: %w", err)
		}

		start, end, err := w.appendBytes(b)
		if err != nil {
			return nil, err
		}

		table.Set(layout.ColumnDefTag, layout.Range{Start: start, End: end})
	}

	for name, val := range w.properties {
		codec, err := w.registry.Lookup("any")
		if err != nil {
			return nil, err
		}

		b, err := codec.Encode(val)
		if err != nil {
			return nil, fmt.Errorf("fdd: encoding property %s: %w", name, err)
		}

		start, end, err := w.appendBytes(b)
		if err != nil {
			return nil, err
		}

		table.Set(layout.PropPrefix+name, layout.Range{Start: start, End: end})
	}

	w.splits["all_rows"] = newGeneralSplit(w.index)

	for name, si := range w.splits {
		b, err := serializeSplit(si)
		if err != nil {
			return nil, fmt.Errorf("fdd: encoding split %s: %w", name, err)
		}

		start, end, err := w.appendBytes(b)
		if err != nil {
			return nil, err
		}

		table.Set(layout.SplitPrefix+name, layout.Range{Start: start, End: end})
	}

	if len(w.columns) > 0 {
		b, err := json.Marshal(w.columns.Names())
		if err != nil {
			return nil, fmt.Errorf("fdd: encoding columns: %w", err)
		}

		start, end, err := w.appendBytes(b)
		if err != nil {
			return nil, err
		}

		table.Set(layout.ColumnsTag, layout.Range{Start: start, End: end})
	}

	n, err := layout.WriteTrailer(w.file, table)
	if err != nil {
		return nil, err
	}

	w.pos += uint64(n)

	// A reopened file may have been longer than what this close pass
	// re-emits (e.g. a split was dropped); trim any stale tail left over
	// from the prior close so the file ends exactly at the new trailer.
	if err := w.file.Truncate(int64(w.pos)); err != nil {
		return nil, fmt.Errorf("%w: truncating %s to %d: %v", ErrIO, w.path, w.pos, err)
	}

	if err := w.file.Sync(); err != nil {
		return nil, fmt.Errorf("%w: syncing %s: %v", ErrIO, w.path, err)
	}

	if err := w.file.Close(); err != nil {
		return nil, fmt.Errorf("%w: closing %s: %v", ErrIO, w.path, err)
	}

	w.closed = true

	return report, nil
}

// ReopenAfterFork closes and reopens this writer's file descriptor,
// eliminating any shared-offset race with the parent process. Go has no
// fork hook, so callers that fork must invoke this explicitly in the child.
func (w *Writer) ReopenAfterFork() error {
	_ = w.file.Close()

	f, err := w.fsys.OpenFile(w.path, os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("%w: reopening %s after fork: %v", ErrIO, w.path, err)
	}

	if _, err := f.Seek(int64(w.pos), 0); err != nil {
		return fmt.Errorf("%w: seeking to %d after fork: %v", ErrIO, w.pos, err)
	}

	w.file = f

	if identity, err := getFileIdentity(f); err == nil {
		w.identity = identity
	}

	return nil
}

package fdd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tstandley/freeze-dried-data/index"
	"github.com/tstandley/freeze-dried-data/layout"
	"github.com/tstandley/freeze-dried-data/pkg/fs"
)

// CellRef selects a single cell by (row key, column name): passing a CellRef
// to Reader.Get resolves the column directly and returns the decoded cell
// without building a full RowView.
type CellRef struct {
	Row    any
	Column string
}

// Entry is one (key, row) pair yielded by Reader.Items, using a
// range-over-func iterator.
type Entry struct {
	Key any
	Row *RowView
}

// Reader is the read-only (or same-size-overwrite-enabled) side of a
// freeze-dried-data file.
type Reader struct {
	fsys     fs.FS
	path     string
	file     fs.File
	registry *Registry

	columns ColumnDef
	table   *layout.Table

	propRanges map[string]layout.Range
	propCache  map[string]any

	splits           map[string]*splitIndex
	current          *splitIndex
	currentSplitName string

	allowCellMod bool
	closed       bool
	identity     fileIdentity

	lastKey  any
	lastView *RowView
}

// OpenReader opens a single freeze-dried-data file (no comma/caret
// multi-path or split-selector grammar; use Open for the full path syntax).
func OpenReader(fsys fs.FS, path string, opts ReaderOptions) (*Reader, error) {
	registry := opts.Registry
	if registry == nil {
		registry = DefaultRegistry
	}

	split := opts.Split
	if split == "" {
		split = "all_rows"
	}

	flag := os.O_RDONLY
	if opts.AllowCellModification {
		flag = os.O_RDWR
	}

	f, err := fsys.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrIO, path, err)
	}

	r := &Reader{
		fsys:         fsys,
		path:         path,
		file:         f,
		registry:     registry,
		propCache:    make(map[string]any),
		splits:       make(map[string]*splitIndex),
		allowCellMod: opts.AllowCellModification,
	}

	if identity, err := getFileIdentity(f); err == nil {
		r.identity = identity
	}

	if err := r.loadTrailer(); err != nil {
		f.Close()
		return nil, err
	}

	if err := r.LoadNewSplit(split); err != nil {
		f.Close()
		return nil, err
	}

	return r, nil
}

func (r *Reader) loadTrailer() error {
	info, err := r.file.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %s: %v", ErrIO, r.path, err)
	}

	table, _, err := layout.ReadTrailer(readerAtFile{r.file}, info.Size())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFormat, err)
	}

	r.table = table

	if rg, ok := table.Get(layout.ColumnDefTag); ok {
		b, err := pread(r.file, rg.Start, rg.End)
		if err != nil {
			return err
		}

		var def ColumnDef
		if err := json.Unmarshal(b, &def); err != nil {
			return fmt.Errorf("%w: decoding column_def: %v", ErrFormat, err)
		}

		r.columns = def
	}

	r.propRanges = make(map[string]layout.Range)
	for _, name := range table.TagsWithPrefix(layout.PropPrefix) {
		rg, _ := table.Get(layout.PropPrefix + name)
		r.propRanges[name] = rg
	}

	return nil
}

func (r *Reader) numVals() int { return numValsFor(r.columns) }

// loadSplitByName fetches (loading from the file if needed, and caching)
// the raw split named name.
func (r *Reader) loadSplitByName(name string) (*splitIndex, error) {
	if si, ok := r.splits[name]; ok {
		return si, nil
	}

	rg, ok := r.table.Get(layout.SplitPrefix + name)
	if !ok {
		return nil, wrapErr(ErrLookup, "fdd: split %q not found", name)
	}

	b, err := pread(r.file, rg.Start, rg.End)
	if err != nil {
		return nil, err
	}

	si, err := deserializeSplit(b, r.numVals())
	if err != nil {
		return nil, err
	}

	r.splits[name] = si

	return si, nil
}

// LoadNewSplit rebinds the reader's live split to name, which may be a
// plain split name, a `A+B[+C...]` union expression, or a `name$expr`
// filter expression.
func (r *Reader) LoadNewSplit(name string) error {
	si, err := r.resolveSplitExpr(name)
	if err != nil {
		return err
	}

	r.current = si
	r.currentSplitName = name
	r.lastKey = nil
	r.lastView = nil

	return nil
}

func (r *Reader) resolveSplitExpr(expr string) (*splitIndex, error) {
	if base, predExpr, hasPred := strings.Cut(expr, "$"); hasPred {
		baseSplit, err := r.resolveSplitExpr(base)
		if err != nil {
			return nil, err
		}

		pred, err := compilePredicate(r.columns, predExpr)
		if err != nil {
			return nil, err
		}

		return r.filterSplit(baseSplit, pred)
	}

	parts := strings.Split(expr, "+")
	if len(parts) == 1 {
		return r.loadSplitByName(parts[0])
	}

	operands := make([]*splitIndex, len(parts))

	for i, p := range parts {
		si, err := r.resolveSplitExpr(p)
		if err != nil {
			return nil, err
		}

		operands[i] = si
	}

	return unionSplits(operands)
}

// filterSplit applies pred to every row in base, keyed by the original
// keys, producing a general-variant split.
func (r *Reader) filterSplit(base *splitIndex, pred func(*RowView) bool) (*splitIndex, error) {
	var rows []splitRow

	for _, k := range base.Keys() {
		l, ok, err := base.Get(k)
		if err != nil {
			return nil, err
		}

		if !ok {
			continue
		}

		offsets := l.ToSlice()
		view := newRowView(offsets, r.columns, r, r.registry)

		if pred(view) {
			rows = append(rows, splitRow{key: normalizeKey(k), offsets: offsets})
		}
	}

	return buildSplit(rows, false, true, index.DefaultByteWidth)
}

// LoadKeys rebuilds the current split with keys produced by keyFn applied
// to each row, optionally dropping rows for which filterFn returns false.
// A keyless source split is rejected: its packed buffer carries no
// self-describing arity to safely rebuild a General index from.
func (r *Reader) LoadKeys(keyFn func(*RowView) any, filterFn func(*RowView) bool) error {
	if r.current.kind == splitKeyless {
		return wrapErr(ErrSchema, "fdd: load_keys requires a keyed (general or sorted) source split")
	}

	var rows []splitRow

	for _, k := range r.current.Keys() {
		l, ok, err := r.current.Get(k)
		if err != nil {
			return err
		}

		if !ok {
			continue
		}

		offsets := l.ToSlice()
		view := newRowView(offsets, r.columns, r, r.registry)

		if filterFn != nil && !filterFn(view) {
			continue
		}

		rows = append(rows, splitRow{key: normalizeKey(keyFn(view)), offsets: offsets})
	}

	si, err := buildSplit(rows, false, true, index.DefaultByteWidth)
	if err != nil {
		return err
	}

	r.current = si
	r.lastKey = nil
	r.lastView = nil

	return nil
}

// Filter is the Go-callable equivalent of the `name$expr` grammar: it
// builds a new general-variant split over the current split's rows.
func (r *Reader) Filter(pred func(*RowView) bool) error {
	si, err := r.filterSplit(r.current, pred)
	if err != nil {
		return err
	}

	r.current = si
	r.lastKey = nil
	r.lastView = nil

	return nil
}

// Len returns the number of rows in the current split.
func (r *Reader) Len() int { return r.current.Len() }

// Contains reports whether key is present in the current split.
func (r *Reader) Contains(key any) bool {
	_, ok, _ := r.current.Get(normalizeKey(key))
	return ok
}

// Keys returns the current split's keys in its natural order.
func (r *Reader) Keys() []any { return r.current.Keys() }

// GetAvailableSplits lists every split tag stored in the file's trailer.
func (r *Reader) GetAvailableSplits() []string { return r.table.TagsWithPrefix(layout.SplitPrefix) }

// Get resolves key against the current split. A CellRef resolves a single
// cell directly; any other key is looked up as a row, with the single most
// recently requested row view cached and returned unchanged on repeat
// access.
func (r *Reader) Get(key any) (any, error) {
	if ref, ok := key.(CellRef); ok {
		ref.Row = normalizeKey(ref.Row)
		return r.getCell(ref)
	}

	key = normalizeKey(key)

	if r.lastView != nil && r.lastKey == key {
		return r.rowResult(r.lastView)
	}

	l, ok, err := r.current.Get(key)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, wrapErr(ErrLookup, "fdd: key %v not found", key)
	}

	view := newRowView(l.ToSlice(), r.columns, r, r.registry)
	r.lastKey = key
	r.lastView = view

	return r.rowResult(view)
}

// rowResult returns the schemaless decoded blob, or the RowView itself for
// a schema'd file.
func (r *Reader) rowResult(view *RowView) (any, error) {
	if len(r.columns) == 0 {
		return view.Get(0)
	}

	return view, nil
}

func (r *Reader) getCell(ref CellRef) (any, error) {
	l, ok, err := r.current.Get(ref.Row)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, wrapErr(ErrLookup, "fdd: row %v not found", ref.Row)
	}

	view := newRowView(l.ToSlice(), r.columns, r, r.registry)

	return view.GetName(ref.Column)
}

// Items returns a range-over-func iterator over (key, row) pairs in the
// current split's order, in the style of pkg/slotcache's Seq.
func (r *Reader) Items() func(yield func(Entry) bool) {
	return func(yield func(Entry) bool) {
		for _, k := range r.current.Keys() {
			l, ok, err := r.current.Get(k)
			if err != nil || !ok {
				continue
			}

			view := newRowView(l.ToSlice(), r.columns, r, r.registry)
			if !yield(Entry{Key: k, Row: view}) {
				return
			}
		}
	}
}

// GetProperty loads (and caches) the named property's decoded value.
func (r *Reader) GetProperty(name string) (any, error) {
	if v, ok := r.propCache[name]; ok {
		return v, nil
	}

	rg, ok := r.propRanges[name]
	if !ok {
		return nil, wrapErr(ErrLookup, "fdd: property %q not found", name)
	}

	b, err := pread(r.file, rg.Start, rg.End)
	if err != nil {
		return nil, err
	}

	codec, err := r.registry.Lookup("any")
	if err != nil {
		return nil, err
	}

	v, err := codec.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding property %s: %v", ErrFormat, name, err)
	}

	r.propCache[name] = v

	return v, nil
}

// PropertyNames lists every property stored in the file.
func (r *Reader) PropertyNames() []string { return r.table.TagsWithPrefix(layout.PropPrefix) }

// Columns returns the file's schema, empty for a schemaless file.
func (r *Reader) Columns() ColumnDef { return r.columns }

// Close releases the reader's file handle.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}

	r.closed = true

	return r.file.Close()
}

// --- cellSource ---

func (r *Reader) ReadRange(start, end uint64) ([]byte, error) { return pread(r.file, start, end) }

func (r *Reader) Mutable() bool { return r.allowCellMod }

func (r *Reader) WriteRange(start uint64, data []byte) error {
	if !r.allowCellMod {
		return wrapErr(ErrState, "fdd: cell modification is not enabled on this reader")
	}

	return pwrite(r.file, start, data)
}

// ReopenAfterFork closes and reopens this reader's file descriptor so that
// a forked child doesn't share the parent's file offset.
func (r *Reader) ReopenAfterFork() error {
	_ = r.file.Close()

	flag := os.O_RDONLY
	if r.allowCellMod {
		flag = os.O_RDWR
	}

	f, err := r.fsys.OpenFile(r.path, flag, 0)
	if err != nil {
		return fmt.Errorf("%w: reopening %s after fork: %v", ErrIO, r.path, err)
	}

	r.file = f

	if identity, err := getFileIdentity(f); err == nil {
		r.identity = identity
	}

	return nil
}

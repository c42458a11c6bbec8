package fdd

import "fmt"

// cellSource is the read/write surface a RowView needs from whatever file
// holds its bytes: a reader, or a writer being actively built.
type cellSource interface {
	// ReadRange returns the raw bytes in [start, end).
	ReadRange(start, end uint64) ([]byte, error)

	// Mutable reports whether WriteRange is permitted (AllowCellModification).
	Mutable() bool

	// WriteRange overwrites len(data) bytes starting at start. Callers must
	// only call this when len(data) equals the existing cell's length.
	WriteRange(start uint64, data []byte) error
}

// RowView is a lazily-decoded view over one row's cells, cached by column
// index once read.
type RowView struct {
	offsets  []uint64
	columns  ColumnDef
	nameIdx  map[string]int
	cache    []cellSlot
	parent   cellSource
	registry *Registry
}

type cellSlot struct {
	set bool
	val any
}

// newRowView constructs a view over offsets (length len(columns)+1, or 2 for
// schemaless) backed by parent.
func newRowView(offsets []uint64, columns ColumnDef, parent cellSource, registry *Registry) *RowView {
	n := len(columns)
	if n == 0 {
		n = 1
	}

	return &RowView{
		offsets:  offsets,
		columns:  columns,
		nameIdx:  columns.nameIndex(),
		cache:    make([]cellSlot, n),
		parent:   parent,
		registry: registry,
	}
}

func (v *RowView) numCells() int { return len(v.cache) }

func (v *RowView) codecFor(i int) string {
	if len(v.columns) == 0 {
		return "any"
	}

	return v.columns[i].Codec
}

// Get returns the decoded value of cell i, decoding and caching it on first
// access. An empty offset range decodes to nil, the null/absent cell
// sentinel.
func (v *RowView) Get(i int) (any, error) {
	if i < 0 || i >= v.numCells() {
		return nil, wrapErr(ErrSchema, "fdd: column index %d out of range [0,%d)", i, v.numCells())
	}

	if v.cache[i].set {
		return v.cache[i].val, nil
	}

	start, end := v.offsets[i], v.offsets[i+1]

	if start == end {
		v.cache[i] = cellSlot{set: true, val: nil}
		return nil, nil
	}

	raw, err := v.parent.ReadRange(start, end)
	if err != nil {
		return nil, err
	}

	codec, err := v.registry.Lookup(v.codecFor(i))
	if err != nil {
		return nil, err
	}

	val, err := codec.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("fdd: decoding column %d: %w", i, err)
	}

	v.cache[i] = cellSlot{set: true, val: val}

	return val, nil
}

// MustGet is Get without an error return, for callers (tests, REPLs) that
// have already established the cell is well-formed and want the bare value.
// It panics if decoding fails.
func (v *RowView) MustGet(i int) any {
	val, err := v.Get(i)
	if err != nil {
		panic(err)
	}

	return val
}

// GetName resolves name to a column index via the schema's name->index map
// and returns its decoded value.
func (v *RowView) GetName(name string) (any, error) {
	i, ok := v.nameIdx[name]
	if !ok {
		return nil, wrapErr(ErrSchema, "fdd: unknown column %q", name)
	}

	return v.Get(i)
}

// Contains reports whether name is a column in this row's schema.
func (v *RowView) Contains(name string) bool {
	_, ok := v.nameIdx[name]
	return ok
}

// Set assigns cell i's value. When the parent was not opened with
// AllowCellModification, only this view's cache is updated and the file is
// left untouched. Otherwise the value is encoded and overwritten in place,
// which requires it to be exactly as long as the existing cell; a different
// length returns ErrState without modifying the file.
func (v *RowView) Set(i int, val any) error {
	if i < 0 || i >= v.numCells() {
		return wrapErr(ErrSchema, "fdd: column index %d out of range [0,%d)", i, v.numCells())
	}

	if !v.parent.Mutable() {
		// Without AllowCellModification, mutation only updates the cache.
		v.cache[i] = cellSlot{set: true, val: val}
		return nil
	}

	codec, err := v.registry.Lookup(v.codecFor(i))
	if err != nil {
		return err
	}

	encoded, err := codec.Encode(val)
	if err != nil {
		return fmt.Errorf("fdd: encoding column %d: %w", i, err)
	}

	start, end := v.offsets[i], v.offsets[i+1]
	if uint64(len(encoded)) != end-start {
		return wrapErr(ErrState, "fdd: cell size mismatch: existing cell is %d bytes, encoded value is %d bytes", end-start, len(encoded))
	}

	if err := v.parent.WriteRange(start, encoded); err != nil {
		return err
	}

	v.cache[i] = cellSlot{set: true, val: val}

	return nil
}

// SetName is Set by column name.
func (v *RowView) SetName(name string, val any) error {
	i, ok := v.nameIdx[name]
	if !ok {
		return wrapErr(ErrSchema, "fdd: unknown column %q", name)
	}

	return v.Set(i, val)
}

// AsDict decodes every cell and returns name -> value. Schemaless rows use
// the single column name "value".
func (v *RowView) AsDict() (map[string]any, error) {
	out := make(map[string]any, v.numCells())

	if len(v.columns) == 0 {
		val, err := v.Get(0)
		if err != nil {
			return nil, err
		}

		out["value"] = val

		return out, nil
	}

	for i, col := range v.columns {
		val, err := v.Get(i)
		if err != nil {
			return nil, err
		}

		out[col.Name] = val
	}

	return out, nil
}

// Keys returns the column names, in schema order.
func (v *RowView) Keys() []string { return v.columns.Names() }

// Offsets returns the row's raw offset tuple (length numCells()+1), used by
// Writer.Set's copy-through path.
func (v *RowView) Offsets() []uint64 { return v.offsets }

// IsCached reports whether cell i has already been read or explicitly set
// in this view, used by Writer.Set to decide between re-encoding a
// modified cell and copying raw bytes for an untouched one.
func (v *RowView) IsCached(i int) bool { return v.cache[i].set }

// CachedValue returns the cached value for cell i; callers must check
// IsCached first.
func (v *RowView) CachedValue(i int) any { return v.cache[i].val }

// Source returns the cellSource backing this view, used by copy-through
// paths that need to read raw bytes directly.
func (v *RowView) Source() cellSource { return v.parent }

// Columns returns the schema this view was built against.
func (v *RowView) Columns() ColumnDef { return v.columns }

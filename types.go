package fdd

// normalizeKey widens any fixed-width signed or unsigned integer key to
// int64 before it ever reaches an index's key map. Go's `any`-keyed maps
// compare by dynamic type as well as value, so an int(5) and an int64(5)
// are distinct keys even though an on-disk row key has no notion of
// integer width; every entry point that accepts a caller-supplied key
// routes through this first so "the same integer" is always "the same
// key", regardless of whether it arrived as a literal int or came back
// from a deserialized split as int64.
func normalizeKey(k any) any {
	switch v := k.(type) {
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	default:
		return k
	}
}

// Column is one entry of a schema: a name paired with a codec.
type Column struct {
	Name  string
	Codec string
}

// ColumnDef is the ordered column schema. Order defines each column's
// positional index; names must be unique. A nil/empty ColumnDef means the
// file is schemaless.
type ColumnDef []Column

// Names returns the column names in schema order.
func (c ColumnDef) Names() []string {
	out := make([]string, len(c))
	for i, col := range c {
		out[i] = col.Name
	}

	return out
}

// IndexOf returns the positional index of name, or -1 if not present.
func (c ColumnDef) IndexOf(name string) int {
	for i, col := range c {
		if col.Name == name {
			return i
		}
	}

	return -1
}

// nameIndex builds an explicit name->column_index map rather than relying
// on any form of dynamic attribute access.
func (c ColumnDef) nameIndex() map[string]int {
	m := make(map[string]int, len(c))
	for i, col := range c {
		m[col.Name] = i
	}

	return m
}

// ReaderOptions configures open_reader.
type ReaderOptions struct {
	// Split selects the initial split; defaults to "all_rows".
	Split string

	// AllowCellModification enables in-place same-size cell overwrite.
	AllowCellModification bool

	// Registry overrides the codec registry; defaults to DefaultRegistry.
	Registry *Registry
}

// WriterOptions configures open_writer.
type WriterOptions struct {
	// Columns defines the schema; nil means schemaless.
	Columns ColumnDef

	// Overwrite allows creating over an existing file.
	Overwrite bool

	// Reopen opens an existing, previously-closed file for
	// reopen-and-extend instead of creating a new one.
	Reopen bool

	// AllowCellModification enables in-place same-size cell overwrite for
	// rows read back via Get during the same writer session.
	AllowCellModification bool

	// Registry overrides the codec registry; defaults to DefaultRegistry.
	Registry *Registry
}

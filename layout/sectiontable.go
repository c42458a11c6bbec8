package layout

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Tag prefixes used in the section table.
const (
	PropPrefix     = "_prop_"
	SplitPrefix    = "_split_"
	ColumnsTag     = "_columns_"
	ColumnDefTag   = "_column_def_"
)

// Range is a half-open byte range [Start, End) within the file.
type Range struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// Len returns End - Start.
func (r Range) Len() uint64 { return r.End - r.Start }

// Table is the section table: tagged name -> byte range. It is the single
// record a reader decodes from the trailer before it can resolve anything
// else in the file.
type Table struct {
	entries map[string]Range
}

// NewTable returns an empty section table.
func NewTable() *Table {
	return &Table{entries: make(map[string]Range)}
}

// Set records the byte range for a tagged name, overwriting any prior entry.
func (t *Table) Set(tag string, r Range) {
	t.entries[tag] = r
}

// Get returns the byte range for tag, if present.
func (t *Table) Get(tag string) (Range, bool) {
	r, ok := t.entries[tag]
	return r, ok
}

// Tags returns all tags, sorted, for deterministic iteration (e.g. by
// get_available_splits).
func (t *Table) Tags() []string {
	out := make([]string, 0, len(t.entries))
	for k := range t.entries {
		out = append(out, k)
	}

	sort.Strings(out)

	return out
}

// TagsWithPrefix returns tags beginning with prefix, with the prefix
// stripped, sorted.
func (t *Table) TagsWithPrefix(prefix string) []string {
	var out []string

	for _, tag := range t.Tags() {
		if len(tag) > len(prefix) && tag[:len(prefix)] == prefix {
			out = append(out, tag[len(prefix):])
		}
	}

	return out
}

// Encode serializes the table to bytes, the representation written just
// before the trailer's 8-byte length footer.
func (t *Table) Encode() ([]byte, error) {
	b, err := json.Marshal(t.entries)
	if err != nil {
		return nil, fmt.Errorf("layout: encoding section table: %w", err)
	}

	return b, nil
}

// DecodeTable parses bytes previously produced by Table.Encode.
func DecodeTable(b []byte) (*Table, error) {
	entries := make(map[string]Range)
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("layout: decoding section table: %w", err)
	}

	return &Table{entries: entries}, nil
}

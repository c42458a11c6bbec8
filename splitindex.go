package fdd

import (
	"fmt"

	"github.com/tstandley/freeze-dried-data/index"
)

// splitKind identifies which of the three packed index variants backs a
// splitIndex. Go has no sum types, so this models the three variants as a
// tagged union instead of an interface, since the concrete types
// (Keyless/Sorted/General) have incompatible key types (int vs any) that
// don't collapse cleanly into one interface without boxing every keyless
// lookup through `any`.
type splitKind int

const (
	splitGeneral splitKind = iota
	splitSorted
	splitKeyless
)

type splitIndex struct {
	kind    splitKind
	general *index.General
	sorted  *index.Sorted
	keyless *index.Keyless
}

func newGeneralSplit(g *index.General) *splitIndex { return &splitIndex{kind: splitGeneral, general: g} }
func newSortedSplit(s *index.Sorted) *splitIndex    { return &splitIndex{kind: splitSorted, sorted: s} }
func newKeylessSplit(k *index.Keyless) *splitIndex  { return &splitIndex{kind: splitKeyless, keyless: k} }

func (s *splitIndex) Len() int {
	switch s.kind {
	case splitGeneral:
		return s.general.Len()
	case splitSorted:
		return s.sorted.Len()
	default:
		return s.keyless.Len()
	}
}

// Keys returns keys in the variant's natural iteration order: insertion
// order for general, sorted order for sorted, 0..N-1 for keyless.
func (s *splitIndex) Keys() []any {
	switch s.kind {
	case splitGeneral:
		return s.general.Keys()
	case splitSorted:
		return s.sorted.Keys()
	default:
		out := make([]any, s.keyless.Len())
		for i, k := range s.keyless.Keys() {
			out[i] = k
		}

		return out
	}
}

// Get resolves key to its offset tuple. For a keyless variant, key must be
// an int or int64 (the row's position).
func (s *splitIndex) Get(key any) (index.IntList, bool, error) {
	switch s.kind {
	case splitGeneral:
		if !s.general.Contains(key) {
			return index.IntList{}, false, nil
		}

		l, err := s.general.Get(key)

		return l, true, err
	case splitSorted:
		if !s.sorted.Contains(key) {
			return index.IntList{}, false, nil
		}

		l, err := s.sorted.Get(key)

		return l, true, err
	default:
		pos, ok := asInt(key)
		if !ok || !s.keyless.Contains(pos) {
			return index.IntList{}, false, nil
		}

		l, err := s.keyless.Get(pos)

		return l, true, err
	}
}

func asInt(key any) (int, bool) {
	switch v := key.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case uint64:
		return int(v), true
	default:
		return 0, false
	}
}

// offsetsFor returns the full []uint64 offset tuple for key, or an
// ErrLookup if absent.
func (s *splitIndex) offsetsFor(key any) ([]uint64, error) {
	l, ok, err := s.Get(key)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, wrapErr(ErrLookup, "fdd: key %v not found", key)
	}

	return l.ToSlice(), nil
}

// buildSplit constructs a splitIndex from an explicit set of (key, offsets)
// pairs, dispatching on the keyless/preserve-order/general combination
// requested by the caller.
func buildSplit(rows []splitRow, keyless, preserveOrder bool, byteWidth int) (*splitIndex, error) {
	if keyless {
		numVals := 0
		if len(rows) > 0 {
			numVals = len(rows[0].offsets)
		}

		k := index.NewKeyless(numVals, byteWidth)

		for i, r := range rows {
			if err := k.Set(i, r.offsets); err != nil {
				return nil, err
			}
		}

		return newKeylessSplit(k), nil
	}

	if !preserveOrder {
		keys := make([]any, len(rows))
		vals := make([][]uint64, len(rows))

		for i, r := range rows {
			keys[i] = r.key
			vals[i] = r.offsets
		}

		sorted, err := index.BuildSorted(keys, vals, byteWidth, index.DefaultLess)
		if err == nil {
			return newSortedSplit(sorted), nil
		}
		// Falls through to general on non-comparable keys.
	}

	numVals := 0
	if len(rows) > 0 {
		numVals = len(rows[0].offsets)
	}

	g := index.NewGeneral(numVals, byteWidth)

	for _, r := range rows {
		if err := g.Set(r.key, r.offsets); err != nil {
			return nil, err
		}
	}

	return newGeneralSplit(g), nil
}

type splitRow struct {
	key     any
	offsets []uint64
}

// unionSplits implements the `A+B[+C...]` split expression grammar.
// All operands must share the same kind.
func unionSplits(parts []*splitIndex) (*splitIndex, error) {
	if len(parts) == 0 {
		return nil, wrapErr(ErrConfig, "fdd: union of zero splits")
	}

	kind := parts[0].kind
	for _, p := range parts[1:] {
		if p.kind != kind {
			return nil, wrapErr(ErrSchema, "fdd: cannot union splits of different index variants")
		}
	}

	if kind == splitKeyless {
		seen := make(map[string]bool)

		var rows []splitRow

		for _, p := range parts {
			for i := 0; i < p.keyless.Len(); i++ {
				l, _ := p.keyless.Get(i)
				offs := l.ToSlice()
				k := fmt.Sprint(offs)

				if seen[k] {
					continue
				}

				seen[k] = true

				rows = append(rows, splitRow{key: len(rows), offsets: offs})
			}
		}

		return buildSplit(rows, true, true, 0)
	}

	// Keyed variants: later operands overwrite earlier ones on collision.
	merged := make(map[any][]uint64)

	var order []any

	for _, p := range parts {
		for _, k := range p.Keys() {
			l, ok, err := p.Get(k)
			if err != nil {
				return nil, err
			}

			if !ok {
				continue
			}

			if _, existed := merged[k]; !existed {
				order = append(order, k)
			}

			merged[k] = l.ToSlice()
		}
	}

	rows := make([]splitRow, len(order))
	for i, k := range order {
		rows[i] = splitRow{key: k, offsets: merged[k]}
	}

	return buildSplit(rows, false, kind == splitGeneral, 0)
}

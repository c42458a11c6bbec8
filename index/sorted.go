package index

import (
	"fmt"
	"sort"
)

// Less compares two index keys, returning whether a orders before b. It
// must be a strict weak ordering over the key type in use; ErrNotComparable
// signals that the caller should fall back to a General index instead.
type Less func(a, b any) bool

// ErrNotComparable is returned by BuildSorted when the supplied keys cannot
// be ordered by less.
var ErrNotComparable = fmt.Errorf("index: keys are not comparable")

// Sorted is the sorted-comparable-key index variant: built once from a
// complete key set, looked up by binary search.
type Sorted struct {
	numVals   int
	byteWidth int
	buf       []byte
	keys      []any
	less      Less
}

// BuildSorted builds a Sorted index from keys and their corresponding rows
// (same length, same order). Keys are re-sorted internally by less; rows
// are laid out in the resulting sorted order.
func BuildSorted(keys []any, rows [][]uint64, byteWidth int, less Less) (*Sorted, error) {
	if byteWidth == 0 {
		byteWidth = DefaultByteWidth
	}

	if len(keys) == 0 {
		return &Sorted{byteWidth: byteWidth, less: less}, nil
	}

	numVals := len(rows[0])

	order := make([]int, len(keys))
	for i := range order {
		order[i] = i
	}

	var sortErr error

	sort.SliceStable(order, func(i, j int) bool {
		if sortErr != nil {
			return false
		}

		defer func() {
			if r := recover(); r != nil {
				sortErr = ErrNotComparable
			}
		}()

		return less(keys[order[i]], keys[order[j]])
	})

	if sortErr != nil {
		return nil, sortErr
	}

	s := &Sorted{numVals: numVals, byteWidth: byteWidth, less: less}
	s.keys = make([]any, len(keys))

	for i, idx := range order {
		s.keys[i] = keys[idx]

		if len(rows[idx]) != numVals {
			return nil, fmt.Errorf("index: sorted row has %d values, want %d", len(rows[idx]), numVals)
		}

		for _, v := range rows[idx] {
			s.buf = appendUint(s.buf, v, byteWidth)
		}
	}

	return s, nil
}

// NewSortedFromBuffer wraps an already-packed buffer and its sorted key
// list, as reconstructed when a split section is loaded from a file.
func NewSortedFromBuffer(numVals, byteWidth int, buf []byte, sortedKeys []any, less Less) *Sorted {
	if byteWidth == 0 {
		byteWidth = DefaultByteWidth
	}

	return &Sorted{numVals: numVals, byteWidth: byteWidth, buf: buf, keys: sortedKeys, less: less}
}

// Len returns the number of keys stored.
func (s *Sorted) Len() int { return len(s.keys) }

// Contains reports whether key is present, tolerating non-comparable keys
// by returning false rather than panicking.
func (s *Sorted) Contains(key any) bool {
	_, ok := s.find(key)
	return ok
}

// Get returns the IntList view for key.
func (s *Sorted) Get(key any) (IntList, error) {
	idx, ok := s.find(key)
	if !ok {
		return IntList{}, fmt.Errorf("index: key %v not found", key)
	}

	rowBytes := s.numVals * s.byteWidth

	return NewIntList(s.buf, idx*rowBytes, s.numVals, s.byteWidth), nil
}

func (s *Sorted) find(key any) (int, bool) {
	defer func() { recover() }() //nolint:errcheck // non-comparable keys just miss

	i := sort.Search(len(s.keys), func(i int) bool {
		return !s.less(s.keys[i], key)
	})

	if i < len(s.keys) && !s.less(key, s.keys[i]) && !s.less(s.keys[i], key) {
		return i, true
	}

	return 0, false
}

// Keys returns keys in sorted order.
func (s *Sorted) Keys() []any {
	out := make([]any, len(s.keys))
	copy(out, s.keys)

	return out
}

// Buffer returns the raw packed buffer, for serialization.
func (s *Sorted) Buffer() []byte { return s.buf }

// NumVals returns the number of integers per row.
func (s *Sorted) NumVals() int { return s.numVals }

// ByteWidth returns the packed integer width in bytes.
func (s *Sorted) ByteWidth() int { return s.byteWidth }

// DefaultLess provides a Less over the common scalar key types FDD rows
// use: string, int, int64, uint64 and float64, each compared only with its
// own type. It returns ErrNotComparable (via panic, caught by BuildSorted)
// for anything else, signaling the writer should fall back to General.
func DefaultLess(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			panic(ErrNotComparable)
		}

		return av < bv
	case int:
		bv, ok := b.(int)
		if !ok {
			panic(ErrNotComparable)
		}

		return av < bv
	case int64:
		bv, ok := b.(int64)
		if !ok {
			panic(ErrNotComparable)
		}

		return av < bv
	case uint64:
		bv, ok := b.(uint64)
		if !ok {
			panic(ErrNotComparable)
		}

		return av < bv
	case float64:
		bv, ok := b.(float64)
		if !ok {
			panic(ErrNotComparable)
		}

		return av < bv
	default:
		panic(ErrNotComparable)
	}
}

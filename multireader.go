package fdd

import (
	"fmt"

	"github.com/tstandley/freeze-dried-data/pkg/fs"
)

// MultiReader is a virtual concatenation of several readers under one key
// space.
type MultiReader struct {
	readers    []*Reader
	allKeyless bool
	Warnings   []string
}

// OpenMultiReader opens every path in paths with opts and composes them.
// If every constituent's loaded split is keyless, the combined keyspace is
// 0..ΣN-1; otherwise the first constituent containing a key wins, and
// mixing keyless and keyed constituents is flagged with a warning.
func OpenMultiReader(fsys fs.FS, paths []string, opts ReaderOptions) (*MultiReader, error) {
	m := &MultiReader{}

	keylessCount := 0

	for _, p := range paths {
		r, err := OpenReader(fsys, p, opts)
		if err != nil {
			for _, opened := range m.readers {
				opened.Close()
			}

			return nil, err
		}

		m.readers = append(m.readers, r)

		if r.current.kind == splitKeyless {
			keylessCount++
		}
	}

	m.allKeyless = keylessCount == len(m.readers)

	if keylessCount > 0 && !m.allKeyless {
		m.Warnings = append(m.Warnings, "fdd: MultiReader mixes keyless and keyed constituents; lookup order is significant")
	}

	return m, nil
}

// Len returns the sum of every constituent's current-split length.
func (m *MultiReader) Len() int {
	total := 0
	for _, r := range m.readers {
		total += r.Len()
	}

	return total
}

// Get resolves key across constituents. In the all-keyless case, key must
// be an int and is resolved by walking constituents, subtracting each
// one's length. Otherwise the first constituent containing key wins.
func (m *MultiReader) Get(key any) (any, error) {
	key = normalizeKey(key)

	if m.allKeyless {
		pos, ok := asInt(key)
		if !ok {
			return nil, wrapErr(ErrLookup, "fdd: keyless multi-reader requires an integer key, got %v", key)
		}

		for _, r := range m.readers {
			if pos < r.Len() {
				return r.Get(pos)
			}

			pos -= r.Len()
		}

		return nil, wrapErr(ErrLookup, "fdd: index %v out of range", key)
	}

	for _, r := range m.readers {
		if r.Contains(key) {
			return r.Get(key)
		}
	}

	return nil, wrapErr(ErrLookup, "fdd: key %v not found in any constituent", key)
}

// Close closes every constituent reader.
func (m *MultiReader) Close() error {
	var firstErr error

	for _, r := range m.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("fdd: closing constituent reader: %w", err)
		}
	}

	return firstErr
}

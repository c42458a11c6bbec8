package index

import "fmt"

// General is the hash-keyed index variant: key -> dense slot, row offsets
// packed in insertion order. New keys append a slot; re-assigning an
// existing key rewrites its slot in place.
type General struct {
	numVals   int
	byteWidth int
	buf       []byte
	slot      map[any]int
	order     []any
}

// NewGeneral returns an empty general index storing numVals-integer rows.
func NewGeneral(numVals int, byteWidth int) *General {
	if byteWidth == 0 {
		byteWidth = DefaultByteWidth
	}

	return &General{
		numVals:   numVals,
		byteWidth: byteWidth,
		slot:      make(map[any]int),
	}
}

// NewGeneralFromBuffer wraps an already-packed buffer and its key->slot map,
// as reconstructed when a split section is loaded from a file. keysInOrder
// must list keys in the order their slots were written.
func NewGeneralFromBuffer(numVals, byteWidth int, buf []byte, keysInOrder []any) *General {
	if byteWidth == 0 {
		byteWidth = DefaultByteWidth
	}

	g := &General{numVals: numVals, byteWidth: byteWidth, buf: buf, slot: make(map[any]int, len(keysInOrder)), order: keysInOrder}
	for i, k := range keysInOrder {
		g.slot[k] = i
	}

	return g
}

// Len returns the number of keys stored.
func (g *General) Len() int { return len(g.order) }

// Contains reports whether key has an entry.
func (g *General) Contains(key any) bool {
	_, ok := g.slot[key]
	return ok
}

// Get returns the IntList view for key.
func (g *General) Get(key any) (IntList, error) {
	slot, ok := g.slot[key]
	if !ok {
		return IntList{}, fmt.Errorf("index: key %v not found", key)
	}

	rowBytes := g.numVals * g.byteWidth

	return NewIntList(g.buf, slot*rowBytes, g.numVals, g.byteWidth), nil
}

// Set assigns vals for key, inserting a new slot or overwriting an existing
// one. len(vals) must equal numVals.
func (g *General) Set(key any, vals []uint64) error {
	if len(vals) != g.numVals {
		return fmt.Errorf("index: general row has %d values, want %d", len(vals), g.numVals)
	}

	rowBytes := g.numVals * g.byteWidth

	if slot, ok := g.slot[key]; ok {
		off := slot * rowBytes
		for i, v := range vals {
			putUint(g.buf, off+i*g.byteWidth, v, g.byteWidth)
		}

		return nil
	}

	slot := len(g.order)
	g.slot[key] = slot
	g.order = append(g.order, key)

	for _, v := range vals {
		g.buf = appendUint(g.buf, v, g.byteWidth)
	}

	return nil
}

// Update bulk-assigns rows from another index sharing the same key space,
// in iteration order.
func (g *General) Update(keys []any, rows [][]uint64) error {
	for i, k := range keys {
		if err := g.Set(k, rows[i]); err != nil {
			return err
		}
	}

	return nil
}

// Keys returns keys in insertion order.
func (g *General) Keys() []any {
	out := make([]any, len(g.order))
	copy(out, g.order)

	return out
}

// Buffer returns the raw packed buffer, for serialization.
func (g *General) Buffer() []byte { return g.buf }

// NumVals returns the number of integers per row.
func (g *General) NumVals() int { return g.numVals }

// ByteWidth returns the packed integer width in bytes.
func (g *General) ByteWidth() int { return g.byteWidth }

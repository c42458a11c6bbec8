package index

import "fmt"

// Keyless is the positional index variant: keys are always 0..Len()-1.
// Setting index Len() appends a new row; setting an existing index rewrites
// it in place; any other index is an error.
type Keyless struct {
	numVals   int
	byteWidth int
	buf       []byte
}

// NewKeyless returns an empty keyless index storing numVals-integer rows
// packed at byteWidth bytes each (0 means DefaultByteWidth).
func NewKeyless(numVals int, byteWidth int) *Keyless {
	if byteWidth == 0 {
		byteWidth = DefaultByteWidth
	}

	return &Keyless{numVals: numVals, byteWidth: byteWidth}
}

// NewKeylessFromBuffer wraps an already-packed buffer, as read back from a
// file's split section.
func NewKeylessFromBuffer(numVals, byteWidth int, buf []byte) *Keyless {
	if byteWidth == 0 {
		byteWidth = DefaultByteWidth
	}

	return &Keyless{numVals: numVals, byteWidth: byteWidth, buf: buf}
}

// Len returns the number of rows stored.
func (k *Keyless) Len() int {
	rowBytes := k.numVals * k.byteWidth
	if rowBytes == 0 {
		return 0
	}

	return len(k.buf) / rowBytes
}

// Contains reports whether idx is a valid row position.
func (k *Keyless) Contains(idx int) bool {
	return idx >= 0 && idx < k.Len()
}

// Get returns the IntList view for row idx.
func (k *Keyless) Get(idx int) (IntList, error) {
	if !k.Contains(idx) {
		return IntList{}, fmt.Errorf("index: keyless position %d out of range [0,%d)", idx, k.Len())
	}

	rowBytes := k.numVals * k.byteWidth

	return NewIntList(k.buf, idx*rowBytes, k.numVals, k.byteWidth), nil
}

// Set assigns the row at idx. idx == Len() appends; idx < Len() overwrites
// in place; idx > Len() is an error.
func (k *Keyless) Set(idx int, vals []uint64) error {
	if len(vals) != k.numVals {
		return fmt.Errorf("index: keyless row has %d values, want %d", len(vals), k.numVals)
	}

	n := k.Len()

	switch {
	case idx == n:
		for _, v := range vals {
			k.buf = appendUint(k.buf, v, k.byteWidth)
		}

		return nil
	case idx < n && idx >= 0:
		rowBytes := k.numVals * k.byteWidth
		off := idx * rowBytes

		for i, v := range vals {
			putUint(k.buf, off+i*k.byteWidth, v, k.byteWidth)
		}

		return nil
	default:
		return fmt.Errorf("index: keyless position %d out of range, length is %d", idx, n)
	}
}

// Keys returns 0..Len()-1 in order.
func (k *Keyless) Keys() []int {
	n := k.Len()
	out := make([]int, n)

	for i := range out {
		out[i] = i
	}

	return out
}

// Buffer returns the raw packed buffer, for serialization.
func (k *Keyless) Buffer() []byte { return k.buf }

// NumVals returns the number of integers per row.
func (k *Keyless) NumVals() int { return k.numVals }

// ByteWidth returns the packed integer width in bytes.
func (k *Keyless) ByteWidth() int { return k.byteWidth }

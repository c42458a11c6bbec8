package index

import "fmt"

// DefaultByteWidth is the packed integer width used when a caller does not
// request one explicitly. 6 bytes supports file offsets up to 2^48.
const DefaultByteWidth = 6

// MaxByteWidth is the largest width the packed buffer format supports.
// Offsets never need more than 8 bytes (a uint64), and the encode/decode
// helpers below only know how to handle up to that width.
const MaxByteWidth = 8

// IntList is a read-only, random-access view of a run of fixed-width,
// little-endian unsigned integers packed into a shared byte buffer. It is a
// value type: copying an IntList copies the view, not the underlying bytes.
type IntList struct {
	buf        []byte
	start      int
	length     int
	byteWidth  int
}

// NewIntList returns a view over length integers of byteWidth bytes each,
// starting at byte offset start within buf.
func NewIntList(buf []byte, start, length, byteWidth int) IntList {
	return IntList{buf: buf, start: start, length: length, byteWidth: byteWidth}
}

// Len returns the number of integers in the view.
func (l IntList) Len() int { return l.length }

// ByteWidth returns the packed width of each integer, in bytes.
func (l IntList) ByteWidth() int { return l.byteWidth }

// At returns the i'th integer. Negative i counts from the end. It returns
// an error if i is out of range.
func (l IntList) At(i int) (uint64, error) {
	idx := i
	if idx < 0 {
		idx = l.length + idx
	}

	if idx < 0 || idx >= l.length {
		return 0, fmt.Errorf("index/intlist: index %d out of range [0,%d)", i, l.length)
	}

	off := l.start + idx*l.byteWidth

	var v uint64
	for b := 0; b < l.byteWidth; b++ {
		v |= uint64(l.buf[off+b]) << (8 * b)
	}

	return v, nil
}

// ToSlice materializes the view as a []uint64, for callers that want a
// plain slice (e.g. row offset tuples).
func (l IntList) ToSlice() []uint64 {
	out := make([]uint64, l.length)
	for i := range out {
		out[i], _ = l.At(i)
	}

	return out
}

// appendUint writes v to dst using byteWidth little-endian bytes and returns
// the extended slice.
func appendUint(dst []byte, v uint64, byteWidth int) []byte {
	for b := 0; b < byteWidth; b++ {
		dst = append(dst, byte(v>>(8*b)))
	}

	return dst
}

// putUint overwrites byteWidth little-endian bytes of buf at off with v.
func putUint(buf []byte, off int, v uint64, byteWidth int) {
	for b := 0; b < byteWidth; b++ {
		buf[off+b] = byte(v >> (8 * b))
	}
}

package layout

import (
	"encoding/binary"
	"fmt"
	"io"
)

// FooterSize is the fixed size, in bytes, of the trailer's length footer:
// an 8-byte little-endian uint64 giving the section table's byte length.
const FooterSize = 8

// ReadTrailer reads the section table from the tail of a file of the given
// size, using r for positioned reads. It returns the table and the byte
// offset at which the table starts, which is where everything written
// before it ends.
func ReadTrailer(r io.ReaderAt, size int64) (*Table, int64, error) {
	if size < FooterSize {
		return nil, 0, fmt.Errorf("layout: file too small (%d bytes) to contain a trailer", size)
	}

	footer := make([]byte, FooterSize)
	if _, err := r.ReadAt(footer, size-FooterSize); err != nil {
		return nil, 0, fmt.Errorf("layout: reading trailer footer: %w", err)
	}

	tableLen := binary.LittleEndian.Uint64(footer)

	tableStart := size - FooterSize - int64(tableLen)
	if tableStart < 0 {
		return nil, 0, fmt.Errorf("layout: corrupt trailer: section table length %d exceeds file size", tableLen)
	}

	buf := make([]byte, tableLen)
	if tableLen > 0 {
		if _, err := r.ReadAt(buf, tableStart); err != nil {
			return nil, 0, fmt.Errorf("layout: reading section table: %w", err)
		}
	}

	table, err := DecodeTable(buf)
	if err != nil {
		return nil, 0, err
	}

	return table, tableStart, nil
}

// WriteTrailer appends the encoded section table followed by its 8-byte LE
// length footer to w, which must be positioned at the current end of the
// row-payload region. It returns the total number of bytes written.
func WriteTrailer(w io.Writer, t *Table) (int64, error) {
	enc, err := t.Encode()
	if err != nil {
		return 0, err
	}

	n, err := w.Write(enc)
	if err != nil {
		return 0, fmt.Errorf("layout: writing section table: %w", err)
	}

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint64(footer, uint64(len(enc)))

	fn, err := w.Write(footer)
	if err != nil {
		return 0, fmt.Errorf("layout: writing trailer footer: %w", err)
	}

	return int64(n + fn), nil
}

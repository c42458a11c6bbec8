package layout

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

type sliceReaderAt []byte

func (s sliceReaderAt) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, s[off:])
	return n, nil
}

func TestTrailerRoundTrip(t *testing.T) {
	payload := []byte("row payload bytes here")

	table := NewTable()
	table.Set(SplitPrefix+"all_rows", Range{Start: 0, End: uint64(len(payload))})
	table.Set(ColumnsTag, Range{Start: 1, End: 2})

	var buf bytes.Buffer
	buf.Write(payload)

	n, err := WriteTrailer(&buf, table)
	require.NoError(t, err)
	require.Positive(t, n)

	full := buf.Bytes()

	got, tableStart, err := ReadTrailer(sliceReaderAt(full), int64(len(full)))
	require.NoError(t, err)
	require.Equal(t, int64(len(payload)), tableStart)

	r, ok := got.Get(SplitPrefix + "all_rows")
	require.True(t, ok)
	require.Equal(t, uint64(len(payload)), r.End)
}

func TestReadTrailerTooSmall(t *testing.T) {
	_, _, err := ReadTrailer(sliceReaderAt([]byte("x")), 1)
	require.Error(t, err)
}

func TestTagsWithPrefix(t *testing.T) {
	table := NewTable()
	table.Set(SplitPrefix+"all_rows", Range{})
	table.Set(SplitPrefix+"odds", Range{})
	table.Set(PropPrefix+"owner", Range{})

	require.ElementsMatch(t, []string{"all_rows", "odds"}, table.TagsWithPrefix(SplitPrefix))
}

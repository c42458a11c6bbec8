package fdd

import (
	"fmt"
	"io"

	"golang.org/x/sys/unix"

	"github.com/tstandley/freeze-dried-data/pkg/fs"
)

// fileIdentity captures the (device, inode) pair backing an open file
// descriptor. Reader and Writer record it when they open or reopen their
// file; nothing in this package compares it afterwards.
type fileIdentity struct {
	dev uint64
	ino uint64
}

func getFileIdentity(f fs.File) (fileIdentity, error) {
	var stat unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &stat); err != nil {
		return fileIdentity{}, fmt.Errorf("fdd: fstat: %w", err)
	}

	return fileIdentity{dev: uint64(stat.Dev), ino: stat.Ino}, nil
}

// pread performs a positioned read on a fs.File by saving and restoring the
// file's cursor around a Seek+Read. fs.File has no native ReadAt, and
// freeze-dried-data's own I/O is already single-threaded by design.
func pread(f fs.File, start, end uint64) ([]byte, error) {
	cur, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("fdd: saving file position: %w", err)
	}

	defer f.Seek(cur, io.SeekStart) //nolint:errcheck // best-effort restore

	if _, err := f.Seek(int64(start), io.SeekStart); err != nil {
		return nil, fmt.Errorf("fdd: seeking to %d: %w", start, err)
	}

	buf := make([]byte, end-start)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("%w: reading [%d,%d): %v", ErrIO, start, end, err)
	}

	return buf, nil
}

// pwrite performs a positioned, cursor-preserving write, the write-side
// counterpart of pread, used for in-place same-size cell overwrite.
func pwrite(f fs.File, start uint64, data []byte) error {
	cur, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("fdd: saving file position: %w", err)
	}

	defer f.Seek(cur, io.SeekStart) //nolint:errcheck // best-effort restore

	if _, err := f.Seek(int64(start), io.SeekStart); err != nil {
		return fmt.Errorf("fdd: seeking to %d: %w", start, err)
	}

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("%w: writing at %d: %v", ErrIO, start, err)
	}

	return nil
}

// readerAtFile adapts a fs.File to io.ReaderAt via pread, for use with
// layout.ReadTrailer.
type readerAtFile struct{ f fs.File }

func (r readerAtFile) ReadAt(p []byte, off int64) (int, error) {
	b, err := pread(r.f, uint64(off), uint64(off)+uint64(len(p)))
	if err != nil {
		return 0, err
	}

	copy(p, b)

	return len(b), nil
}

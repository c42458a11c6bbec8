package fdd

import (
	"errors"
	"fmt"
)

// Error classification. Callers should classify with errors.Is / errors.As
// rather than matching message text.
var (
	// ErrConfig covers unknown codec names and bad constructor parameters.
	ErrConfig = errors.New("fdd: configuration error")

	// ErrIO covers underlying file I/O failures.
	ErrIO = errors.New("fdd: io error")

	// ErrFormat covers a corrupt trailer or an unrecognized on-disk marker.
	ErrFormat = errors.New("fdd: format error")

	// ErrSchema covers column/row shape mismatches: unknown column, wrong
	// arity, duplicate column, invalid row object.
	ErrSchema = errors.New("fdd: schema error")

	// ErrLookup covers key-not-found, split-not-found, and duplicate-key-
	// on-insert.
	ErrLookup = errors.New("fdd: lookup error")

	// ErrState covers finalize-after-finalize, set-on-read-only,
	// append-after-close, and cell-size mismatch on in-place overwrite.
	ErrState = errors.New("fdd: state error")
)

// wrapErr joins a sentinel classification with contextual detail, in the
// same fmt.Errorf("...: %w", Err...) idiom used throughout this package.
func wrapErr(kind error, format string, args ...any) error {
	return &classifiedError{kind: kind, msg: sprintf(format, args...)}
}

type classifiedError struct {
	kind error
	msg  string
}

func (e *classifiedError) Error() string { return e.msg }

func (e *classifiedError) Unwrap() error { return e.kind }

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}

	return fmt.Sprintf(format, args...)
}

// Package fdd implements Freeze-Dried Data: an append-only, single-file
// on-disk container for machine-learning datasets. A file stores an
// unbounded collection of rows keyed by arbitrary values, optionally
// organized by a fixed set of columns, and is written once then opened
// many times for cheap, lazy, column-granular random-access reads.
//
// Write with OpenWriter, read with OpenReader/Open/OpenMultiReader. This
// package's three subpackages split out the lower layers:
//
//   - index: the packed keyless/sorted/general row-offset index variants.
//   - layout: the section table and 8-byte trailer footer.
//   - pkg/fs: the filesystem abstraction every file open routes through.
package fdd

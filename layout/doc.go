// Package layout implements the freeze-dried-data file trailer: the section
// table that maps tagged byte ranges (properties, splits, columns, the
// column definition) to their position in the file, and the 8-byte
// length-prefixed footer that lets a reader find it from EOF alone.
package layout

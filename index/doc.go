// Package index implements the packed, little-endian row-offset index
// variants shared by freeze-dried-data files: keyless (positional),
// sorted-comparable (binary search over a sorted key array), and general
// (hash map to a dense slot). All three share one packed integer buffer as
// their storage, accessed through IntList.
package index

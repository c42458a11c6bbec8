package fdd

import (
	"encoding/json"
	"fmt"

	"github.com/tstandley/freeze-dried-data/index"
)

// keyWire is the on-disk representation of one index key. Go keys arrive as
// `any` (string/int/int64/float64, matching index.DefaultLess), so the wire
// form tags which field is populated rather than relying on JSON's loose
// number typing to round-trip exactly.
type keyWire struct {
	Type string  `json:"t"`
	S    string  `json:"s,omitempty"`
	I    int64   `json:"i,omitempty"`
	F    float64 `json:"f,omitempty"`
}

func encodeKey(k any) keyWire {
	switch v := k.(type) {
	case string:
		return keyWire{Type: "s", S: v}
	case int:
		return keyWire{Type: "i", I: int64(v)}
	case int64:
		return keyWire{Type: "i", I: v}
	case uint64:
		return keyWire{Type: "i", I: int64(v)}
	case float64:
		return keyWire{Type: "f", F: v}
	default:
		return keyWire{Type: "s", S: fmt.Sprint(v)}
	}
}

func decodeKey(w keyWire) any {
	switch w.Type {
	case "i":
		return w.I
	case "f":
		return w.F
	default:
		return w.S
	}
}

// splitWire is the on-disk representation of a general or sorted split: the
// system codec (JSON) serializes the key list and row offsets; the packed
// IntList buffer itself is rebuilt on load via index.BuildSorted / Set
// rather than byte-copied, since reconstructing from (key, row) pairs is
// simpler than byte-copying a serialized index object and is equally
// round-trippable.
type splitWire struct {
	Kind string     `json:"kind"`
	Keys []keyWire  `json:"keys"`
	Rows [][]uint64 `json:"rows"`
}

// serializeSplit encodes si: a keyless split gets a leading 0x01 byte
// followed by its raw packed buffer; general/sorted splits are serialized
// whole via the system codec (JSON here).
func serializeSplit(si *splitIndex) ([]byte, error) {
	if si.kind == splitKeyless {
		out := make([]byte, 0, 1+len(si.keyless.Buffer()))
		out = append(out, 0x01)
		out = append(out, si.keyless.Buffer()...)

		return out, nil
	}

	keys := si.Keys()
	rows := make([][]uint64, len(keys))
	keyWires := make([]keyWire, len(keys))

	for i, k := range keys {
		l, ok, err := si.Get(k)
		if err != nil {
			return nil, err
		}

		if !ok {
			return nil, wrapErr(ErrFormat, "fdd: split key %v vanished during serialization", k)
		}

		rows[i] = l.ToSlice()
		keyWires[i] = encodeKey(k)
	}

	kindStr := "general"
	if si.kind == splitSorted {
		kindStr = "sorted"
	}

	b, err := json.Marshal(splitWire{Kind: kindStr, Keys: keyWires, Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("fdd: encoding split: %w", err)
	}

	return b, nil
}

// deserializeSplit decodes bytes written by serializeSplit. numVals is the
// row arity to use when reconstructing a keyless split, since a keyless
// split's packed buffer carries no self-describing arity.
func deserializeSplit(b []byte, numVals int) (*splitIndex, error) {
	if len(b) > 0 && b[0] == 0x01 {
		k := index.NewKeylessFromBuffer(numVals, index.DefaultByteWidth, b[1:])
		return newKeylessSplit(k), nil
	}

	var wire splitWire
	if err := json.Unmarshal(b, &wire); err != nil {
		return nil, fmt.Errorf("%w: decoding split: %v", ErrFormat, err)
	}

	rows := make([]splitRow, len(wire.Keys))
	for i, kw := range wire.Keys {
		rows[i] = splitRow{key: decodeKey(kw), offsets: wire.Rows[i]}
	}

	return buildSplit(rows, false, wire.Kind == "general", index.DefaultByteWidth)
}

// toGeneral rebuilds si as a fresh *index.General, used when a writer
// reopens a file and needs the live row index to be the default General
// variant regardless of what variant all_rows happened to be serialized as.
func toGeneral(si *splitIndex) (*index.General, error) {
	if si.kind == splitGeneral {
		// Still rebuild rather than reuse: the writer needs an index whose
		// buffer it owns and can keep appending to.
		g := index.NewGeneral(si.general.NumVals(), si.general.ByteWidth())
		for _, k := range si.general.Keys() {
			l, _ := si.general.Get(k)
			if err := g.Set(k, l.ToSlice()); err != nil {
				return nil, err
			}
		}

		return g, nil
	}

	keys := si.Keys()

	numVals := 0
	if len(keys) > 0 {
		l, _, _ := si.Get(keys[0])
		numVals = l.Len()
	}

	g := index.NewGeneral(numVals, index.DefaultByteWidth)

	for _, k := range keys {
		l, ok, err := si.Get(k)
		if err != nil {
			return nil, err
		}

		if !ok {
			continue
		}

		if err := g.Set(k, l.ToSlice()); err != nil {
			return nil, err
		}
	}

	return g, nil
}

package fdd

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// Codec is a pure (encode, decode) pair over a cell value. decode(encode(v))
// gives back a value equal to v, except that the built-in numeric codecs
// return a fixed Go type (int64, uint64 or float64) whatever integer or
// float type was encoded.
type Codec struct {
	Name    string
	Encode  func(v any) ([]byte, error)
	Decode  func(b []byte) (any, error)
}

// Registry is a process-wide (or per-caller, if constructed fresh) table of
// named codecs. open_reader/open_writer accept one, defaulting to
// DefaultRegistry.
type Registry struct {
	codecs map[string]Codec
}

// NewRegistry returns a registry pre-populated with the built-in codecs:
// any, str, str_compressed, bytes, and signed/unsigned integers of width
// 1/2/4/8/16 bytes, plus float (IEEE-754 double).
func NewRegistry() *Registry {
	r := &Registry{codecs: make(map[string]Codec)}

	r.Register(Codec{Name: "any", Encode: encodeAny, Decode: decodeAny})
	r.Register(Codec{Name: "str", Encode: encodeStr, Decode: decodeStr})
	r.Register(Codec{Name: "str_compressed", Encode: encodeStrCompressed, Decode: decodeStrCompressed})
	r.Register(Codec{Name: "bytes", Encode: encodeBytes, Decode: decodeBytes})
	r.Register(Codec{Name: "float", Encode: encodeFloat64, Decode: decodeFloat64})

	for _, width := range []int{1, 2, 4, 8, 16} {
		width := width
		r.Register(Codec{
			Name:   fmt.Sprintf("int%d", width*8),
			Encode: signedIntEncoder(width),
			Decode: signedIntDecoder(width),
		})
		r.Register(Codec{
			Name:   fmt.Sprintf("uint%d", width*8),
			Encode: unsignedIntEncoder(width),
			Decode: unsignedIntDecoder(width),
		})
	}

	return r
}

// DefaultRegistry is the shared default used by OpenReader/OpenWriter
// when the caller does not supply one.
var DefaultRegistry = NewRegistry()

// Register adds or replaces a named codec.
func (r *Registry) Register(c Codec) {
	r.codecs[c.Name] = c
}

// Lookup returns the codec for name, or ErrConfig if unknown.
func (r *Registry) Lookup(name string) (Codec, error) {
	c, ok := r.codecs[name]
	if !ok {
		return Codec{}, wrapErr(ErrConfig, "fdd: unknown codec %q", name)
	}

	return c, nil
}

// --- any: JSON round-trip over JSON-representable Go values. ---
//
// Go has no runtime polymorphic unpickler, so "any" is narrowed to values
// encoding/json can round-trip (maps, slices, strings, float64, bool, nil).
// Every JSON number decodes as float64: an integer comes back as a float64,
// and integers beyond 2^53 do not round-trip exactly. This narrowing is
// recorded as an Open Question resolution in DESIGN.md, not a silent
// behavior change.
func encodeAny(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("fdd: encoding any value: %w", err)
	}

	return b, nil
}

func decodeAny(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("fdd: decoding any value: %w", err)
	}

	return v, nil
}

func encodeStr(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("fdd: str codec requires a string, got %T", v)
	}

	return []byte(s), nil
}

func decodeStr(b []byte) (any, error) { return string(b), nil }

func encodeStrCompressed(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("fdd: str_compressed codec requires a string, got %T", v)
	}

	var buf bytes.Buffer

	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("fdd: compressing string: %w", err)
	}

	if _, err := fw.Write([]byte(s)); err != nil {
		return nil, fmt.Errorf("fdd: compressing string: %w", err)
	}

	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("fdd: compressing string: %w", err)
	}

	return buf.Bytes(), nil
}

func decodeStrCompressed(b []byte) (any, error) {
	fr := flate.NewReader(bytes.NewReader(b))
	defer fr.Close()

	out, err := io.ReadAll(fr)
	if err != nil {
		return nil, fmt.Errorf("fdd: decompressing string: %w", err)
	}

	return string(out), nil
}

func encodeBytes(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("fdd: bytes codec requires []byte, got %T", v)
	}

	return b, nil
}

func decodeBytes(b []byte) (any, error) { return b, nil }

func encodeFloat64(v any) ([]byte, error) {
	f, ok := toFloat64(v)
	if !ok {
		return nil, fmt.Errorf("fdd: float codec requires a numeric value, got %T", v)
	}

	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, math.Float64bits(f))

	return out, nil
}

func decodeFloat64(b []byte) (any, error) {
	if len(b) != 8 {
		return nil, fmt.Errorf("fdd: float cell has %d bytes, want 8", len(b))
	}

	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

func signedIntEncoder(width int) func(any) ([]byte, error) {
	return func(v any) ([]byte, error) {
		n, ok := toInt64(v)
		if !ok {
			return nil, fmt.Errorf("fdd: int%d codec requires an integer, got %T", width*8, v)
		}

		out := make([]byte, width)

		for i := 0; i < width; i++ {
			out[i] = byte(n >> (8 * i))
		}

		return out, nil
	}
}

func signedIntDecoder(width int) func([]byte) (any, error) {
	return func(b []byte) (any, error) {
		if len(b) != width {
			return nil, fmt.Errorf("fdd: int%d cell has %d bytes, want %d", width*8, len(b), width)
		}

		var u uint64

		for i := 0; i < width && i < 8; i++ {
			u |= uint64(b[i]) << (8 * i)
		}

		if width < 8 {
			signBit := uint64(1) << (width*8 - 1)
			if u&signBit != 0 {
				u |= ^uint64(0) << (width * 8)
			}
		}

		return int64(u), nil
	}
}

func unsignedIntEncoder(width int) func(any) ([]byte, error) {
	return func(v any) ([]byte, error) {
		n, ok := toInt64(v)
		if !ok {
			return nil, fmt.Errorf("fdd: uint%d codec requires an integer, got %T", width*8, v)
		}

		out := make([]byte, width)
		u := uint64(n)

		for i := 0; i < width; i++ {
			out[i] = byte(u >> (8 * i))
		}

		return out, nil
	}
}

func unsignedIntDecoder(width int) func([]byte) (any, error) {
	return func(b []byte) (any, error) {
		if len(b) != width {
			return nil, fmt.Errorf("fdd: uint%d cell has %d bytes, want %d", width*8, len(b), width)
		}

		var u uint64

		for i := 0; i < width && i < 8; i++ {
			u |= uint64(b[i]) << (8 * i)
		}

		return u, nil
	}
}

// fddbuild is a small command-line front end over the container's
// add-column utility: it appends one new column to an existing
// freeze-dried-data file, writing a new file rather than mutating in place.
//
// Usage:
//
//	fddbuild add-column --src <path> --dst <path> --column <name> \
//		--type <codec> --data <json-file> [--overwrite]
//
// --data points at a JSON file mapping row keys (as JSON object keys,
// matched against existing integer or string row keys) to the new column's
// values.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	flag "github.com/spf13/pflag"

	fdd "github.com/tstandley/freeze-dried-data"
	"github.com/tstandley/freeze-dried-data/pkg/fs"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		printUsage()
		return fmt.Errorf("missing command")
	}

	switch args[0] {
	case "add-column":
		return runAddColumn(args[1:])
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: fddbuild add-column --src <path> --dst <path> --column <name> --type <codec> --data <json-file> [--overwrite]\n")
}

func runAddColumn(args []string) error {
	flags := flag.NewFlagSet("add-column", flag.ExitOnError)

	src := flags.String("src", "", "source freeze-dried-data file")
	dst := flags.String("dst", "", "destination freeze-dried-data file")
	column := flags.String("column", "", "name of the new column")
	columnType := flags.String("type", "any", "codec name for the new column")
	dataPath := flags.String("data", "", "JSON file mapping row keys to new column values")
	overwrite := flags.Bool("overwrite", false, "overwrite dst if it already exists")

	flags.Usage = func() {
		printUsage()
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return err
	}

	if *src == "" || *dst == "" || *column == "" || *dataPath == "" {
		flags.Usage()
		return fmt.Errorf("--src, --dst, --column, and --data are all required")
	}

	raw, err := os.ReadFile(*dataPath) //nolint:gosec // CLI-supplied path is intentional
	if err != nil {
		return fmt.Errorf("reading %s: %w", *dataPath, err)
	}

	var wire map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		return fmt.Errorf("parsing %s as a JSON object: %w", *dataPath, err)
	}

	data := make(map[any]any, len(wire))

	for k, v := range wire {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("parsing value for key %q: %w", k, err)
		}

		data[keyFromWire(k)] = val
	}

	fsys := fs.NewReal()

	if err := fdd.AddColumn(fsys, *src, *dst, *column, *columnType, data, *overwrite, nil); err != nil {
		return fmt.Errorf("adding column: %w", err)
	}

	fmt.Printf("OK: wrote %s with %d rows updated\n", *dst, len(data))

	return nil
}

// keyFromWire recovers an integer key from its JSON-object-key string form,
// falling back to the plain string, matching fddsh's parseKey.
func keyFromWire(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}

	return s
}

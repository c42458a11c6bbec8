// fddsh is an interactive inspection shell for freeze-dried-data files.
//
// Usage:
//
//	fddsh [flags] <path-spec>
//
// <path-spec> follows the container's own path grammar: path[,path2,…][^split].
//
// Commands (in REPL):
//
//	get <key>              Print a row (or schemaless value) by key
//	cell <key> <column>    Print one cell by (key, column)
//	keys [limit]           List keys in the current split
//	len                    Count rows in the current split
//	splits                 List available split names
//	load <split-expr>      Switch the current split (supports a+b, name$expr)
//	props                  List property names
//	prop <name>            Print a property's decoded value
//	columns                Print the schema
//	help                   Show this help
//	exit / quit / q        Exit
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	fdd "github.com/tstandley/freeze-dried-data"
	"github.com/tstandley/freeze-dried-data/pkg/fs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	flags := flag.NewFlagSet("fddsh", flag.ExitOnError)
	split := flags.String("split", "", "initial split (overrides config default)")
	allowMod := flags.Bool("allow-cell-modification", false, "enable in-place same-size cell overwrite")
	history := flags.String("history", "", "history file path (overrides config default)")

	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: fddsh [flags] <path-spec>\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flags.PrintDefaults()
	}

	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	if flags.NArg() < 1 {
		flags.Usage()
		return fmt.Errorf("missing path-spec argument")
	}

	if *split != "" {
		cfg.DefaultSplit = *split
	}

	if *history != "" {
		cfg.HistoryFile = *history
	}

	pathSpec := flags.Arg(0)

	// A ^split in the path-spec wins over the config default; --split wins
	// over both.
	openSplit := cfg.DefaultSplit
	if *split == "" && strings.Contains(pathSpec, "^") {
		openSplit = ""
	}

	fsys := fs.NewReal()

	opened, err := fdd.Open(fsys, pathSpec, fdd.ReaderOptions{
		Split:                 openSplit,
		AllowCellModification: *allowMod,
	})
	if err != nil {
		return fmt.Errorf("opening %s: %w", pathSpec, err)
	}

	shell := &Shell{cfg: cfg, pathSpec: pathSpec}

	switch v := opened.(type) {
	case *fdd.Reader:
		shell.reader = v
		defer v.Close()
	case *fdd.MultiReader:
		shell.multi = v
		defer v.Close()

		for _, w := range v.Warnings {
			fmt.Fprintln(os.Stderr, w)
		}
	}

	return shell.Run()
}

// Shell is the interactive command loop over an opened reader: a
// liner.State, a completer, and a switch over whitespace-split command
// words.
type Shell struct {
	cfg      Config
	pathSpec string
	reader   *fdd.Reader
	multi    *fdd.MultiReader
	liner    *liner.State
}

func (s *Shell) Run() error {
	s.liner = liner.NewLiner()
	defer s.liner.Close()

	s.liner.SetCtrlCAborts(true)
	s.liner.SetCompleter(s.completer)

	if f, err := os.Open(s.cfg.HistoryFile); err == nil {
		s.liner.ReadHistory(f) //nolint:errcheck // history load is best-effort
		f.Close()
	}

	fmt.Printf("fddsh - freeze-dried-data shell (%s)\n", s.pathSpec)
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := s.liner.Prompt("fddsh> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")
				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		s.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			s.saveHistory()
			return nil
		case "help", "?":
			s.printHelp()
		case "get":
			s.cmdGet(args)
		case "cell":
			s.cmdCell(args)
		case "keys":
			s.cmdKeys(args)
		case "len", "count":
			s.cmdLen()
		case "splits":
			s.cmdSplits()
		case "load":
			s.cmdLoad(args)
		case "props":
			s.cmdProps()
		case "prop":
			s.cmdProp(args)
		case "columns", "schema":
			s.cmdColumns()
		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	s.saveHistory()

	return nil
}

func (s *Shell) saveHistory() {
	if s.cfg.HistoryFile == "" {
		return
	}

	if f, err := os.Create(s.cfg.HistoryFile); err == nil {
		s.liner.WriteHistory(f) //nolint:errcheck // history save is best-effort
		f.Close()
	}
}

func (s *Shell) completer(line string) []string {
	commands := []string{
		"get", "cell", "keys", "len", "count", "splits", "load",
		"props", "prop", "columns", "schema", "help", "exit", "quit", "q",
	}

	var out []string

	lower := strings.ToLower(line)
	for _, c := range commands {
		if strings.HasPrefix(c, lower) {
			out = append(out, c)
		}
	}

	return out
}

func (s *Shell) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  get <key>              Print a row (or schemaless value) by key")
	fmt.Println("  cell <key> <column>    Print one cell by (key, column)")
	fmt.Println("  keys [limit]           List keys in the current split")
	fmt.Println("  len                    Count rows in the current split")
	fmt.Println("  splits                 List available split names")
	fmt.Println("  load <split-expr>      Switch the current split (supports a+b, name$expr)")
	fmt.Println("  props                  List property names")
	fmt.Println("  prop <name>            Print a property's decoded value")
	fmt.Println("  columns                Print the schema")
	fmt.Println("  help                   Show this help")
	fmt.Println("  exit / quit / q        Exit")
}

// parseKey tries to interpret s as an integer key, falling back to a plain
// string key, matching the loose key typing freeze-dried-data rows use.
func parseKey(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}

	return s
}

func (s *Shell) cmdGet(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: get <key>")
		return
	}

	key := parseKey(args[0])

	var (
		v   any
		err error
	)

	if s.reader != nil {
		v, err = s.reader.Get(key)
	} else {
		v, err = s.multi.Get(key)
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	printValue(v)
}

func (s *Shell) cmdCell(args []string) {
	if s.reader == nil {
		fmt.Println("cell is only available on a single-file reader")
		return
	}

	if len(args) < 2 {
		fmt.Println("Usage: cell <key> <column>")
		return
	}

	key := parseKey(args[0])

	v, err := s.reader.Get(fdd.CellRef{Row: key, Column: args[1]})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("%v\n", v)
}

func printValue(v any) {
	row, ok := v.(*fdd.RowView)
	if !ok {
		fmt.Printf("%v\n", v)
		return
	}

	dict, err := row.AsDict()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	for _, name := range row.Keys() {
		fmt.Printf("  %s: %v\n", name, dict[name])
	}
}

func (s *Shell) cmdKeys(args []string) {
	if s.reader == nil {
		fmt.Println("keys is only available on a single-file reader")
		return
	}

	limit := 20

	if len(args) >= 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Printf("Error parsing limit: %v\n", err)
			return
		}

		limit = n
	}

	keys := s.reader.Keys()
	for i, k := range keys {
		if i >= limit {
			fmt.Printf("... (%d more, use 'keys <limit>' to see more)\n", len(keys)-limit)
			break
		}

		fmt.Printf("%v\n", k)
	}
}

func (s *Shell) cmdLen() {
	if s.reader != nil {
		fmt.Println(s.reader.Len())
		return
	}

	fmt.Println(s.multi.Len())
}

func (s *Shell) cmdSplits() {
	if s.reader == nil {
		fmt.Println("splits is only available on a single-file reader")
		return
	}

	for _, name := range s.reader.GetAvailableSplits() {
		fmt.Println(name)
	}
}

func (s *Shell) cmdLoad(args []string) {
	if s.reader == nil {
		fmt.Println("load is only available on a single-file reader")
		return
	}

	if len(args) < 1 {
		fmt.Println("Usage: load <split-expr>")
		return
	}

	if err := s.reader.LoadNewSplit(args[0]); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("OK: loaded split %q (%d rows)\n", args[0], s.reader.Len())
}

func (s *Shell) cmdProps() {
	if s.reader == nil {
		fmt.Println("props is only available on a single-file reader")
		return
	}

	for _, name := range s.reader.PropertyNames() {
		fmt.Println(name)
	}
}

func (s *Shell) cmdProp(args []string) {
	if s.reader == nil {
		fmt.Println("prop is only available on a single-file reader")
		return
	}

	if len(args) < 1 {
		fmt.Println("Usage: prop <name>")
		return
	}

	v, err := s.reader.GetProperty(args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("%v\n", v)
}

func (s *Shell) cmdColumns() {
	if s.reader == nil {
		fmt.Println("columns is only available on a single-file reader")
		return
	}

	cols := s.reader.Columns()
	if len(cols) == 0 {
		fmt.Println("(schemaless)")
		return
	}

	for _, c := range cols {
		fmt.Printf("%s: %s\n", c.Name, c.Codec)
	}
}

package fdd

import (
	"fmt"
	"strconv"
	"strings"
)

// PathSpec is a parsed `path[,path2,…][^split]` path expression. Open
// dispatches on len(Paths) to decide between Reader and MultiReader.
type PathSpec struct {
	Paths []string
	Split string
}

// ParsePathSpec parses a path expression. The split suffix (after `^`)
// applies to every path: each constituent of a multi-reader loads that
// split.
func ParsePathSpec(spec string) PathSpec {
	rest := spec

	split := "all_rows"
	if base, s, ok := strings.Cut(spec, "^"); ok {
		rest = base
		split = s
	}

	return PathSpec{Paths: strings.Split(rest, ","), Split: split}
}

// predicate is a tiny expression language over a single row, covering
// `name$expr` split filters. It supports one comparison of the form
// `<column> <op> <literal>` with op in {==, !=, <, <=, >, >=}, and a
// literal that is a quoted string, a float, or an int.
//
// Go has no runtime eval, so this deliberately narrows what would otherwise
// be an arbitrary single-argument expression down to one comparison; a full
// expression grammar is out of scope for the container's own storage
// engine. Recorded as an Open Question resolution in DESIGN.md.
func compilePredicate(columns ColumnDef, expr string) (func(*RowView) bool, error) {
	expr = strings.TrimSpace(expr)

	for _, op := range []string{"==", "!=", "<=", ">=", "<", ">"} {
		idx := strings.Index(expr, op)
		if idx < 0 {
			continue
		}

		colName := strings.TrimSpace(expr[:idx])
		litStr := strings.TrimSpace(expr[idx+len(op):])

		if columns.IndexOf(colName) < 0 {
			return nil, wrapErr(ErrConfig, "fdd: predicate references unknown column %q", colName)
		}

		lit, err := parseLiteral(litStr)
		if err != nil {
			return nil, err
		}

		return func(row *RowView) bool {
			v, err := row.GetName(colName)
			if err != nil {
				return false
			}

			return compareOp(v, op, lit)
		}, nil
	}

	return nil, wrapErr(ErrConfig, "fdd: unsupported predicate expression %q", expr)
}

func parseLiteral(s string) (any, error) {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], nil
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}

	return nil, fmt.Errorf("fdd: cannot parse predicate literal %q", s)
}

func compareOp(v any, op string, lit any) bool {
	vf, vok := toFloat64(v)
	lf, lok := lit.(float64)

	if vok && lok {
		switch op {
		case "==":
			return vf == lf
		case "!=":
			return vf != lf
		case "<":
			return vf < lf
		case "<=":
			return vf <= lf
		case ">":
			return vf > lf
		case ">=":
			return vf >= lf
		}
	}

	vs, vok := v.(string)
	ls, lok := lit.(string)

	if vok && lok {
		switch op {
		case "==":
			return vs == ls
		case "!=":
			return vs != ls
		case "<":
			return vs < ls
		case "<=":
			return vs <= ls
		case ">":
			return vs > ls
		case ">=":
			return vs >= ls
		}
	}

	return false
}

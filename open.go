package fdd

import "github.com/tstandley/freeze-dried-data/pkg/fs"

// Open parses a path of the form `path[,path2,…][^split]` and returns
// either a *Reader (single path) or a *MultiReader (comma-separated paths),
// both already positioned on the requested split.
func Open(fsys fs.FS, pathSpec string, opts ReaderOptions) (any, error) {
	parsed := ParsePathSpec(pathSpec)

	effective := opts
	if effective.Split == "" {
		effective.Split = parsed.Split
	}

	if len(parsed.Paths) == 1 {
		return OpenReader(fsys, parsed.Paths[0], effective)
	}

	return OpenMultiReader(fsys, parsed.Paths, effective)
}

package fdd

// Setter accumulates partial column values for a not-yet-written row,
// created lazily by Writer.Get when the key is absent and the schema has
// columns. It auto-finalizes the instant every column has been assigned;
// Finalize writes whatever partial values exist, with missing columns
// becoming empty cells.
type Setter struct {
	writer    *Writer
	key       any
	values    map[string]any
	finalized bool
}

func newSetter(w *Writer, key any) *Setter {
	return &Setter{writer: w, key: key, values: make(map[string]any)}
}

// Set assigns the named column's value. Setting an unknown column or
// setting after the row has already been finalized fails with ErrSchema /
// ErrState respectively. The setter auto-finalizes once every schema
// column has been set.
func (s *Setter) Set(name string, value any) error {
	if s.finalized {
		return wrapErr(ErrState, "fdd: setter for key %v has already been finalized", s.key)
	}

	if s.writer.columns.IndexOf(name) < 0 {
		return wrapErr(ErrSchema, "fdd: unknown column %q", name)
	}

	s.values[name] = value

	if len(s.values) == len(s.writer.columns) {
		return s.Finalize()
	}

	return nil
}

// Finalize writes the row now, with any unset columns becoming empty
// cells, and removes this setter from the writer's unfinished-setters
// table. Calling Finalize twice fails with ErrState.
func (s *Setter) Finalize() error {
	if s.finalized {
		return wrapErr(ErrState, "fdd: setter for key %v has already been finalized", s.key)
	}

	if err := s.writer.setFromMap(s.key, s.values); err != nil {
		return err
	}

	s.finalized = true

	delete(s.writer.unfinished, s.key)

	return nil
}

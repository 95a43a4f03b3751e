// Package frame holds record batches as named columns, with categorical
// columns that carry their own ordered category table.
//
// Batches built from different source files encode the same categorical
// column against different category tables. Concat unifies those tables
// before stacking rows.
package frame

import (
	"errors"
	"fmt"
)

// ErrMissingColumn is returned when a frame has no column with the requested name.
var ErrMissingColumn = errors.New("missing column")

// Column is one named vector of a Frame.
type Column interface {
	Len() int
}

// Strings is a plain string column.
type Strings []string

func (s Strings) Len() int { return len(s) }

// Ints is a plain integer column.
type Ints []int64

func (v Ints) Len() int { return len(v) }

// Frame is an ordered set of equal-length columns plus a row index.
type Frame struct {
	names   []string
	columns map[string]Column
	index   []int64
	rows    int
}

// New returns an empty frame.
func New() *Frame {
	return &Frame{columns: make(map[string]Column)}
}

// Add appends a column. The first column fixes the row count and a default
// 0..n-1 index.
func (f *Frame) Add(name string, col Column) error {
	if _, ok := f.columns[name]; ok {
		return fmt.Errorf("add column %q: already present", name)
	}
	if len(f.names) == 0 {
		if f.index != nil && len(f.index) != col.Len() {
			return fmt.Errorf("add column %q: %d rows, index has %d", name, col.Len(), len(f.index))
		}
		f.rows = col.Len()
		if f.index == nil {
			f.index = denseIndex(f.rows)
		}
	} else if col.Len() != f.rows {
		return fmt.Errorf("add column %q: %d rows, frame has %d", name, col.Len(), f.rows)
	}
	f.names = append(f.names, name)
	f.columns[name] = col
	return nil
}

// MustAdd is Add for statically known columns; it panics on error.
func (f *Frame) MustAdd(name string, col Column) *Frame {
	if err := f.Add(name, col); err != nil {
		panic(err)
	}
	return f
}

// SetIndex replaces the row index.
func (f *Frame) SetIndex(index []int64) error {
	if len(f.names) > 0 && len(index) != f.rows {
		return fmt.Errorf("set index: %d labels, frame has %d rows", len(index), f.rows)
	}
	f.index = append([]int64(nil), index...)
	if len(f.names) == 0 {
		f.rows = len(index)
	}
	return nil
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.rows }

// Names returns the column names in insertion order.
func (f *Frame) Names() []string { return append([]string(nil), f.names...) }

// Index returns the row labels.
func (f *Frame) Index() []int64 { return append([]int64(nil), f.index...) }

// Column returns the named column.
func (f *Frame) Column(name string) (Column, bool) {
	col, ok := f.columns[name]
	return col, ok
}

// Categorical returns the named column if it is categorical.
func (f *Frame) Categorical(name string) (*Categorical, bool) {
	col, ok := f.columns[name]
	if !ok {
		return nil, false
	}
	c, ok := col.(*Categorical)
	return c, ok
}

// StringValues materializes a string or categorical column.
func (f *Frame) StringValues(name string) ([]string, error) {
	col, ok := f.columns[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrMissingColumn, name)
	}
	switch c := col.(type) {
	case Strings:
		return []string(c), nil
	case *Categorical:
		return c.Values(), nil
	default:
		return nil, fmt.Errorf("column %q: %T is not a string column", name, col)
	}
}

// IntValues returns an integer column.
func (f *Frame) IntValues(name string) ([]int64, error) {
	col, ok := f.columns[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrMissingColumn, name)
	}
	v, ok := col.(Ints)
	if !ok {
		return nil, fmt.Errorf("column %q: %T is not an integer column", name, col)
	}
	return []int64(v), nil
}

func denseIndex(n int) []int64 {
	idx := make([]int64, n)
	for i := range idx {
		idx[i] = int64(i)
	}
	return idx
}

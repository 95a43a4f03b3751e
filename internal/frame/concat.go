package frame

import (
	"errors"
	"fmt"
)

// Concat stacks frames row-wise.
//
// A column that is categorical in every frame is unified first: the ordered
// union of the category tables is computed and each input column is
// re-encoded against it IN PLACE, so after Concat returns the inputs share
// one category table. The output column is categorical with that table.
//
// Other columns are appended as plain values. A categorical column missing
// from, or plain in, some frame is materialized as Strings. A column absent
// from a frame is filled with "" or 0 for that frame's rows. Mixing string and
// integer columns under one name is an error.
//
// With ignoreIndex the output index is 0..n-1; otherwise the input labels are
// carried over, and may repeat across inputs.
func Concat(frames []*Frame, ignoreIndex bool) (*Frame, error) {
	if len(frames) == 0 {
		return nil, errors.New("concat: no frames")
	}

	var names []string
	seen := make(map[string]struct{})
	total := 0
	for _, f := range frames {
		total += f.Len()
		for _, n := range f.names {
			if _, ok := seen[n]; !ok {
				seen[n] = struct{}{}
				names = append(names, n)
			}
		}
	}

	out := New()
	for _, name := range names {
		col, err := concatColumn(frames, name, total)
		if err != nil {
			return nil, fmt.Errorf("concat column %q: %w", name, err)
		}
		if err := out.Add(name, col); err != nil {
			return nil, err
		}
	}

	if ignoreIndex {
		out.index = denseIndex(total)
	} else {
		index := make([]int64, 0, total)
		for _, f := range frames {
			index = append(index, f.index...)
		}
		out.index = index
	}
	out.rows = total
	return out, nil
}

func concatColumn(frames []*Frame, name string, total int) (Column, error) {
	cats := make([]*Categorical, 0, len(frames))
	allCategorical := true
	hasInts, hasStrings := false, false
	for _, f := range frames {
		col, ok := f.columns[name]
		if !ok {
			allCategorical = false
			continue
		}
		switch c := col.(type) {
		case *Categorical:
			cats = append(cats, c)
			hasStrings = true
		case Strings:
			allCategorical = false
			hasStrings = true
		case Ints:
			allCategorical = false
			hasInts = true
		default:
			return nil, fmt.Errorf("unsupported column type %T", col)
		}
	}
	if hasInts && hasStrings {
		return nil, errors.New("mixes string and integer columns")
	}

	if allCategorical {
		return unifyCategoricals(cats)
	}

	if hasInts {
		values := make(Ints, 0, total)
		for _, f := range frames {
			col, ok := f.columns[name]
			if !ok {
				values = append(values, make(Ints, f.Len())...)
				continue
			}
			values = append(values, col.(Ints)...)
		}
		return values, nil
	}

	values := make(Strings, 0, total)
	for _, f := range frames {
		col, ok := f.columns[name]
		if !ok {
			values = append(values, make(Strings, f.Len())...)
			continue
		}
		switch c := col.(type) {
		case Strings:
			values = append(values, c...)
		case *Categorical:
			values = append(values, c.Values()...)
		}
	}
	return values, nil
}

// unifyCategoricals re-encodes every column against the union of their
// categories and returns the stacked column.
func unifyCategoricals(cols []*Categorical) (*Categorical, error) {
	union := UnionCategories(cols...)
	n := 0
	for _, c := range cols {
		if err := c.SetCategories(union); err != nil {
			return nil, err
		}
		n += c.Len()
	}

	out := &Categorical{
		categories: append([]string(nil), union...),
		lookup:     make(map[string]int32, len(union)),
		codes:      make([]int32, 0, n),
	}
	for i, cat := range union {
		out.lookup[cat] = int32(i)
	}
	for _, c := range cols {
		out.codes = append(out.codes, c.codes...)
	}
	return out, nil
}

package frame

import "fmt"

// missingCode marks an empty value in a categorical column.
const missingCode int32 = -1

// Categorical stores string values as codes into an ordered category table.
// The table is scoped to the column; two columns with equal values may use
// different tables.
type Categorical struct {
	categories []string
	lookup     map[string]int32
	codes      []int32
}

// NewCategorical encodes values; categories are taken in first-seen order.
// Empty strings are stored as missing.
func NewCategorical(values []string) *Categorical {
	c := &Categorical{lookup: make(map[string]int32)}
	c.codes = make([]int32, len(values))
	for i, v := range values {
		c.codes[i] = c.code(v, true)
	}
	return c
}

// NewCategoricalWithCategories encodes values against a fixed category table.
func NewCategoricalWithCategories(values, categories []string) (*Categorical, error) {
	c := &Categorical{lookup: make(map[string]int32, len(categories))}
	for _, cat := range categories {
		if _, dup := c.lookup[cat]; dup {
			return nil, fmt.Errorf("duplicate category %q", cat)
		}
		c.lookup[cat] = int32(len(c.categories))
		c.categories = append(c.categories, cat)
	}
	c.codes = make([]int32, len(values))
	for i, v := range values {
		code := c.code(v, false)
		if v != "" && code == missingCode {
			return nil, fmt.Errorf("value %q is not a category", v)
		}
		c.codes[i] = code
	}
	return c, nil
}

func (c *Categorical) code(v string, grow bool) int32 {
	if v == "" {
		return missingCode
	}
	if code, ok := c.lookup[v]; ok {
		return code
	}
	if !grow {
		return missingCode
	}
	code := int32(len(c.categories))
	c.categories = append(c.categories, v)
	c.lookup[v] = code
	return code
}

func (c *Categorical) Len() int { return len(c.codes) }

// Categories returns the category table in order.
func (c *Categorical) Categories() []string {
	return append([]string(nil), c.categories...)
}

// Codes returns the per-row codes; -1 is missing.
func (c *Categorical) Codes() []int32 {
	return append([]int32(nil), c.codes...)
}

// Value returns the value of row i, "" when missing.
func (c *Categorical) Value(i int) string {
	code := c.codes[i]
	if code == missingCode {
		return ""
	}
	return c.categories[code]
}

// Values materializes the column.
func (c *Categorical) Values() []string {
	out := make([]string, len(c.codes))
	for i := range c.codes {
		out[i] = c.Value(i)
	}
	return out
}

// SetCategories re-encodes the column in place against categories. Every value
// in use must be present in the new table.
func (c *Categorical) SetCategories(categories []string) error {
	lookup := make(map[string]int32, len(categories))
	for i, cat := range categories {
		if _, dup := lookup[cat]; dup {
			return fmt.Errorf("duplicate category %q", cat)
		}
		lookup[cat] = int32(i)
	}
	codes := make([]int32, len(c.codes))
	for i, old := range c.codes {
		if old == missingCode {
			codes[i] = missingCode
			continue
		}
		v := c.categories[old]
		code, ok := lookup[v]
		if !ok {
			return fmt.Errorf("value %q is not in the new categories", v)
		}
		codes[i] = code
	}
	c.categories = append([]string(nil), categories...)
	c.lookup = lookup
	c.codes = codes
	return nil
}

// UnionCategories returns the ordered union of the columns' category tables:
// the first column's table, then unseen categories of each later column.
func UnionCategories(cols ...*Categorical) []string {
	seen := make(map[string]struct{})
	var union []string
	for _, c := range cols {
		for _, cat := range c.categories {
			if _, ok := seen[cat]; ok {
				continue
			}
			seen[cat] = struct{}{}
			union = append(union, cat)
		}
	}
	return union
}

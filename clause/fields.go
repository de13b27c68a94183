// Package clause renders SQL command text: an ordered column/literal
// accumulator, a composable WHERE predicate, and the four statement
// builders that consume them.
package clause

import (
	"sort"

	"tagsql/literal"
)

// Fields is an ordered mapping from column name to pre-rendered literal
// text. It is a pure text cache: values pass through the literal
// serializer on Set and nothing is validated here. Insertion order is
// preserved and drives the column order of generated statements; setting
// an existing column overwrites in place (last write wins).
type Fields struct {
	columns []string
	text    map[string]string
}

func NewFields() *Fields {
	return &Fields{text: make(map[string]string)}
}

// Set serializes value and stores it under column.
func (f *Fields) Set(column string, value interface{}) *Fields {
	if f.text == nil {
		f.text = make(map[string]string)
	}
	if _, ok := f.text[column]; !ok {
		f.columns = append(f.columns, column)
	}
	f.text[column] = literal.Render(value)
	return f
}

// SetAll applies Set for every entry of record. Keys are visited in
// sorted order so that the resulting column order is deterministic.
func (f *Fields) SetAll(record map[string]interface{}) *Fields {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		f.Set(k, record[k])
	}
	return f
}

func (f *Fields) Count() int {
	if f == nil {
		return 0
	}
	return len(f.columns)
}

// Columns returns the column names in insertion order.
func (f *Fields) Columns() []string {
	return f.columns
}

// Text returns the rendered literal stored under column.
func (f *Fields) Text(column string) (string, bool) {
	s, ok := f.text[column]
	return s, ok
}

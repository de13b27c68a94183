// Package dialect maps Go field types to database column types for the
// one-shot DDL helpers. Statement grammar is fixed elsewhere; a dialect
// only answers what a column is declared as and how to probe for an
// existing table.
package dialect

import "reflect"

var dialects = map[string]Dialect{}

type Dialect interface {
	// DataTypeOf maps a Go field type to the column declared type.
	DataTypeOf(t reflect.Type) string
	// TableExistSQL returns a complete query selecting the table's name
	// from the catalog when the table exists.
	TableExistSQL(table string) string
}

func Register(name string, d Dialect) {
	dialects[name] = d
}

func Get(name string) (Dialect, bool) {
	d, ok := dialects[name]
	return d, ok
}

package dialect

import (
	"reflect"
	"time"

	"tagsql/literal"
)

type sqlite3 struct{}

func init() {
	Register("sqlite3", &sqlite3{})
}

// DataTypeOf returns the sqlite declared column type. sqlite only uses
// the declaration to pick a type affinity, so the mapping is loose:
// anything unrecognized is declared text.
func (*sqlite3) DataTypeOf(t reflect.Type) string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool:
		return "bool"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uintptr:
		return "integer"
	case reflect.Int64, reflect.Uint64:
		return "bigint"
	case reflect.Float32, reflect.Float64:
		return "real"
	case reflect.String:
		return "text"
	case reflect.Array, reflect.Slice:
		return "blob"
	case reflect.Struct:
		if t == reflect.TypeOf(time.Time{}) {
			return "datetime"
		}
	}
	return "text"
}

func (*sqlite3) TableExistSQL(table string) string {
	return "select name FROM sqlite_master WHERE type='table' and name = " + literal.Render(table)
}

package literal

import (
	"encoding/base64"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Kind is the declared semantic type of a mapped field. It drives how a
// raw database cell is normalized on the way back into a field: 64-bit
// integers narrow for int-kinded fields, decimal text parses to float64,
// date strings parse to time.Time, blobs become base64 text unless the
// field itself is byte-kinded.
type Kind int

const (
	KindAny Kind = iota
	KindString
	KindInt
	KindInt64
	KindFloat
	KindBool
	KindDate
	KindBytes
)

// KindOf maps a Go field type to its Kind. Pointer fields are classified
// by their element type.
func KindOf(t reflect.Type) Kind {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == reflect.TypeOf(time.Time{}) {
		return KindDate
	}
	switch t.Kind() {
	case reflect.String:
		return KindString
	case reflect.Bool:
		return KindBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return KindInt
	case reflect.Int64, reflect.Uint64:
		return KindInt64
	case reflect.Float32, reflect.Float64:
		return KindFloat
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return KindBytes
		}
	}
	return KindAny
}

// Normalize converts a raw result cell into the canonical runtime value
// for a field of kind k: nil stays nil, ints land as int/int64, numeric
// text and decimals land as float64, date text parses via ParseDate.
// A value that cannot be coerced reports ErrFormat.
func Normalize(cell interface{}, k Kind) (interface{}, error) {
	if cell == nil {
		return nil, nil
	}
	switch k {
	case KindInt:
		n, err := toInt64(cell)
		if err != nil {
			return nil, err
		}
		return int(n), nil
	case KindInt64:
		return toInt64(cell)
	case KindFloat:
		return toFloat64(cell)
	case KindBool:
		switch x := cell.(type) {
		case bool:
			return x, nil
		case string:
			return x == "1" || x == "true", nil
		}
		n, err := toInt64(cell)
		if err != nil {
			return nil, err
		}
		return n != 0, nil
	case KindDate:
		switch x := cell.(type) {
		case time.Time:
			return x, nil
		case string:
			return ParseDate(x)
		case []byte:
			return ParseDate(string(x))
		}
		return nil, errors.Wrapf(ErrFormat, "cannot read %T as a date", cell)
	case KindBytes:
		switch x := cell.(type) {
		case []byte:
			return x, nil
		case string:
			return []byte(x), nil
		}
		return nil, errors.Wrapf(ErrFormat, "cannot read %T as bytes", cell)
	case KindString:
		switch x := cell.(type) {
		case string:
			return x, nil
		case []byte:
			return base64.StdEncoding.EncodeToString(x), nil
		}
		return fmt.Sprint(cell), nil
	default:
		if b, ok := cell.([]byte); ok {
			return base64.StdEncoding.EncodeToString(b), nil
		}
		return cell, nil
	}
}

func toInt64(v interface{}) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0, errors.Wrapf(ErrFormat, "integer %q", x)
		}
		return n, nil
	case []byte:
		return toInt64(string(x))
	}
	return 0, errors.Wrapf(ErrFormat, "cannot read %T as an integer", v)
}

func toFloat64(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, errors.Wrapf(ErrFormat, "decimal %q", x)
		}
		return f, nil
	case []byte:
		return toFloat64(string(x))
	}
	return 0, errors.Wrapf(ErrFormat, "cannot read %T as a decimal", v)
}

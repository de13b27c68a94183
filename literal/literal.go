// Package literal converts runtime values to SQL literal text and back.
// Values are rendered into the command string itself, not bound as
// parameters, so the quoting rules here are the only line of defense:
// every embedded single quote is doubled, the one escape the target
// dialect requires.
package literal

import (
	"encoding/base64"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DateFormat is the single date layout used on both the render and parse
// paths. Dates are serialized day-precise; callers that need full
// timestamp precision render the text themselves.
const DateFormat = "2006-01-02"

// ErrFormat reports a cell value that could not be parsed or converted.
var ErrFormat = errors.New("malformed value")

// Quote single-quotes s, doubling every embedded quote.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Render converts v into SQL literal text. Strings are quoted and
// escaped, booleans render as 1/0, numbers render bare, nil renders as
// the unquoted keyword null, dates use DateFormat, byte slices are
// carried as quoted base64. Anything else falls back to its string form,
// quoted like a string.
func Render(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return Quote(x)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case time.Time:
		return "'" + x.Format(DateFormat) + "'"
	case []byte:
		return Quote(base64.StdEncoding.EncodeToString(x))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64)
	case reflect.Ptr:
		if rv.IsNil() {
			return "null"
		}
		return Render(rv.Elem().Interface())
	}
	return Quote(fmt.Sprint(v))
}

// RenderComparison renders the right-hand side of a column comparison:
// nil becomes " IS NULL", a two-element slice or array becomes a
// " between a and b" range, anything else an equality against Render(v).
// Byte slices are data, never ranges.
func RenderComparison(v interface{}) string {
	if v == nil {
		return " IS NULL"
	}
	if b, ok := v.([]byte); ok {
		return "=" + Render(b)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return " IS NULL"
		}
		return RenderComparison(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Len() == 2 {
			return " between " + Render(rv.Index(0).Interface()) + " and " + Render(rv.Index(1).Interface())
		}
	}
	return "=" + Render(v)
}

// ParseDate parses the first len(DateFormat) characters of raw strictly
// as DateFormat. Trailing time-of-day text is ignored.
func ParseDate(raw string) (time.Time, error) {
	if len(raw) < len(DateFormat) {
		return time.Time{}, errors.Wrapf(ErrFormat, "date %q too short", raw)
	}
	t, err := time.Parse(DateFormat, raw[:len(DateFormat)])
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrFormat, "date %q", raw)
	}
	return t, nil
}

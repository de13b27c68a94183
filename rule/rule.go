// Package rule holds the per-field cleaning and validation rules that
// run before a model is written. Cleaners transform a value and chain:
// each rule's output feeds the next. Validators only judge; the first
// failure aborts. Both receive a View over the owning entity so
// cross-field rules stay expressible.
package rule

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

// View is a narrow read-only accessor over the entity owning the value
// under inspection. It exposes other columns' current values and
// nothing else.
type View interface {
	Value(column string) (interface{}, bool)
}

type Cleaner interface {
	Clean(value interface{}, entity View) (interface{}, error)
}

type Validator interface {
	Validate(value interface{}, entity View) error
}

// Rules bundles the ordered chains attached to one column.
type Rules struct {
	Cleaners   []Cleaner
	Validators []Validator
}

// simpleByte reports whether c belongs to the simple-string class:
// codes 45-57 (- . / and digits), 65-90 and 97-122 (ASCII letters).
func simpleByte(c byte) bool {
	return (c >= 45 && c <= 57) || (c >= 65 && c <= 90) || (c >= 97 && c <= 122)
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}

func toString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return toString(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}

func toFloat(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return toFloat(rv.Elem().Interface())
	}
	f, err := strconv.ParseFloat(toString(v), 64)
	if err != nil {
		return 0, errors.Errorf("%v is not numeric", v)
	}
	return f, nil
}

type required struct{}

// Required fails when the value is nil, or when it is an empty string.
func Required() Validator { return required{} }

func (required) Validate(v interface{}, _ View) error {
	if isNil(v) {
		return errors.New("a value is required")
	}
	if s, ok := v.(string); ok && s == "" {
		return errors.New("a value is required")
	}
	return nil
}

type simpleString struct{}

// SimpleString fails on any character outside the simple-string class.
func SimpleString() Validator { return simpleString{} }

func (simpleString) Validate(v interface{}, _ View) error {
	if isNil(v) {
		return nil
	}
	s := toString(v)
	for i := 0; i < len(s); i++ {
		if !simpleByte(s[i]) {
			return errors.Errorf("invalid character %q", s[i])
		}
	}
	return nil
}

type minValue struct{ min float64 }

// MinValue fails when the value, read as a number, is below min.
func MinValue(min float64) Validator { return minValue{min} }

func (r minValue) Validate(v interface{}, _ View) error {
	if isNil(v) {
		return nil
	}
	f, err := toFloat(v)
	if err != nil {
		return err
	}
	if f < r.min {
		return errors.Errorf("%v is below the minimum %v", f, r.min)
	}
	return nil
}

type maxValue struct{ max float64 }

// MaxValue fails when the value, read as a number, exceeds max.
func MaxValue(max float64) Validator { return maxValue{max} }

func (r maxValue) Validate(v interface{}, _ View) error {
	if isNil(v) {
		return nil
	}
	f, err := toFloat(v)
	if err != nil {
		return err
	}
	if f > r.max {
		return errors.Errorf("%v exceeds the maximum %v", f, r.max)
	}
	return nil
}

type matchString struct{ allowed []string }

// MatchString fails unless the value equals one of the allowed strings.
func MatchString(allowed ...string) Validator { return matchString{allowed} }

func (r matchString) Validate(v interface{}, _ View) error {
	if isNil(v) {
		return nil
	}
	s := toString(v)
	for _, a := range r.allowed {
		if s == a {
			return nil
		}
	}
	return errors.Errorf("%q is not an allowed value", s)
}

type regex struct{ re *regexp.Regexp }

// Regex fails unless the value matches pattern. The pattern is compiled
// at construction; an invalid pattern is a configuration mistake and
// panics there, not during validation.
func Regex(pattern string) Validator { return regex{regexp.MustCompile(pattern)} }

func (r regex) Validate(v interface{}, _ View) error {
	if isNil(v) {
		return nil
	}
	if !r.re.MatchString(toString(v)) {
		return errors.Errorf("%q does not match %s", toString(v), r.re)
	}
	return nil
}

type equals struct{ column string }

// Equals fails unless the value equals the named column's current value
// on the owning entity.
func Equals(column string) Validator { return equals{column} }

func (r equals) Validate(v interface{}, e View) error {
	other, ok := e.Value(r.column)
	if !ok {
		return errors.Errorf("no column %s to compare against", r.column)
	}
	if toString(v) != toString(other) {
		return errors.Errorf("value does not equal column %s", r.column)
	}
	return nil
}

type decimals struct{ places int }

// Decimals rounds a numeric value to the given number of places.
func Decimals(places int) Cleaner { return decimals{places} }

func (r decimals) Clean(v interface{}, _ View) (interface{}, error) {
	if isNil(v) {
		return v, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return nil, err
	}
	shift := math.Pow(10, float64(r.places))
	return math.Round(f*shift) / shift, nil
}

type simplifyString struct{}

// SimplifyString replaces every character outside the simple-string
// class with '-'. The result always passes SimpleString.
func SimplifyString() Cleaner { return simplifyString{} }

func (simplifyString) Clean(v interface{}, _ View) (interface{}, error) {
	if isNil(v) {
		return v, nil
	}
	s := []byte(toString(v))
	for i, c := range s {
		if !simpleByte(c) {
			s[i] = '-'
		}
	}
	return string(s), nil
}

type asDouble struct{ wrapped Validator }

// AsDouble coerces the value to float64 before delegating to the
// wrapped validator.
func AsDouble(wrapped Validator) Validator { return asDouble{wrapped} }

func (r asDouble) Validate(v interface{}, e View) error {
	if isNil(v) {
		return r.wrapped.Validate(v, e)
	}
	f, err := toFloat(v)
	if err != nil {
		return err
	}
	return r.wrapped.Validate(f, e)
}

type asString struct{ wrapped Validator }

// AsString coerces the value to its string form before delegating to
// the wrapped validator.
func AsString(wrapped Validator) Validator { return asString{wrapped} }

func (r asString) Validate(v interface{}, e View) error {
	if isNil(v) {
		return r.wrapped.Validate(v, e)
	}
	return r.wrapped.Validate(toString(v), e)
}

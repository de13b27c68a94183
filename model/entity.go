// Package model wraps a tagged struct in an Entity: a column-keyed view
// over its fields plus the clean/validate/persist lifecycle. An Entity
// is a single-owner object; construct it, persist it and discard it.
// Only the cached schema behind it is shared.
package model

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"

	"tagsql/literal"
	"tagsql/log"
	"tagsql/schema"
)

// ErrNotFound is returned when a keyed lookup matches no row.
var ErrNotFound = errors.New("record not found")

// ValidationError reports the first validator failure of a write,
// naming the offending column.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Entity binds a struct pointer to its schema. Field values live in the
// struct itself, so direct field assignment and the column-keyed
// accessors see the same state.
type Entity struct {
	schema *schema.Schema
	value  reflect.Value
	logger log.Logger
}

// New wraps m, which must be a non-nil struct pointer with a registered
// or parseable schema.
func New(m schema.Model) (*Entity, error) {
	s, err := schema.For(m)
	if err != nil {
		return nil, err
	}
	rv := reflect.ValueOf(m)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return nil, errors.Errorf("model %T must be a non-nil struct pointer", m)
	}
	return &Entity{schema: s, value: rv.Elem(), logger: log.Default()}, nil
}

// FromRecord wraps m and loads the given column-keyed record into it.
func FromRecord(m schema.Model, record map[string]interface{}) (*Entity, error) {
	e, err := New(m)
	if err != nil {
		return nil, err
	}
	e.LoadValues(record)
	return e, nil
}

// SetLogger replaces the diagnostic sink used for skipped-field reports.
func (e *Entity) SetLogger(l log.Logger) {
	if l != nil {
		e.logger = l
	}
}

func (e *Entity) Table() string {
	return e.schema.Table
}

// IDColumn returns the identity column name, or false when the model
// declares none.
func (e *Entity) IDColumn() (string, bool) {
	if id := e.schema.Identity(); id != nil {
		return id.Column, true
	}
	return "", false
}

// IDValue returns the identity column's current value, or nil when the
// model declares no identity.
func (e *Entity) IDValue() interface{} {
	id := e.schema.Identity()
	if id == nil {
		return nil
	}
	return e.field(id).Interface()
}

// Get returns the named column's current value.
func (e *Entity) Get(column string) (interface{}, error) {
	f, ok := e.schema.Field(column)
	if !ok {
		return nil, errors.Wrapf(schema.ErrUnknownColumn, "%s.%s", e.Table(), column)
	}
	return e.field(f).Interface(), nil
}

// Set assigns the named column, normalizing the value to the field's
// declared kind first.
func (e *Entity) Set(column string, value interface{}) error {
	f, ok := e.schema.Field(column)
	if !ok {
		return errors.Wrapf(schema.ErrUnknownColumn, "%s.%s", e.Table(), column)
	}
	return e.assign(f, value)
}

// Value implements rule.View: the read-only accessor cross-field rules
// see.
func (e *Entity) Value(column string) (interface{}, bool) {
	f, ok := e.schema.Field(column)
	if !ok {
		return nil, false
	}
	return e.field(f).Interface(), true
}

// Values snapshots every mapped field. With excludeGenerated set, the
// shape handed to INSERT, auto-assigned identity fields are omitted so
// the database can mint the key, and optional fields still holding nil
// are omitted as well.
func (e *Entity) Values(excludeGenerated bool) map[string]interface{} {
	out := make(map[string]interface{}, len(e.schema.Fields))
	for _, f := range e.schema.Fields {
		v := e.field(f).Interface()
		if excludeGenerated {
			if f.Auto {
				continue
			}
			if f.Optional && isNilValue(v) {
				continue
			}
		}
		out[f.Column] = v
	}
	return out
}

// LoadValues feeds a result row into the entity. Each cell is
// normalized for its field's kind and assigned; a cell that cannot be
// normalized or assigned is logged and skipped so the remaining fields
// still load. Columns absent from the row leave their fields untouched.
func (e *Entity) LoadValues(row map[string]interface{}) {
	for _, f := range e.schema.Fields {
		cell, ok := row[f.Column]
		if !ok {
			continue
		}
		if err := e.assign(f, cell); err != nil {
			e.logger.Errorf("load %s.%s: %v (field skipped)", e.Table(), f.Column, err)
		}
	}
}

func (e *Entity) field(f *schema.Field) reflect.Value {
	return e.value.FieldByIndex(f.Index)
}

func (e *Entity) assign(f *schema.Field, cell interface{}) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("assign %s: %v", f.Column, p)
		}
	}()
	v, err := literal.Normalize(cell, f.Kind)
	if err != nil {
		return err
	}
	target := e.field(f)
	if v == nil {
		target.Set(reflect.Zero(f.Type))
		return nil
	}
	rv := reflect.ValueOf(v)
	if f.Type.Kind() == reflect.Ptr {
		if !rv.Type().ConvertibleTo(f.Type.Elem()) {
			return errors.Errorf("cannot assign %T to column %s", v, f.Column)
		}
		p := reflect.New(f.Type.Elem())
		p.Elem().Set(rv.Convert(f.Type.Elem()))
		target.Set(p)
		return nil
	}
	if !rv.Type().ConvertibleTo(f.Type) {
		return errors.Errorf("cannot assign %T to column %s", v, f.Column)
	}
	target.Set(rv.Convert(f.Type))
	return nil
}

func isNilValue(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}

// deref unwraps pointer values before rules see them, so a rule written
// against "the value" never has to care whether the field is optional.
func deref(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		return rv.Elem().Interface()
	}
	return v
}

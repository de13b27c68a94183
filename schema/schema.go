// Package schema derives table, column and rule metadata from a tagged
// model struct. Parsing happens once per type; every later lookup hits
// an immutable cached Schema, so the per-call cost of the mapping layer
// does not include reflection over tags.
//
// Declaration looks like:
//
//	type Dog struct {
//		Name  string `tagsql:"Name,id" check:"required,simple"`
//		Age   int    `check:"min=0"`
//		Owner string
//	}
//
//	func (*Dog) TableName() string { return "tblDog" }
//
// The first tag element overrides the column name; the flags id, auto
// and optional mark the identity column, a database-assigned identity,
// and a field omitted from inserts while unset. A field tagged "-" is
// not mapped at all.
package schema

import (
	"reflect"
	"sync"

	"github.com/pkg/errors"

	"tagsql/literal"
	"tagsql/rule"
)

var (
	// ErrNoTable reports a model that does not declare a table name.
	ErrNoTable = errors.New("model does not declare a table name")
	// ErrNoIdentity reports a keyed operation on a model without an
	// identity column.
	ErrNoIdentity = errors.New("model has no identity column")
	// ErrUnknownColumn reports a lookup for a column the model does not
	// map.
	ErrUnknownColumn = errors.New("no such column")
)

// Model is anything that names its own table. Absence of a table name
// is a configuration error, never a silent default.
type Model interface {
	TableName() string
}

// RuleProvider lets a model attach rules whose configuration does not
// fit the flat tag grammar (wrapped rules, custom implementations).
// Provided rules run after any tag-declared rules on the same column.
type RuleProvider interface {
	FieldRules() map[string]rule.Rules
}

// Field describes one mapped struct field.
type Field struct {
	Name       string
	Column     string
	Type       reflect.Type
	Kind       literal.Kind
	Identity   bool
	Auto       bool
	Optional   bool
	Index      []int
	Cleaners   []rule.Cleaner
	Validators []rule.Validator
}

// Schema is the immutable per-type metadata: table name, mapped fields
// in declaration order, and the identity column if one is declared.
type Schema struct {
	Model    reflect.Type
	Table    string
	Fields   []*Field
	Columns  []string
	fieldMap map[string]*Field
	identity *Field
}

// Field looks up a mapped field by column name.
func (s *Schema) Field(column string) (*Field, bool) {
	f, ok := s.fieldMap[column]
	return f, ok
}

// Identity returns the identity field, or nil when none is declared.
func (s *Schema) Identity() *Field {
	return s.identity
}

var cache sync.Map // reflect.Type -> *Schema

// For returns the cached Schema for m, parsing it on first use. The
// cache tolerates concurrent first population: whichever Parse result
// lands first wins and every caller sees the same Schema afterwards.
func For(m Model) (*Schema, error) {
	rv := reflect.ValueOf(m)
	if rv.Kind() == reflect.Ptr && rv.IsNil() {
		return nil, errors.Errorf("model %T is a nil pointer", m)
	}
	t := reflect.Indirect(rv).Type()
	if v, ok := cache.Load(t); ok {
		return v.(*Schema), nil
	}
	s, err := Parse(m)
	if err != nil {
		return nil, err
	}
	v, _ := cache.LoadOrStore(t, s)
	return v.(*Schema), nil
}

// Parse builds a Schema from the model's tags without consulting the
// cache.
func Parse(m Model) (*Schema, error) {
	rv := reflect.ValueOf(m)
	if rv.Kind() == reflect.Ptr && rv.IsNil() {
		return nil, errors.Errorf("model %T is a nil pointer", m)
	}
	table := m.TableName()
	if table == "" {
		return nil, errors.Wrapf(ErrNoTable, "%T", m)
	}
	value := reflect.Indirect(rv)
	if value.Kind() != reflect.Struct {
		return nil, errors.Errorf("model %T is not a struct", m)
	}
	typ := value.Type()
	s := &Schema{
		Model:    typ,
		Table:    table,
		fieldMap: make(map[string]*Field),
	}
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if sf.Anonymous || sf.PkgPath != "" {
			continue
		}
		tag := sf.Tag.Get("tagsql")
		if tag == "-" {
			continue
		}
		f, err := parseField(sf, tag)
		if err != nil {
			return nil, errors.Wrapf(err, "model %T", m)
		}
		if _, ok := s.fieldMap[f.Column]; ok {
			return nil, errors.Errorf("model %T maps column %s twice", m, f.Column)
		}
		if f.Identity {
			if s.identity != nil {
				return nil, errors.Errorf("model %T declares more than one identity column", m)
			}
			s.identity = f
		}
		s.Fields = append(s.Fields, f)
		s.Columns = append(s.Columns, f.Column)
		s.fieldMap[f.Column] = f
	}
	if rp, ok := m.(RuleProvider); ok {
		for column, rules := range rp.FieldRules() {
			f, ok := s.fieldMap[column]
			if !ok {
				return nil, errors.Wrapf(ErrUnknownColumn, "model %T rules for %s", m, column)
			}
			f.Cleaners = append(f.Cleaners, rules.Cleaners...)
			f.Validators = append(f.Validators, rules.Validators...)
		}
	}
	return s, nil
}

func parseField(sf reflect.StructField, tag string) (*Field, error) {
	f := &Field{
		Name:   sf.Name,
		Column: sf.Name,
		Type:   sf.Type,
		Kind:   literal.KindOf(sf.Type),
		Index:  sf.Index,
	}
	if tag != "" {
		parts := splitTag(tag)
		if parts[0] != "" {
			f.Column = parts[0]
		}
		for _, flag := range parts[1:] {
			switch flag {
			case "id":
				f.Identity = true
			case "auto":
				f.Auto = true
			case "optional":
				f.Optional = true
			default:
				return nil, errors.Errorf("field %s: unknown tag flag %q", sf.Name, flag)
			}
		}
	}
	if clean := sf.Tag.Get("clean"); clean != "" {
		cleaners, err := rule.ParseClean(clean)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", sf.Name)
		}
		f.Cleaners = cleaners
	}
	if check := sf.Tag.Get("check"); check != "" {
		validators, err := rule.ParseCheck(check)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", sf.Name)
		}
		f.Validators = validators
	}
	return f, nil
}

func splitTag(tag string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(tag); i++ {
		if i == len(tag) || tag[i] == ',' {
			out = append(out, tag[start:i])
			start = i + 1
		}
	}
	return out
}

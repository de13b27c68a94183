package model

import (
	"context"
	"reflect"

	"github.com/pkg/errors"

	"tagsql/clause"
	"tagsql/gateway"
	"tagsql/log"
	"tagsql/schema"
)

// Query narrows a Find: which columns to select, the filter, and the
// rendering options of the generated SELECT.
type Query struct {
	Columns  []string
	Where    *clause.Predicate
	Top      int
	Distinct bool
	OrderBy  string
}

// Load materializes m from the row whose identity column equals key.
// Zero rows is ErrNotFound; the caller decides whether absence is
// recoverable.
func Load(gw gateway.Gateway, m schema.Model, key interface{}) (*Entity, error) {
	return LoadContext(context.Background(), gw, m, key)
}

func LoadContext(ctx context.Context, gw gateway.Gateway, m schema.Model, key interface{}) (*Entity, error) {
	e, err := New(m)
	if err != nil {
		return nil, err
	}
	id := e.schema.Identity()
	if id == nil {
		return nil, errors.Wrapf(schema.ErrNoIdentity, "load %s", e.Table())
	}
	return e, e.loadWhere(ctx, gw, id.Column, key)
}

// LoadWhere materializes m from the first row matching column=value.
func LoadWhere(gw gateway.Gateway, m schema.Model, column string, value interface{}) (*Entity, error) {
	return LoadWhereContext(context.Background(), gw, m, column, value)
}

func LoadWhereContext(ctx context.Context, gw gateway.Gateway, m schema.Model, column string, value interface{}) (*Entity, error) {
	e, err := New(m)
	if err != nil {
		return nil, err
	}
	if _, ok := e.schema.Field(column); !ok {
		return nil, errors.Wrapf(schema.ErrUnknownColumn, "%s.%s", e.Table(), column)
	}
	return e, e.loadWhere(ctx, gw, column, value)
}

func (e *Entity) loadWhere(ctx context.Context, gw gateway.Gateway, column string, value interface{}) error {
	sel := clause.Select{
		Table:   e.Table(),
		Columns: e.schema.Columns,
		Where:   clause.Where(column, value),
	}
	res, err := gw.ExecuteContext(ctx, sel.Build(), false, nil, true)
	if err != nil {
		// Read-path failures are non-fatal by policy: note them and let
		// the empty result fall through to not-found.
		e.logger.Errorf("load %s: %v", e.Table(), err)
	}
	if res == nil || len(res.Rows) == 0 {
		return errors.Wrapf(ErrNotFound, "%s where %s=%v", e.Table(), column, value)
	}
	e.LoadValues(res.Rows[0])
	return nil
}

// Find renders a SELECT for M's table, executes it, and materializes
// one fresh instance per returned row, in result order. A gateway
// failure on this read path is logged and yields an empty slice rather
// than an error; writes never get that treatment.
func Find[M schema.Model](gw gateway.Gateway, q Query) ([]M, error) {
	return FindContext[M](context.Background(), gw, q)
}

func FindContext[M schema.Model](ctx context.Context, gw gateway.Gateway, q Query) ([]M, error) {
	var zero M
	t := reflect.TypeOf(zero)
	if t == nil || t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		return nil, errors.Errorf("find: %T is not a struct pointer model", zero)
	}
	probe := reflect.New(t.Elem()).Interface().(M)
	s, err := schema.For(probe)
	if err != nil {
		return nil, err
	}
	cols := q.Columns
	if len(cols) == 0 {
		cols = s.Columns
	}
	sel := clause.Select{
		Table:    s.Table,
		Columns:  cols,
		Where:    q.Where,
		Top:      q.Top,
		Distinct: q.Distinct,
		OrderBy:  q.OrderBy,
	}
	res, err := gw.ExecuteContext(ctx, sel.Build(), false, nil, true)
	if err != nil {
		log.Errorf("find %s: %v (returning empty set)", s.Table, err)
		return nil, nil
	}
	out := make([]M, 0, len(res.Rows))
	for _, row := range res.Rows {
		m := reflect.New(t.Elem()).Interface().(M)
		e, err := New(m)
		if err != nil {
			return nil, err
		}
		e.LoadValues(row)
		out = append(out, m)
	}
	return out, nil
}

// Count returns the number of rows matching the predicate. Like every
// read path, a gateway failure logs and reports zero.
func Count(gw gateway.Gateway, m schema.Model, where *clause.Predicate) (int64, error) {
	return CountContext(context.Background(), gw, m, where)
}

func CountContext(ctx context.Context, gw gateway.Gateway, m schema.Model, where *clause.Predicate) (int64, error) {
	s, err := schema.For(m)
	if err != nil {
		return 0, err
	}
	sel := clause.Select{Table: s.Table, Columns: []string{"count(*)"}, Where: where}
	res, err := gw.ExecuteContext(ctx, sel.Build(), false, nil, false)
	if err != nil {
		log.Errorf("count %s: %v (returning zero)", s.Table, err)
		return 0, nil
	}
	if len(res.Scalars) == 0 {
		return 0, nil
	}
	switch n := res.Scalars[0].(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	}
	return 0, errors.Errorf("count %s: unexpected cell %T", s.Table, res.Scalars[0])
}

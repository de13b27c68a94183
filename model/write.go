package model

import (
	"context"

	"github.com/pkg/errors"

	"tagsql/clause"
	"tagsql/gateway"
	"tagsql/schema"
)

// Clean runs every field's cleaner chain in declaration order, feeding
// each rule's output back into the field. Unlike LoadValues this path
// is fail-fast: the first failing rule aborts the pass, wrapped with
// the offending column.
func (e *Entity) Clean() error {
	for _, f := range e.schema.Fields {
		if len(f.Cleaners) == 0 {
			continue
		}
		v := deref(e.field(f).Interface())
		for _, c := range f.Cleaners {
			nv, err := c.Clean(v, e)
			if err != nil {
				return errors.Wrapf(err, "clean %s.%s", e.Table(), f.Column)
			}
			v = nv
		}
		if err := e.assign(f, v); err != nil {
			return errors.Wrapf(err, "clean %s.%s", e.Table(), f.Column)
		}
	}
	return nil
}

// Validate runs every field's validator chain in declaration order. The
// first rule that fails aborts validation with a ValidationError naming
// the column; nothing after it runs.
func (e *Entity) Validate() error {
	for _, f := range e.schema.Fields {
		v := deref(e.field(f).Interface())
		for _, val := range f.Validators {
			if err := val.Validate(v, e); err != nil {
				return &ValidationError{Field: f.Column, Message: err.Error()}
			}
		}
	}
	return nil
}

// Create inserts the entity. With validate set, Clean runs first and
// Validate second, so rules check the normalized values; any failure
// aborts before a statement is rendered. Gateway failures on this write
// path propagate to the caller, never swallowed.
func (e *Entity) Create(gw gateway.Gateway, validate bool) error {
	return e.CreateContext(context.Background(), gw, validate)
}

func (e *Entity) CreateContext(ctx context.Context, gw gateway.Gateway, validate bool) error {
	if err := e.prepare(validate); err != nil {
		return err
	}
	ins := clause.Insert{Table: e.Table(), Fields: e.writeFields(true)}
	id := e.schema.Identity()
	if id != nil && id.Auto {
		// The database assigns the key, so ask the whole row back and
		// reload it to pick up every generated column.
		ins.Output = e.schema.Columns
	}
	command, ok := ins.Build()
	if !ok {
		return nil
	}
	res, err := gw.ExecuteContext(ctx, command, false, nil, len(ins.Output) > 0)
	if err != nil {
		return errors.Wrapf(err, "insert into %s", e.Table())
	}
	if len(ins.Output) > 0 && res != nil && len(res.Rows) > 0 {
		e.LoadValues(res.Rows[0])
	}
	return nil
}

// Update rewrites the row matching the entity's identity value. Models
// without an identity column cannot be updated this way.
func (e *Entity) Update(gw gateway.Gateway, validate bool) error {
	return e.UpdateContext(context.Background(), gw, validate)
}

func (e *Entity) UpdateContext(ctx context.Context, gw gateway.Gateway, validate bool) error {
	if err := e.prepare(validate); err != nil {
		return err
	}
	id := e.schema.Identity()
	if id == nil {
		return errors.Wrapf(schema.ErrNoIdentity, "update %s", e.Table())
	}
	upd := clause.Update{
		Table:  e.Table(),
		Fields: e.writeFields(false),
		Where:  clause.Where(id.Column, e.field(id).Interface()),
	}
	command, ok := upd.Build()
	if !ok {
		return nil
	}
	if _, err := gw.ExecuteContext(ctx, command, false, nil, false); err != nil {
		return errors.Wrapf(err, "update %s", e.Table())
	}
	return nil
}

// Delete removes the row matching the entity's identity value.
func (e *Entity) Delete(gw gateway.Gateway) error {
	return e.DeleteContext(context.Background(), gw)
}

func (e *Entity) DeleteContext(ctx context.Context, gw gateway.Gateway) error {
	id := e.schema.Identity()
	if id == nil {
		return errors.Wrapf(schema.ErrNoIdentity, "delete %s", e.Table())
	}
	del := clause.Delete{
		Table: e.Table(),
		Where: clause.Where(id.Column, e.field(id).Interface()),
	}
	if _, err := gw.ExecuteContext(ctx, del.Build(), false, nil, false); err != nil {
		return errors.Wrapf(err, "delete from %s", e.Table())
	}
	return nil
}

func (e *Entity) prepare(validate bool) error {
	if !validate {
		return nil
	}
	if err := e.Clean(); err != nil {
		return err
	}
	return e.Validate()
}

// writeFields serializes the current field values in declaration order.
// Auto-assigned fields never render. On the insert path the identity
// column renders and unset optional fields are omitted so the database
// fills their defaults; on the update path the identity stays out of
// the SET list and a nil optional renders as null, so updates can clear
// the column.
func (e *Entity) writeFields(insert bool) *clause.Fields {
	fields := clause.NewFields()
	for _, f := range e.schema.Fields {
		if f.Auto {
			continue
		}
		if f.Identity && !insert {
			continue
		}
		v := e.field(f).Interface()
		if insert && f.Optional && isNilValue(v) {
			continue
		}
		fields.Set(f.Column, v)
	}
	return fields
}

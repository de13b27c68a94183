package model

import (
	"context"
	"sort"

	"tagsql/clause"
	"tagsql/gateway"
	"tagsql/log"
)

// Partial is the schema-less entity variant: it keeps every column a
// query returns, declared or not, in result order. Useful for ad-hoc
// projections and joins that no tagged struct describes.
type Partial struct {
	table   string
	columns []string
	values  map[string]interface{}
}

func NewPartial(table string) *Partial {
	return &Partial{table: table, values: make(map[string]interface{})}
}

func (p *Partial) Table() string { return p.table }

// Columns lists every loaded column in first-seen order.
func (p *Partial) Columns() []string { return p.columns }

func (p *Partial) Value(column string) (interface{}, bool) {
	v, ok := p.values[column]
	return v, ok
}

func (p *Partial) Set(column string, value interface{}) {
	if _, ok := p.values[column]; !ok {
		p.columns = append(p.columns, column)
	}
	p.values[column] = value
}

// LoadValues keeps the whole row. Unlike Entity.LoadValues there is no
// declared kind to normalize against, so cells land as the gateway
// delivered them. Keys are visited sorted to keep column order stable.
func (p *Partial) LoadValues(row map[string]interface{}) {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.Set(k, row[k])
	}
}

// FindPartial runs an arbitrary projection against table and returns
// one Partial per row. The read-path failure policy applies: a gateway
// error logs and yields an empty result.
func FindPartial(gw gateway.Gateway, table string, q Query) ([]*Partial, error) {
	return FindPartialContext(context.Background(), gw, table, q)
}

func FindPartialContext(ctx context.Context, gw gateway.Gateway, table string, q Query) ([]*Partial, error) {
	sel := clause.Select{
		Table:    table,
		Columns:  q.Columns,
		Where:    q.Where,
		Top:      q.Top,
		Distinct: q.Distinct,
		OrderBy:  q.OrderBy,
	}
	res, err := gw.ExecuteContext(ctx, sel.Build(), false, nil, true)
	if err != nil {
		log.Errorf("find %s: %v (returning empty set)", table, err)
		return nil, nil
	}
	out := make([]*Partial, 0, len(res.Rows))
	for _, row := range res.Rows {
		p := NewPartial(table)
		p.LoadValues(row)
		out = append(out, p)
	}
	return out, nil
}

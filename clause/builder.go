package clause

import (
	"strconv"
	"strings"
)

// Insert renders an INSERT statement from an accumulated field set.
// Output names columns to request back from the database after the row
// is stored (generated identity values); when present the statement
// returns the inserted row.
type Insert struct {
	Table  string
	Fields *Fields
	Output []string
}

// Build renders the statement. An empty accumulator yields ok=false:
// there is nothing to insert, which callers must treat as a no-op, not
// an error.
func (i Insert) Build() (string, bool) {
	if i.Fields.Count() == 0 {
		return "", false
	}
	cols := i.Fields.Columns()
	vals := make([]string, len(cols))
	for n, c := range cols {
		vals[n], _ = i.Fields.Text(c)
	}
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(i.Table)
	b.WriteString(" (")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(")")
	if len(i.Output) > 0 {
		out := make([]string, len(i.Output))
		for n, c := range i.Output {
			out[n] = "INSERTED." + c
		}
		b.WriteString(" OUTPUT ")
		b.WriteString(strings.Join(out, ", "))
	}
	b.WriteString(" VALUES (")
	b.WriteString(strings.Join(vals, ", "))
	b.WriteString(")")
	return b.String(), true
}

// Update renders an UPDATE statement. An empty Where predicate produces
// an unconditional statement that updates every row of the table; that
// is intentional behavior for whole-table maintenance, so callers must
// populate Where for anything keyed.
type Update struct {
	Table  string
	Fields *Fields
	Where  *Predicate
}

// Build renders the statement, or ok=false when the accumulator is
// empty (no-op, not an error).
func (u Update) Build() (string, bool) {
	if u.Fields.Count() == 0 {
		return "", false
	}
	sets := make([]string, 0, u.Fields.Count())
	for _, c := range u.Fields.Columns() {
		text, _ := u.Fields.Text(c)
		sets = append(sets, c+" = "+text)
	}
	s := "UPDATE " + u.Table + " SET " + strings.Join(sets, ", ")
	if w, ok := u.Where.Render(); ok {
		s += " WHERE " + w
	}
	return s, true
}

// Delete renders a DELETE statement. As with Update, an empty predicate
// deletes every row.
type Delete struct {
	Table   string
	Where   *Predicate
	Top     int
	OrderBy string
}

func (d Delete) Build() string {
	s := "DELETE"
	if d.Top > 0 {
		s += " TOP " + strconv.Itoa(d.Top)
	}
	s += " FROM " + d.Table
	if w, ok := d.Where.Render(); ok {
		s += " WHERE " + w
	}
	if d.OrderBy != "" {
		s += " ORDER BY " + d.OrderBy
	}
	return s
}

// Select renders a SELECT statement. An empty column list selects *.
// Result order is whatever the database returns unless OrderBy is given.
type Select struct {
	Table    string
	Columns  []string
	Where    *Predicate
	Top      int
	Distinct bool
	OrderBy  string
}

func (s Select) Build() string {
	cols := "*"
	if len(s.Columns) > 0 {
		cols = strings.Join(s.Columns, ", ")
	}
	q := "SELECT"
	if s.Distinct {
		q += " DISTINCT"
	}
	if s.Top > 0 {
		q += " TOP " + strconv.Itoa(s.Top)
	}
	q += " " + cols + " FROM " + s.Table
	if w, ok := s.Where.Render(); ok {
		q += " WHERE " + w
	}
	if s.OrderBy != "" {
		q += " ORDER BY " + s.OrderBy
	}
	return q
}

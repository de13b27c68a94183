package clause

import "tagsql/literal"

// Predicate accumulates a boolean filter expression over columns. A
// fresh Predicate is empty and renders to nothing, which statement
// builders treat as "no WHERE clause at all": the statement runs
// unconditionally.
//
// Repeated Set calls always conjoin with and, regardless of any prior
// Or/And combination; this is deliberately not a general expression DSL.
// It supports exactly "accumulated ands, combined at most pairwise via
// explicit Or/And calls". Empty is the identity for both Or and And, so
// combining against an optional, never-populated filter is a safe no-op.
type Predicate struct {
	expr  string
	terms int
	mixed bool // the top-level operator of expr is or
}

func NewPredicate() *Predicate {
	return &Predicate{}
}

// Where is shorthand for NewPredicate().Set(column, value).
func Where(column string, value interface{}) *Predicate {
	return NewPredicate().Set(column, value)
}

func (p *Predicate) Empty() bool {
	return p == nil || p.terms == 0
}

// Set conjoins the terminal "column<cmp>" where the comparison fragment
// follows the literal rules: nil compares IS NULL, a two-element pair
// compares between, anything else compares equal.
func (p *Predicate) Set(column string, value interface{}) *Predicate {
	return p.add(column + literal.RenderComparison(value))
}

// SetNot conjoins the negation of the Set terminal.
func (p *Predicate) SetNot(column string, value interface{}) *Predicate {
	return p.add("not " + column + literal.RenderComparison(value))
}

// SetBetween conjoins an explicit range terminal over column.
func (p *Predicate) SetBetween(column string, lo, hi interface{}) *Predicate {
	return p.add(column + " between " + literal.Render(lo) + " and " + literal.Render(hi))
}

// SetLike conjoins "column like '%substring%'". The substring is
// inserted verbatim: LIKE wildcards and quotes inside it are the
// caller's responsibility.
func (p *Predicate) SetLike(column, substring string) *Predicate {
	return p.add(column + " like '%" + substring + "%'")
}

// SetNotLike conjoins the negated pattern terminal.
func (p *Predicate) SetNotLike(column, substring string) *Predicate {
	return p.add("not " + column + " like '%" + substring + "%'")
}

// And folds other into p with the and operator. If either side is empty
// the other side is the result, unchanged.
func (p *Predicate) And(other *Predicate) *Predicate {
	return p.combine("and", other, false)
}

// AndNot is And with the incoming operand negated.
func (p *Predicate) AndNot(other *Predicate) *Predicate {
	return p.combine("and", other, true)
}

// Or folds other into p with the or operator. If either side is empty
// the other side is the result, unchanged.
func (p *Predicate) Or(other *Predicate) *Predicate {
	return p.combine("or", other, false)
}

// OrNot is Or with the incoming operand negated.
func (p *Predicate) OrNot(other *Predicate) *Predicate {
	return p.combine("or", other, true)
}

// Render returns the finished boolean expression, or false when the
// predicate is empty. A lone terminal renders bare; anything larger is
// wrapped in parentheses.
func (p *Predicate) Render() (string, bool) {
	if p.Empty() {
		return "", false
	}
	if p.terms == 1 {
		return p.expr, true
	}
	return "(" + p.expr + ")", true
}

func (p *Predicate) add(term string) *Predicate {
	switch {
	case p.terms == 0:
		p.expr = term
	case p.mixed:
		// The accumulated tree ends in an or; without parentheses the
		// new terminal would bind only to its right arm.
		p.expr = "(" + p.expr + ") and " + term
		p.mixed = false
	default:
		p.expr += " and " + term
	}
	p.terms++
	return p
}

func (p *Predicate) combine(op string, other *Predicate, negate bool) *Predicate {
	if other.Empty() {
		return p
	}
	expr := other.expr
	if negate {
		expr = "not (" + expr + ")"
	}
	if p.Empty() {
		p.expr = expr
		p.terms = other.terms
		p.mixed = other.mixed && !negate
		return p
	}
	p.expr = "(" + p.expr + ") " + op + " (" + expr + ")"
	p.terms += other.terms
	p.mixed = op == "or"
	return p
}

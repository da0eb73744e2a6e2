// Package query implements the restricted predicate language evaluated over
// decrypted records: equality/ordering comparisons on flat fields combined
// with and/or/not. It is an owned expression tree evaluated directly — no
// embedded evaluator, so the query surface stays auditable and free of
// injection risk.
package query

import (
	"fmt"

	"packetvault/internal/core/domain"
)

// Op is a comparison operator.
type Op string

const (
	OpEq Op = "=="
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

// Expr is a predicate node. Eval never errors: a field referenced by the
// predicate but absent from a record makes that comparison false, so
// heterogeneous records stay queryable without schema coordination.
type Expr interface {
	Eval(rec *domain.PlaintextRecord) bool
	String() string
}

// Comparison compares one record field against a literal (string or number).
type Comparison struct {
	Field string
	Op    Op
	Value any // string, float64 or bool
}

func (c *Comparison) Eval(rec *domain.PlaintextRecord) bool {
	v, ok := rec.Field(c.Field)
	if !ok {
		return false
	}
	switch c.Op {
	case OpEq:
		eq, ok := equal(v, c.Value)
		return ok && eq
	case OpNe:
		eq, ok := equal(v, c.Value)
		return ok && !eq
	default:
		cmp, ok := order(v, c.Value)
		if !ok {
			return false
		}
		switch c.Op {
		case OpLt:
			return cmp < 0
		case OpLe:
			return cmp <= 0
		case OpGt:
			return cmp > 0
		case OpGe:
			return cmp >= 0
		}
		return false
	}
}

func (c *Comparison) String() string {
	if s, ok := c.Value.(string); ok {
		return fmt.Sprintf("%s %s %q", c.Field, c.Op, s)
	}
	return fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value)
}

// And short-circuits left to right.
type And struct{ Left, Right Expr }

func (a *And) Eval(rec *domain.PlaintextRecord) bool {
	return a.Left.Eval(rec) && a.Right.Eval(rec)
}
func (a *And) String() string { return fmt.Sprintf("(%s and %s)", a.Left, a.Right) }

// Or short-circuits left to right.
type Or struct{ Left, Right Expr }

func (o *Or) Eval(rec *domain.PlaintextRecord) bool {
	return o.Left.Eval(rec) || o.Right.Eval(rec)
}
func (o *Or) String() string { return fmt.Sprintf("(%s or %s)", o.Left, o.Right) }

// Not negates its operand. A missing field still fails the inner comparison
// first, so `not missing == 1` is true — negation applies to the comparison
// result, not to field presence.
type Not struct{ Expr Expr }

func (n *Not) Eval(rec *domain.PlaintextRecord) bool { return !n.Expr.Eval(rec) }
func (n *Not) String() string                        { return fmt.Sprintf("not %s", n.Expr) }

// Evaluate filters records through the predicate. Stable: output order matches
// input order. Empty input yields an empty (non-nil) result.
func Evaluate(records []domain.PlaintextRecord, expr Expr) []domain.PlaintextRecord {
	matched := make([]domain.PlaintextRecord, 0, len(records))
	for i := range records {
		if expr.Eval(&records[i]) {
			matched = append(matched, records[i])
		}
	}
	return matched
}

// equal reports whether two values are comparable and equal. Numbers compare
// numerically across int/int64/float64; strings and bools compare directly.
func equal(a, b any) (eq bool, ok bool) {
	if fa, aok := asFloat(a); aok {
		fb, bok := asFloat(b)
		return fa == fb, bok
	}
	switch av := a.(type) {
	case string:
		bv, bok := b.(string)
		return av == bv, bok
	case bool:
		bv, bok := b.(bool)
		return av == bv, bok
	}
	return false, false
}

// order returns -1/0/1 for comparable ordered values: numeric pairs or
// string pairs. Mixed or unordered types report ok=false.
func order(a, b any) (cmp int, ok bool) {
	if fa, aok := asFloat(a); aok {
		fb, bok := asFloat(b)
		if !bok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	av, aok := a.(string)
	bv, bok := b.(string)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case av < bv:
		return -1, true
	case av > bv:
		return 1, true
	}
	return 0, true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

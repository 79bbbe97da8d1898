package expr

import "errors"

var (
	// ErrEmpty is returned for expressions without any predicate.
	ErrEmpty = errors.New("expr: empty expression")

	// ErrNotNormalized is returned when an expression still contains negations.
	ErrNotNormalized = errors.New("expr: expression contains negations")
)

// Normalize pushes negations into the predicates, flattens nested
// connectives of the same kind, removes single-operand connectives and
// moves extractors to the left-hand side of predicates.
func Normalize(e Expression) (Expression, error) {
	if e == nil {
		return nil, ErrEmpty
	}
	out := normalize(e, false)
	if out == nil {
		return nil, ErrEmpty
	}
	return out, nil
}

func normalize(e Expression, negate bool) Expression {
	switch x := e.(type) {
	case Predicate:
		if negate {
			x.Op = Negate(x.Op)
		}
		return orient(x)
	case Negation:
		if x.Expr == nil {
			return nil
		}
		return normalize(x.Expr, !negate)
	case Conjunction:
		return connective(x, negate, negate)
	case Disjunction:
		return connective(x, !negate, negate)
	default:
		return nil
	}
}

// connective normalizes children and rebuilds a conjunction or disjunction.
// disjunction selects the result kind, negate is passed down.
func connective(xs []Expression, disjunction, negate bool) Expression {
	var out []Expression
	for _, x := range xs {
		c := normalize(x, negate)
		if c == nil {
			continue
		}
		switch y := c.(type) {
		case Conjunction:
			if !disjunction {
				out = append(out, y...)
				continue
			}
		case Disjunction:
			if disjunction {
				out = append(out, y...)
				continue
			}
		}
		out = append(out, c)
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	if disjunction {
		return Disjunction(out)
	}
	return Conjunction(out)
}

func orient(p Predicate) Predicate {
	_, lhsValue := p.LHS.(Value)
	_, rhsValue := p.RHS.(Value)
	if lhsValue && !rhsValue && p.Op != Match && p.Op != NotMatch {
		return Predicate{LHS: p.RHS, Op: Flip(p.Op), RHS: p.LHS}
	}
	return p
}

// Validate checks that e is a non-empty normalized expression.
func Validate(e Expression) error {
	if e == nil {
		return ErrEmpty
	}
	switch x := e.(type) {
	case Predicate:
		return nil
	case Negation:
		return ErrNotNormalized
	default:
		children := Children(x)
		if len(children) == 0 {
			return ErrEmpty
		}
		for _, c := range children {
			if err := Validate(c); err != nil {
				return err
			}
		}
		return nil
	}
}

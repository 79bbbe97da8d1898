// Package expr provides the boolean query expression tree consumed by the
// indexing core.
//
// An Expression is one of Predicate, Conjunction, Disjunction or Negation.
// Positions inside a tree are addressed by an Offset: the root has offset
// [0] and the i-th child of the node at offset o has offset o+[i].
package expr

import (
	"slices"
	"strconv"
	"strings"

	"github.com/hupe1980/eventidx/types"
)

// Expression is a node of a boolean query expression.
type Expression interface {
	String() string
	isExpression()
}

// Operand is one side of a predicate.
type Operand interface {
	String() string
	isOperand()
}

// FieldExtractor selects the column with the given name. Nested names are
// dotted; a name also matches any column whose dotted name ends with it.
type FieldExtractor struct {
	Name string
}

// TypeExtractor selects all columns of the given type. A named type matches
// columns with the same alias, an unnamed type matches by kind.
type TypeExtractor struct {
	Type types.Type
}

// Value is a constant operand.
type Value struct {
	Data types.Data
}

func (FieldExtractor) isOperand() {}
func (TypeExtractor) isOperand()  {}
func (Value) isOperand()          {}

func (f FieldExtractor) String() string { return f.Name }
func (t TypeExtractor) String() string  { return ":" + t.Type.String() }
func (v Value) String() string          { return v.Data.String() }

// Predicate is a leaf comparing two operands.
type Predicate struct {
	LHS Operand
	Op  Op
	RHS Operand
}

// Conjunction is the logical AND of its operands.
type Conjunction []Expression

// Disjunction is the logical OR of its operands.
type Disjunction []Expression

// Negation is the logical NOT of its operand.
type Negation struct {
	Expr Expression
}

func (Predicate) isExpression()   {}
func (Conjunction) isExpression() {}
func (Disjunction) isExpression() {}
func (Negation) isExpression()    {}

// NewPredicate returns the predicate "lhs op rhs".
func NewPredicate(lhs Operand, op Op, rhs Operand) Predicate {
	return Predicate{LHS: lhs, Op: op, RHS: rhs}
}

// Field returns a predicate over a named column.
func Field(name string, op Op, rhs types.Data) Predicate {
	return Predicate{LHS: FieldExtractor{Name: name}, Op: op, RHS: Value{Data: rhs}}
}

// OfType returns a predicate over all columns of type t.
func OfType(t types.Type, op Op, rhs types.Data) Predicate {
	return Predicate{LHS: TypeExtractor{Type: t}, Op: op, RHS: Value{Data: rhs}}
}

// And returns the conjunction of xs.
func And(xs ...Expression) Conjunction { return Conjunction(xs) }

// Or returns the disjunction of xs.
func Or(xs ...Expression) Disjunction { return Disjunction(xs) }

// Not returns the negation of x.
func Not(x Expression) Negation { return Negation{Expr: x} }

func (p Predicate) String() string {
	return p.LHS.String() + " " + p.Op.String() + " " + p.RHS.String()
}

func (c Conjunction) String() string { return join(c, " && ") }
func (d Disjunction) String() string { return join(d, " || ") }
func (n Negation) String() string    { return "! " + n.Expr.String() }

func join(xs []Expression, sep string) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = x.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// Offset is the position of a node within an expression tree.
type Offset []int

// Root is the offset of the root node.
var Root = Offset{0}

// Child returns the offset of the i-th child of o.
func (o Offset) Child(i int) Offset {
	c := make(Offset, len(o)+1)
	copy(c, o)
	c[len(o)] = i
	return c
}

// Equal reports whether o and p denote the same position.
func (o Offset) Equal(p Offset) bool { return slices.Equal(o, p) }

// String renders the offset as dot-separated indices, e.g. "0.1.2".
func (o Offset) String() string {
	parts := make([]string, len(o))
	for i, x := range o {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ".")
}

// Key returns a comparable form of the offset for use as a map key.
func (o Offset) Key() string { return o.String() }

// At returns the node of e at offset o, or nil if o does not address a node.
func At(e Expression, o Offset) Expression {
	if len(o) == 0 || o[0] != 0 || e == nil {
		return nil
	}
	for _, i := range o[1:] {
		children := Children(e)
		if i < 0 || i >= len(children) {
			return nil
		}
		e = children[i]
	}
	return e
}

// Children returns the operands of a connective, or nil for predicates.
func Children(e Expression) []Expression {
	switch x := e.(type) {
	case Conjunction:
		return x
	case Disjunction:
		return x
	case Negation:
		return []Expression{x.Expr}
	default:
		return nil
	}
}

// Leaf is a predicate together with its position.
type Leaf struct {
	Offset    Offset
	Predicate Predicate
}

// Leaves returns all predicates of e in depth-first order.
func Leaves(e Expression) []Leaf {
	var out []Leaf
	var walk func(e Expression, o Offset)
	walk = func(e Expression, o Offset) {
		if p, ok := e.(Predicate); ok {
			out = append(out, Leaf{Offset: o, Predicate: p})
			return
		}
		for i, c := range Children(e) {
			walk(c, o.Child(i))
		}
	}
	if e != nil {
		walk(e, Root)
	}
	return out
}

// Curried is a predicate whose left operand has been bound to a column.
type Curried struct {
	Op  Op
	RHS types.Data
}

func (c Curried) String() string { return c.Op.String() + " " + c.RHS.String() }

// Curry splits p into its extractor and the remaining curried predicate.
// It reports false if p does not compare an extractor with a value.
func Curry(p Predicate) (Operand, Curried, bool) {
	v, ok := p.RHS.(Value)
	if !ok {
		return nil, Curried{}, false
	}
	switch p.LHS.(type) {
	case FieldExtractor, TypeExtractor:
		return p.LHS, Curried{Op: p.Op, RHS: v.Data}, true
	default:
		return nil, Curried{}, false
	}
}

package expr

import "fmt"

// Op is a relational operator.
type Op uint8

const (
	// Equal is "==".
	Equal Op = iota
	// NotEqual is "!=".
	NotEqual
	// Less is "<".
	Less
	// LessEqual is "<=".
	LessEqual
	// Greater is ">".
	Greater
	// GreaterEqual is ">=".
	GreaterEqual
	// In is "in": the left operand is contained in the right one.
	In
	// NotIn is "!in".
	NotIn
	// Ni is "ni": the left operand contains the right one.
	Ni
	// NotNi is "!ni".
	NotNi
	// Match is "~": the left operand matches the regular expression on the right.
	Match
	// NotMatch is "!~".
	NotMatch
)

var opNames = [...]string{
	Equal:        "==",
	NotEqual:     "!=",
	Less:         "<",
	LessEqual:    "<=",
	Greater:      ">",
	GreaterEqual: ">=",
	In:           "in",
	NotIn:        "!in",
	Ni:           "ni",
	NotNi:        "!ni",
	Match:        "~",
	NotMatch:     "!~",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", op)
}

// ParseOp parses the textual form of an operator.
func ParseOp(s string) (Op, error) {
	for op, name := range opNames {
		if name == s {
			return Op(op), nil
		}
	}
	return 0, fmt.Errorf("expr: unknown operator %q", s)
}

// Negate returns the complement of op.
func Negate(op Op) Op {
	switch op {
	case Equal:
		return NotEqual
	case NotEqual:
		return Equal
	case Less:
		return GreaterEqual
	case LessEqual:
		return Greater
	case Greater:
		return LessEqual
	case GreaterEqual:
		return Less
	case In:
		return NotIn
	case NotIn:
		return In
	case Ni:
		return NotNi
	case NotNi:
		return Ni
	case Match:
		return NotMatch
	default:
		return Match
	}
}

// Flip returns the operator obtained by swapping the operands.
func Flip(op Op) Op {
	switch op {
	case Less:
		return Greater
	case LessEqual:
		return GreaterEqual
	case Greater:
		return Less
	case GreaterEqual:
		return LessEqual
	case In:
		return Ni
	case NotIn:
		return NotNi
	case Ni:
		return In
	case NotNi:
		return NotIn
	default:
		return op
	}
}

// Negated reports whether op is one of the negative operators.
func Negated(op Op) bool {
	switch op {
	case NotEqual, NotIn, NotNi, NotMatch:
		return true
	default:
		return false
	}
}

package expr

import (
	"regexp"
	"strings"

	"github.com/hupe1980/eventidx/types"
)

// Evaluate reports whether "lhs op rhs" holds. Null operands only satisfy
// equality with null. Operators that do not apply to the operand kinds
// evaluate to false, and their negations to true.
func Evaluate(lhs types.Data, op Op, rhs types.Data) bool {
	switch op {
	case Equal:
		return equal(lhs, rhs)
	case NotEqual:
		return !equal(lhs, rhs)
	case Less, LessEqual, Greater, GreaterEqual:
		c, ok := types.Compare(lhs, rhs)
		if !ok {
			return false
		}
		switch op {
		case Less:
			return c < 0
		case LessEqual:
			return c <= 0
		case Greater:
			return c > 0
		default:
			return c >= 0
		}
	case In:
		return contains(rhs, lhs)
	case NotIn:
		return !contains(rhs, lhs)
	case Ni:
		return contains(lhs, rhs)
	case NotNi:
		return !contains(lhs, rhs)
	case Match:
		return match(lhs, rhs)
	case NotMatch:
		return !match(lhs, rhs)
	default:
		return false
	}
}

func equal(a, b types.Data) bool {
	if a.Kind() != b.Kind() {
		c, ok := types.Compare(a, b)
		return ok && c == 0
	}
	return a.Equal(b)
}

// contains reports whether x is an element of container.
func contains(container, x types.Data) bool {
	switch container.Kind() {
	case types.KindList:
		xs, _ := container.AsList()
		for _, y := range xs {
			if equal(x, y) {
				return true
			}
		}
		return false
	case types.KindSubnet:
		sn, _ := container.AsSubnet()
		if a, ok := x.AsAddress(); ok {
			return sn.Contains(a)
		}
		if inner, ok := x.AsSubnet(); ok {
			return inner.Bits() >= sn.Bits() && sn.Contains(inner.Addr())
		}
		return false
	case types.KindString:
		s, _ := container.AsString()
		sub, ok := x.AsString()
		return ok && strings.Contains(s, sub)
	case types.KindMap:
		entries, _ := container.AsMap()
		for _, e := range entries {
			if equal(x, e.Key) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func match(x, pattern types.Data) bool {
	s, ok := x.AsString()
	if !ok {
		return false
	}
	p, ok := pattern.AsString()
	if !ok {
		return false
	}
	re, err := regexp.Compile(p)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

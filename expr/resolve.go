package expr

import (
	"strings"

	"github.com/hupe1980/eventidx/types"
)

// Resolution binds one predicate leaf to one column of a layout.
type Resolution struct {
	Offset    Offset
	Column    int
	Field     types.Field
	Predicate Curried
}

// Resolve binds the predicates of e to the columns of layout. A predicate
// whose extractor matches several columns yields one resolution per column;
// predicates that match no column or are not curryable yield none.
func Resolve(e Expression, layout types.Type) []Resolution {
	fields := layout.Flatten()
	var out []Resolution
	for _, leaf := range Leaves(e) {
		lhs, curried, ok := Curry(leaf.Predicate)
		if !ok {
			continue
		}
		for column, f := range fields {
			if matches(lhs, f) {
				out = append(out, Resolution{
					Offset:    leaf.Offset,
					Column:    column,
					Field:     f,
					Predicate: curried,
				})
			}
		}
	}
	return out
}

func matches(x Operand, f types.Field) bool {
	switch e := x.(type) {
	case FieldExtractor:
		return f.Name == e.Name || strings.HasSuffix(f.Name, "."+e.Name)
	case TypeExtractor:
		if e.Type.Name != "" {
			return f.Type.Name == e.Type.Name
		}
		return f.Type.Kind == e.Type.Kind
	default:
		return false
	}
}

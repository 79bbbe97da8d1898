package valueindex

import (
	"bytes"
	"encoding/binary"
	"regexp"
	"slices"

	"github.com/hupe1980/eventidx/ec"
	"github.com/hupe1980/eventidx/expr"
	"github.com/hupe1980/eventidx/ids"
	"github.com/hupe1980/eventidx/types"
)

type posting struct {
	value types.Data
	ids   *ids.IDs
}

// distinct keeps one posting list per distinct value. Equality is a map
// probe, every other operator scans the distinct values.
type distinct struct {
	kind     types.Kind
	postings map[string]*posting
}

func newDistinct(kind types.Kind) *distinct {
	return &distinct{kind: kind, postings: make(map[string]*posting)}
}

func (d *distinct) append(x types.Data, pos uint64) error {
	key := x.Key()
	p, ok := d.postings[key]
	if !ok {
		p = &posting{value: x, ids: ids.New()}
		d.postings[key] = p
	}
	p.ids.Add(pos)
	return nil
}

func (d *distinct) lookup(op expr.Op, x types.Data, _ *ids.IDs) (*ids.IDs, error) {
	if !supports(d.kind, op, x) {
		return nil, ec.New(ec.ErrPrecondition, "unsupported operator %s for %s and %s", op, d.kind, x.Kind())
	}
	switch {
	case op == expr.Equal && x.Kind() == d.kind:
		if p, ok := d.postings[x.Key()]; ok {
			return p.ids.Clone(), nil
		}
		return ids.New(), nil
	case op == expr.In && x.Kind() == types.KindList:
		xs, _ := x.AsList()
		result := ids.New()
		for _, y := range xs {
			if y.Kind() != d.kind {
				continue
			}
			if p, ok := d.postings[y.Key()]; ok {
				result.Or(p.ids)
			}
		}
		return result, nil
	case op == expr.Match || op == expr.NotMatch:
		pattern, _ := x.AsString()
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, ec.Wrap(ec.ErrSyntax, "compile pattern", err)
		}
		return d.scan(func(v types.Data) bool {
			s, _ := v.AsString()
			return re.MatchString(s) == (op == expr.Match)
		}), nil
	default:
		return d.scan(func(v types.Data) bool {
			return expr.Evaluate(v, op, x)
		}), nil
	}
}

func (d *distinct) scan(pred func(types.Data) bool) *ids.IDs {
	result := ids.New()
	for _, p := range d.postings {
		if pred(p.value) {
			result.Or(p.ids)
		}
	}
	return result
}

func (d *distinct) sizeBytes() uint64 {
	var n uint64
	for key, p := range d.postings {
		n += uint64(len(key)) + p.ids.SizeInBytes()
	}
	return n
}

func (d *distinct) encode(w *bytes.Buffer) error {
	keys := make([]string, 0, len(d.postings))
	for key := range d.postings {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	w.Write(binary.AppendUvarint(nil, uint64(len(keys))))
	for _, key := range keys {
		writeBytes(w, []byte(key))
		if err := writeIDs(w, d.postings[key].ids); err != nil {
			return err
		}
	}
	return nil
}

func (d *distinct) decode(r *bytes.Reader) error {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return corrupt(err)
	}
	postings := make(map[string]*posting)
	for range n {
		key, err := readBytes(r)
		if err != nil {
			return err
		}
		v, err := types.DataFromKey(string(key))
		if err != nil {
			return corrupt(err)
		}
		b, err := readIDs(r)
		if err != nil {
			return err
		}
		postings[string(key)] = &posting{value: v, ids: b}
	}
	d.postings = postings
	return nil
}

// list indexes whole list values and their elements.
type list struct {
	elems *distinct
	whole *distinct
}

func (l *list) append(x types.Data, pos uint64) error {
	xs, _ := x.AsList()
	for _, e := range xs {
		if e.IsNil() {
			continue
		}
		if err := l.elems.append(e, pos); err != nil {
			return err
		}
	}
	return l.whole.append(x, pos)
}

func (l *list) lookup(op expr.Op, x types.Data, universe *ids.IDs) (*ids.IDs, error) {
	switch op {
	case expr.Ni:
		return l.elems.lookup(expr.Equal, x, universe)
	case expr.NotNi:
		hits, err := l.elems.lookup(expr.Equal, x, universe)
		if err != nil {
			return nil, err
		}
		return ids.Difference(universe, hits), nil
	case expr.Equal, expr.NotEqual:
		if x.Kind() != types.KindList {
			return nil, ec.New(ec.ErrPrecondition, "cannot compare list with %s", x.Kind())
		}
		return l.whole.lookup(op, x, universe)
	case expr.In, expr.NotIn:
		return l.whole.lookup(op, x, universe)
	default:
		return nil, ec.New(ec.ErrPrecondition, "unsupported operator %s for list", op)
	}
}

func (l *list) sizeBytes() uint64 { return l.elems.sizeBytes() + l.whole.sizeBytes() }

func (l *list) encode(w *bytes.Buffer) error {
	if err := l.elems.encode(w); err != nil {
		return err
	}
	return l.whole.encode(w)
}

func (l *list) decode(r *bytes.Reader) error {
	if err := l.elems.decode(r); err != nil {
		return err
	}
	return l.whole.decode(r)
}

func ordered(k types.Kind) bool {
	switch k {
	case types.KindInteger, types.KindCount, types.KindReal, types.KindDuration,
		types.KindTime, types.KindString, types.KindAddress:
		return true
	default:
		return false
	}
}

// supports reports whether "column op x" is answerable for a column of kind k.
func supports(k types.Kind, op expr.Op, x types.Data) bool {
	switch op {
	case expr.Equal, expr.NotEqual:
		return true
	case expr.Less, expr.LessEqual, expr.Greater, expr.GreaterEqual:
		return ordered(k)
	case expr.In, expr.NotIn:
		switch x.Kind() {
		case types.KindList:
			return true
		case types.KindSubnet:
			return k == types.KindAddress || k == types.KindSubnet
		case types.KindString:
			return k == types.KindString
		default:
			return false
		}
	case expr.Ni, expr.NotNi:
		switch k {
		case types.KindString:
			return x.Kind() == types.KindString
		case types.KindSubnet:
			return x.Kind() == types.KindAddress || x.Kind() == types.KindSubnet
		default:
			return false
		}
	case expr.Match, expr.NotMatch:
		return k == types.KindString && x.Kind() == types.KindString
	default:
		return false
	}
}

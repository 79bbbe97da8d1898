package valueindex

import (
	"sync"

	"github.com/hupe1980/eventidx/ec"
	"github.com/hupe1980/eventidx/types"
)

// Factory constructs an empty value index for a type.
type Factory func(t types.Type) (ValueIndex, error)

// Registry maps kinds to value index factories. It is safe for concurrent
// use.
type Registry struct {
	mu        sync.RWMutex
	factories map[types.Kind]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[types.Kind]Factory)}
}

// DefaultRegistry returns a registry with factories for every indexable kind.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, k := range []types.Kind{
		types.KindBool, types.KindInteger, types.KindCount, types.KindReal,
		types.KindDuration, types.KindTime, types.KindString, types.KindAddress,
		types.KindSubnet,
	} {
		r.Register(k, NewScalar)
	}
	r.Register(types.KindList, NewList)
	return r
}

// Register installs f for kind k, replacing any previous factory.
func (r *Registry) Register(k types.Kind, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[k] = f
}

// Make constructs a value index for t.
func (r *Registry) Make(t types.Type) (ValueIndex, error) {
	r.mu.RLock()
	f, ok := r.factories[t.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, ec.New(ec.ErrConstruction, "no value index for type %s", t)
	}
	return f(t)
}

// New constructs a value index for t with the default factories.
func New(t types.Type) (ValueIndex, error) {
	return DefaultRegistry().Make(t)
}

// NewScalar returns a value index for a basic type.
func NewScalar(t types.Type) (ValueIndex, error) {
	if !t.Kind.Basic() {
		return nil, ec.New(ec.ErrConstruction, "type %s is not a basic type", t)
	}
	return newIndex(t, newDistinct(t.Kind)), nil
}

// NewList returns a value index for a list whose elements are of a basic type.
func NewList(t types.Type) (ValueIndex, error) {
	if t.Kind != types.KindList || t.Elem == nil || !t.Elem.Kind.Basic() {
		return nil, ec.New(ec.ErrConstruction, "type %s is not a list of a basic type", t)
	}
	return newIndex(t, &list{elems: newDistinct(t.Elem.Kind), whole: newDistinct(types.KindList)}), nil
}

package synopsis

import (
	"fmt"
	"math"
	"sync"

	"github.com/hupe1980/eventidx/ec"
	"github.com/hupe1980/eventidx/internal/bloom"
	"github.com/hupe1980/eventidx/types"
)

// DefaultFalsePositiveRate is used when options leave the rate unset.
const DefaultFalsePositiveRate = 0.01

// Option keys understood by ParseOptions.
const (
	KeyMaxPartitionSize  = "max-partition-size"
	KeyBufferIPs         = "buffer-ips"
	KeyBufferStrings     = "buffer-strings"
	KeyFalsePositiveRate = "fp-rate"
)

// Options configure synopsis construction.
type Options struct {
	// MaxPartitionSize is an upper bound on the number of values a synopsis
	// observes. Zero means unknown.
	MaxPartitionSize uint64
	// FalsePositiveRate of derived Bloom filters. Zero means
	// DefaultFalsePositiveRate.
	FalsePositiveRate float64
	// BufferIPs selects buffered synopses for address columns.
	BufferIPs bool
	// BufferStrings selects buffered synopses for string columns.
	BufferStrings bool
	// Seeds are passed to every Bloom filter.
	Seeds []uint64
}

func (o Options) rate() float64 {
	if o.FalsePositiveRate == 0 {
		return DefaultFalsePositiveRate
	}
	return o.FalsePositiveRate
}

// ParseOptions reads options from a settings map. Unknown keys are ignored.
func ParseOptions(m map[string]any) (Options, error) {
	var o Options
	if v, ok := m[KeyMaxPartitionSize]; ok {
		n, err := toUint(v)
		if err != nil {
			return o, ec.New(ec.ErrSyntax, "%s: %v", KeyMaxPartitionSize, err)
		}
		o.MaxPartitionSize = n
	}
	if v, ok := m[KeyFalsePositiveRate]; ok {
		f, ok := v.(float64)
		if !ok || f <= 0 || f >= 1 {
			return o, ec.New(ec.ErrSyntax, "%s: expected a number in (0, 1), got %v", KeyFalsePositiveRate, v)
		}
		o.FalsePositiveRate = f
	}
	for key, dst := range map[string]*bool{KeyBufferIPs: &o.BufferIPs, KeyBufferStrings: &o.BufferStrings} {
		if v, ok := m[key]; ok {
			b, ok := v.(bool)
			if !ok {
				return o, ec.New(ec.ErrSyntax, "%s: expected bool, got %T", key, v)
			}
			*dst = b
		}
	}
	return o, nil
}

func toUint(v any) (uint64, error) {
	switch x := v.(type) {
	case int:
		if x >= 0 {
			return uint64(x), nil
		}
	case int64:
		if x >= 0 {
			return uint64(x), nil
		}
	case uint64:
		return x, nil
	case uint:
		return uint64(x), nil
	case float64:
		if x >= 0 && x == math.Trunc(x) && x < (1 << 64) {
			return uint64(x), nil
		}
	}
	return 0, fmt.Errorf("expected a non-negative integer, got %v", v)
}

// Factory creates the synopsis for a column type. It returns nil without
// error if the type is not summarized.
type Factory func(t types.Type, opts Options) (Synopsis, error)

// Registry maps kinds to synopsis factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[types.Kind]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[types.Kind]Factory)}
}

// DefaultRegistry returns a registry with Bloom filter synopses for
// addresses and strings, a min/max synopsis for timestamps and a bool
// synopsis.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(types.KindAddress, func(t types.Type, o Options) (Synopsis, error) {
		return MakeBloom(t, o, o.BufferIPs)
	})
	r.Register(types.KindString, func(t types.Type, o Options) (Synopsis, error) {
		return MakeBloom(t, o, o.BufferStrings)
	})
	r.Register(types.KindTime, func(t types.Type, _ Options) (Synopsis, error) {
		s, err := NewMinMaxSynopsis(t)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	r.Register(types.KindBool, func(t types.Type, _ Options) (Synopsis, error) {
		s, err := NewBoolSynopsis(t)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	return r
}

// Register installs f for kind k, replacing any previous factory.
func (r *Registry) Register(k types.Kind, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[k] = f
}

// Make creates the synopsis for t. It returns nil without error for types
// that carry the skip attribute or have no registered factory.
func (r *Registry) Make(t types.Type, opts Options) (Synopsis, error) {
	if t.HasSkipAttribute() {
		return nil, nil
	}
	r.mu.RLock()
	f, ok := r.factories[t.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return f(t, opts)
}

// MakeBloom applies the Bloom filter sizing policy for t:
//
//  1. If t carries a synopsis attribute, a fixed synopsis with exactly
//     those parameters is built.
//  2. Otherwise n is taken from opts.MaxPartitionSize, t is annotated with
//     the derived parameters, and either a buffered synopsis (over the
//     unannotated type) or a fixed one (over the annotated type) is built.
//
// It fails if neither an attribute nor a partition size bound is known.
func MakeBloom(t types.Type, opts Options, buffered bool) (Synopsis, error) {
	if attr, ok := t.Attribute(types.AttrSynopsis); ok {
		params, err := bloom.ParseAttribute(attr)
		if err != nil {
			return nil, ec.Wrap(ec.ErrSyntax, "parse synopsis attribute", err)
		}
		return bloomOrNil(NewBloomSynopsis(t, params, opts.Seeds...))
	}
	if opts.MaxPartitionSize == 0 {
		return nil, ec.New(ec.ErrConstruction, "cannot size synopsis for %s: no %s attribute and no %s", t, types.AttrSynopsis, KeyMaxPartitionSize)
	}
	params := bloom.Params{N: opts.MaxPartitionSize, P: opts.rate()}
	if buffered {
		s, err := NewBufferedSynopsis(t, params.P, opts.Seeds...)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return bloomOrNil(NewBloomSynopsis(Annotate(t, params), params, opts.Seeds...))
}

// bloomOrNil avoids returning a typed nil inside the interface.
func bloomOrNil(s *BloomSynopsis, err error) (Synopsis, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

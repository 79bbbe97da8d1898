package bloom

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Params are Bloom filter sizing parameters. Zero means unset.
type Params struct {
	M uint64  // number of bits
	N uint64  // expected number of distinct elements
	K uint64  // number of hash functions
	P float64 // false positive probability
}

// Evaluate derives the unset parameters. N and P must be set unless both M
// and K are given.
//
// Optimal number of bits: m = -n*ln(p) / (ln(2)^2)
// Optimal number of hash functions: k = (m/n) * ln(2)
func Evaluate(p Params) (Params, error) {
	if p.P < 0 || p.P >= 1 || math.IsNaN(p.P) {
		return p, fmt.Errorf("%w: p must be in (0, 1), got %v", ErrInvalidParams, p.P)
	}
	if p.M == 0 {
		if p.N == 0 || p.P == 0 {
			return p, fmt.Errorf("%w: need n and p to derive m", ErrInvalidParams)
		}
		p.M = uint64(math.Ceil(-float64(p.N) * math.Log(p.P) / (math.Ln2 * math.Ln2)))
	}
	if p.K == 0 {
		if p.N == 0 {
			return p, fmt.Errorf("%w: need n to derive k", ErrInvalidParams)
		}
		p.K = uint64(math.Round(float64(p.M) / float64(p.N) * math.Ln2))
		if p.K == 0 {
			p.K = 1
		}
	}
	if p.K > maxHashes {
		return p, fmt.Errorf("%w: k = %d exceeds %d", ErrInvalidParams, p.K, maxHashes)
	}
	if p.M == 0 {
		return p, fmt.Errorf("%w: m must be positive", ErrInvalidParams)
	}
	return p, nil
}

const attrPrefix = "bloomfilter("

// FormatAttribute renders n and p as "bloomfilter(n,p)".
func FormatAttribute(n uint64, p float64) string {
	return attrPrefix + strconv.FormatUint(n, 10) + "," + strconv.FormatFloat(p, 'g', -1, 64) + ")"
}

// ParseAttribute parses "bloomfilter(n,p)" into parameters with N and P set.
func ParseAttribute(s string) (Params, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, attrPrefix) || !strings.HasSuffix(s, ")") {
		return Params{}, fmt.Errorf("bloom: malformed attribute %q", s)
	}
	inner := s[len(attrPrefix) : len(s)-1]
	ns, ps, ok := strings.Cut(inner, ",")
	if !ok {
		return Params{}, fmt.Errorf("bloom: malformed attribute %q", s)
	}
	n, err := strconv.ParseUint(strings.TrimSpace(ns), 10, 64)
	if err != nil {
		return Params{}, fmt.Errorf("bloom: malformed n in %q: %w", s, err)
	}
	p, err := strconv.ParseFloat(strings.TrimSpace(ps), 64)
	if err != nil {
		return Params{}, fmt.Errorf("bloom: malformed p in %q: %w", s, err)
	}
	return Params{N: n, P: p}, nil
}

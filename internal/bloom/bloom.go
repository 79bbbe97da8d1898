// Package bloom provides the seeded Bloom filter backing fixed synopses.
//
// A Bloom filter can definitively say "not in set" but may report false
// positives for "in set":
//   - Lookup false: the key was never added
//   - Lookup true: the key may have been added
package bloom

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/cespare/xxhash/v2"
)

var (
	// ErrInvalidParams indicates parameters from which no filter can be built.
	ErrInvalidParams = errors.New("bloom: invalid parameters")

	// ErrTooManySeeds indicates more seeds than the double hasher consumes.
	ErrTooManySeeds = errors.New("bloom: at most two seeds are supported")

	// ErrCorrupted indicates malformed serialized filter data.
	ErrCorrupted = errors.New("bloom: corrupted filter data")
)

// maxHashes caps the number of hash functions.
const maxHashes = 32

// defaultSeeds are used when no seeds are given.
var defaultSeeds = [2]uint64{0, 0x9e3779b97f4a7c15}

// Filter is a Bloom filter over byte keys using double hashing
// h(i) = h1 + i*h2 with two xxhash64 digests seeded independently.
type Filter struct {
	params Params
	seeds  [2]uint64
	bits   *bitset.BitSet
}

// New creates an empty filter for the given parameters. Missing parameters
// are derived with Evaluate. Zero to two seeds may be given.
func New(p Params, seeds ...uint64) (*Filter, error) {
	p, err := Evaluate(p)
	if err != nil {
		return nil, err
	}
	s, err := seedPair(seeds)
	if err != nil {
		return nil, err
	}
	return &Filter{params: p, seeds: s, bits: bitset.New(uint(p.M))}, nil
}

func seedPair(seeds []uint64) ([2]uint64, error) {
	switch len(seeds) {
	case 0:
		return defaultSeeds, nil
	case 1:
		return [2]uint64{seeds[0], seeds[0] ^ defaultSeeds[1]}, nil
	case 2:
		return [2]uint64{seeds[0], seeds[1]}, nil
	default:
		return [2]uint64{}, ErrTooManySeeds
	}
}

// Params returns the evaluated parameters.
func (f *Filter) Params() Params { return f.params }

// Seeds returns the two hash seeds.
func (f *Filter) Seeds() [2]uint64 { return f.seeds }

// Add inserts key. After Add(key), Lookup(key) always returns true.
func (f *Filter) Add(key []byte) {
	h1, h2 := f.hash(key)
	for i := range f.params.K {
		f.bits.Set(uint((h1 + i*h2) % f.params.M))
	}
}

// Lookup reports whether key may have been added.
func (f *Filter) Lookup(key []byte) bool {
	h1, h2 := f.hash(key)
	for i := range f.params.K {
		if !f.bits.Test(uint((h1 + i*h2) % f.params.M)) {
			return false
		}
	}
	return true
}

func (f *Filter) hash(key []byte) (h1, h2 uint64) {
	h1 = seeded(f.seeds[0], key)
	h2 = seeded(f.seeds[1], key) | 1
	return h1, h2
}

// seeded mixes the seed into the digest by hashing it ahead of the key.
func seeded(seed uint64, key []byte) uint64 {
	d := xxhash.New()
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], seed)
	_, _ = d.Write(b[:])
	_, _ = d.Write(key)
	return d.Sum64()
}

// Count returns the number of set bits.
func (f *Filter) Count() uint64 { return uint64(f.bits.Count()) }

// SizeBytes returns the memory size of the bit array in bytes.
func (f *Filter) SizeBytes() uint64 { return uint64(len(f.bits.Bytes())) * 8 }

// EstimatedFalsePositiveRate estimates the false positive rate from the
// fill ratio of the bit array.
func (f *Filter) EstimatedFalsePositiveRate() float64 {
	fill := float64(f.bits.Count()) / float64(f.params.M)
	return math.Pow(fill, float64(f.params.K))
}

// Equal reports whether f and g have identical parameters, seeds and bits.
func (f *Filter) Equal(g *Filter) bool {
	if f == nil || g == nil {
		return f == g
	}
	return f.params == g.params && f.seeds == g.seeds && f.bits.Equal(g.bits)
}

// Clone returns a deep copy.
func (f *Filter) Clone() *Filter {
	return &Filter{params: f.params, seeds: f.seeds, bits: f.bits.Clone()}
}

// AppendBinary appends the serialized filter to b. The layout is
// m, n, k (uvarint), p (float64 bits), two seeds, then the bit array words.
func (f *Filter) AppendBinary(b []byte) []byte {
	b = binary.AppendUvarint(b, f.params.M)
	b = binary.AppendUvarint(b, f.params.N)
	b = binary.AppendUvarint(b, f.params.K)
	b = binary.LittleEndian.AppendUint64(b, math.Float64bits(f.params.P))
	b = binary.LittleEndian.AppendUint64(b, f.seeds[0])
	b = binary.LittleEndian.AppendUint64(b, f.seeds[1])
	words := f.bits.Bytes()
	b = binary.AppendUvarint(b, uint64(len(words)))
	for _, w := range words {
		b = binary.LittleEndian.AppendUint64(b, w)
	}
	return b
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (f *Filter) MarshalBinary() ([]byte, error) {
	return f.AppendBinary(nil), nil
}

// Decode reads a filter produced by AppendBinary and returns it with the
// number of bytes consumed.
func Decode(b []byte) (*Filter, int, error) {
	off := 0
	uvarint := func() (uint64, error) {
		v, n := binary.Uvarint(b[off:])
		if n <= 0 {
			return 0, ErrCorrupted
		}
		off += n
		return v, nil
	}
	fixed := func() (uint64, error) {
		if len(b)-off < 8 {
			return 0, ErrCorrupted
		}
		v := binary.LittleEndian.Uint64(b[off:])
		off += 8
		return v, nil
	}

	var p Params
	var err error
	if p.M, err = uvarint(); err != nil {
		return nil, 0, err
	}
	if p.N, err = uvarint(); err != nil {
		return nil, 0, err
	}
	if p.K, err = uvarint(); err != nil {
		return nil, 0, err
	}
	pbits, err := fixed()
	if err != nil {
		return nil, 0, err
	}
	p.P = math.Float64frombits(pbits)
	var seeds [2]uint64
	for i := range seeds {
		if seeds[i], err = fixed(); err != nil {
			return nil, 0, err
		}
	}
	if p.M == 0 || p.K == 0 || p.K > maxHashes {
		return nil, 0, ErrCorrupted
	}
	nwords, err := uvarint()
	if err != nil {
		return nil, 0, err
	}
	if nwords != (p.M+63)/64 || nwords > uint64(len(b)-off)/8 {
		return nil, 0, ErrCorrupted
	}
	words := make([]uint64, nwords)
	for i := range words {
		words[i], _ = fixed()
	}
	return &Filter{params: p, seeds: seeds, bits: bitset.FromWithLength(uint(p.M), words)}, off, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (f *Filter) UnmarshalBinary(b []byte) error {
	g, n, err := Decode(b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorrupted, len(b)-n)
	}
	*f = *g
	return nil
}

// Package compress frames byte payloads with an optional block compression.
//
// A frame is [uncompressed size uint32][compressed size uint32][data]. A
// compressed size of zero marks data stored raw, which happens whenever
// compression does not pay off.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm selects the block compression.
type Algorithm uint8

const (
	// None stores payloads raw.
	None Algorithm = 0
	// LZ4 favours speed.
	LZ4 Algorithm = 1
	// Zstd favours ratio.
	Zstd Algorithm = 2
)

// ErrCorrupt is returned for frames that do not decode.
var ErrCorrupt = errors.New("compress: corrupt frame")

// HeaderSize is the size of the frame header.
const HeaderSize = 8

func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("algorithm(%d)", uint8(a))
	}
}

// Valid reports whether a is a known algorithm.
func (a Algorithm) Valid() bool { return a <= Zstd }

// ParseAlgorithm maps a name back to its algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	default:
		return None, fmt.Errorf("compress: unknown algorithm %q", s)
	}
}

var (
	encoders sync.Pool
	decoders sync.Pool
)

func getEncoder() (*zstd.Encoder, error) {
	if v := encoders.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getDecoder() (*zstd.Decoder, error) {
	if v := decoders.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

// Encode frames data using a. The output is deterministic for a given
// input and algorithm.
func Encode(data []byte, a Algorithm) ([]byte, error) {
	if len(data) > math.MaxUint32 {
		return nil, fmt.Errorf("compress: payload of %d bytes too large", len(data))
	}
	var packed []byte
	switch a {
	case None:
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		packed = buf[:n]
	case Zstd:
		enc, err := getEncoder()
		if err != nil {
			return nil, err
		}
		packed = enc.EncodeAll(data, nil)
		encoders.Put(enc)
	default:
		return nil, fmt.Errorf("compress: unknown algorithm %d", a)
	}

	out := make([]byte, HeaderSize, HeaderSize+len(data))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	if len(packed) == 0 || len(packed) >= len(data) {
		return append(out, data...), nil
	}
	binary.LittleEndian.PutUint32(out[4:], uint32(len(packed)))
	return append(out, packed...), nil
}

// Decode reverses Encode. a must match the algorithm the frame was
// written with; raw frames decode regardless.
func Decode(frame []byte, a Algorithm) ([]byte, error) {
	if len(frame) < HeaderSize {
		return nil, fmt.Errorf("%w: %d byte frame", ErrCorrupt, len(frame))
	}
	size := binary.LittleEndian.Uint32(frame[0:])
	packed := binary.LittleEndian.Uint32(frame[4:])
	body := frame[HeaderSize:]

	if packed == 0 {
		if uint64(len(body)) != uint64(size) {
			return nil, fmt.Errorf("%w: raw body of %d bytes, header says %d", ErrCorrupt, len(body), size)
		}
		return body, nil
	}
	if uint64(len(body)) != uint64(packed) {
		return nil, fmt.Errorf("%w: body of %d bytes, header says %d", ErrCorrupt, len(body), packed)
	}

	out := make([]byte, size)
	switch a {
	case LZ4:
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if uint32(n) != size {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return out, nil
	case Zstd:
		dec, err := getDecoder()
		if err != nil {
			return nil, err
		}
		defer decoders.Put(dec)
		decoded, err := dec.DecodeAll(body, out[:0])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if uint32(len(decoded)) != size {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: compressed frame for algorithm %s", ErrCorrupt, a)
	}
}

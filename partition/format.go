package partition

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/hupe1980/eventidx/internal/compress"
	"github.com/hupe1980/eventidx/internal/hash"
	"github.com/hupe1980/eventidx/synopsis"
)

// Synopses blob layout, little endian:
//
//	magic       [4]byte "SYN1"
//	compression uint8
//	checksum    uint32 CRC32C of the frame
//	frame       compressed body
//
// The body is a uvarint count followed by (column uvarint, length uvarint,
// encoded synopsis) entries in column order.
const (
	synopsesMagic      = "SYN1"
	synopsesHeaderSize = 4 + 1 + 4
)

func encodeSynopses(synopses map[int]synopsis.Synopsis, a compress.Algorithm) ([]byte, error) {
	columns := make([]int, 0, len(synopses))
	for col := range synopses {
		columns = append(columns, col)
	}
	slices.Sort(columns)

	body := binary.AppendUvarint(nil, uint64(len(columns)))
	for _, col := range columns {
		data, err := synopses[col].MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", col, err)
		}
		body = binary.AppendUvarint(body, uint64(col))
		body = binary.AppendUvarint(body, uint64(len(data)))
		body = append(body, data...)
	}

	frame, err := compress.Encode(body, a)
	if err != nil {
		return nil, err
	}
	out := make([]byte, synopsesHeaderSize, synopsesHeaderSize+len(frame))
	copy(out, synopsesMagic)
	out[4] = byte(a)
	binary.LittleEndian.PutUint32(out[5:], hash.CRC32C(frame))
	return append(out, frame...), nil
}

func decodeSynopses(data []byte) (map[int]synopsis.Synopsis, error) {
	if len(data) < synopsesHeaderSize {
		return nil, fmt.Errorf("synopses blob too short: %d bytes", len(data))
	}
	if string(data[:4]) != synopsesMagic {
		return nil, fmt.Errorf("bad synopses magic %q", data[:4])
	}
	a := compress.Algorithm(data[4])
	if !a.Valid() {
		return nil, fmt.Errorf("unknown compression %d", data[4])
	}
	frame := data[synopsesHeaderSize:]
	if err := hash.Verify(frame, binary.LittleEndian.Uint32(data[5:])); err != nil {
		return nil, err
	}
	body, err := compress.Decode(frame, a)
	if err != nil {
		return nil, err
	}

	count, n := binary.Uvarint(body)
	if n <= 0 {
		return nil, fmt.Errorf("bad synopsis count")
	}
	body = body[n:]
	out := make(map[int]synopsis.Synopsis, min(count, 1024))
	for i := range count {
		col, n := binary.Uvarint(body)
		if n <= 0 {
			return nil, fmt.Errorf("entry %d: bad column", i)
		}
		body = body[n:]
		size, n := binary.Uvarint(body)
		if n <= 0 || size > uint64(len(body)-n) {
			return nil, fmt.Errorf("entry %d: bad length", i)
		}
		body = body[n:]
		s, err := synopsis.Unmarshal(body[:size])
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", col, err)
		}
		out[int(col)] = s
		body = body[size:]
	}
	if len(body) != 0 {
		return nil, fmt.Errorf("%d trailing bytes", len(body))
	}
	return out, nil
}

// meta describes a sealed partition.
type meta struct {
	Version  int    `json:"version"`
	ID       string `json:"id"`
	Layout   []byte `json:"layout"`
	Offset   uint64 `json:"offset"`
	Rows     uint64 `json:"rows"`
	Synopses int    `json:"synopses"`
}

const metaVersion = 1

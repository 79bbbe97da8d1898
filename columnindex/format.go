package columnindex

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/eventidx/internal/compress"
	"github.com/hupe1980/eventidx/internal/hash"
)

// File layout, little endian:
//
//	magic       [4]byte "CIX1"
//	version     uint8
//	compression uint8
//	watermark   uint64
//	size        uint64 uncompressed state length
//	checksum    uint32 CRC32C of the frame
//	frame       compressed value index state
const (
	magic         = "CIX1"
	formatVersion = 1
	headerSize    = 4 + 1 + 1 + 8 + 8 + 4
)

type header struct {
	compression compress.Algorithm
	watermark   uint64
	size        uint64
	checksum    uint32
}

func encodeFile(watermark uint64, state []byte, a compress.Algorithm) ([]byte, error) {
	frame, err := compress.Encode(state, a)
	if err != nil {
		return nil, err
	}
	out := make([]byte, headerSize, headerSize+len(frame))
	copy(out, magic)
	out[4] = formatVersion
	out[5] = byte(a)
	binary.LittleEndian.PutUint64(out[6:], watermark)
	binary.LittleEndian.PutUint64(out[14:], uint64(len(state)))
	binary.LittleEndian.PutUint32(out[22:], hash.CRC32C(frame))
	return append(out, frame...), nil
}

func decodeFile(data []byte) (header, []byte, error) {
	var h header
	if len(data) < headerSize {
		return h, nil, fmt.Errorf("file too short: %d bytes", len(data))
	}
	if string(data[:4]) != magic {
		return h, nil, fmt.Errorf("bad magic %q", data[:4])
	}
	if data[4] != formatVersion {
		return h, nil, fmt.Errorf("unsupported version %d", data[4])
	}
	h.compression = compress.Algorithm(data[5])
	if !h.compression.Valid() {
		return h, nil, fmt.Errorf("unknown compression %d", data[5])
	}
	h.watermark = binary.LittleEndian.Uint64(data[6:])
	h.size = binary.LittleEndian.Uint64(data[14:])
	h.checksum = binary.LittleEndian.Uint32(data[22:])

	frame := data[headerSize:]
	if err := hash.Verify(frame, h.checksum); err != nil {
		return h, nil, err
	}
	state, err := compress.Decode(frame, h.compression)
	if err != nil {
		return h, nil, err
	}
	if uint64(len(state)) != h.size {
		return h, nil, fmt.Errorf("state of %d bytes, header says %d", len(state), h.size)
	}
	return h, state, nil
}

// Package vectorindex implements the "cvvi" on-disk quantized vector index
//: a memory-mappable file holding a fixed header, a fixed-width row
// table, and a contiguous vector block, supporting deterministic parallel
// top-k cosine search.
package vectorindex

import (
	"encoding/binary"
	"fmt"
)

// Quantization identifies how vector components are stored in the file.
type Quantization uint8

const (
	QuantF32 Quantization = iota
	QuantF16
	QuantInt8
)

func (q Quantization) componentSize() int {
	switch q {
	case QuantF32:
		return 4
	case QuantF16:
		return 2
	case QuantInt8:
		return 1
	default:
		return 0
	}
}

// int8ScaleBytes is the width of the trailing per-row f32 scale factor that
// follows an INT8-quantized vector's components.
const int8ScaleBytes = 4

// vectorRowBytes is the total on-disk size of one row's encoded vector,
// including any per-row quantization metadata — for QuantInt8 that is the
// dim single-byte components plus the trailing f32 scale.
func (q Quantization) vectorRowBytes(dim int) int {
	n := dim * q.componentSize()
	if q == QuantInt8 {
		n += int8ScaleBytes
	}
	return n
}

// magic identifies a cvvi file; formatVersion guards layout changes.
const (
	magic         = "CVVI"
	formatVersion = uint32(1)
)

// headerSize is the fixed byte length of the file header.
const headerSize = 4 + 4 + 8 + 8 + 4 + 1 + 8 // magic, version, embedderIDHash, revision, dim, quant, rowCount

// rowSize is the fixed byte length of one row-table record:
// message_id(8) + created_at_ms(8) + agent_id(4) + workspace_id(4) +
// source_id(4) + role(1) + chunk_idx(2) + content_hash(32).
const rowSize = 8 + 8 + 4 + 4 + 4 + 1 + 2 + 32

// Header is the fixed header block at the start of a cvvi file.
type Header struct {
	EmbedderIDHash uint64
	Revision       uint64
	Dimension      uint32
	Quant          Quantization
	RowCount       uint64
}

func (h Header) encode() []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], magic)
	binary.LittleEndian.PutUint32(buf[4:8], formatVersion)
	binary.LittleEndian.PutUint64(buf[8:16], h.EmbedderIDHash)
	binary.LittleEndian.PutUint64(buf[16:24], h.Revision)
	binary.LittleEndian.PutUint32(buf[24:28], h.Dimension)
	buf[28] = byte(h.Quant)
	binary.LittleEndian.PutUint64(buf[29:37], h.RowCount)
	return buf
}

func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < headerSize {
		return Header{}, fmt.Errorf("vectorindex: truncated header (%d bytes)", len(buf))
	}
	if string(buf[0:4]) != magic {
		return Header{}, fmt.Errorf("vectorindex: bad magic %q", buf[0:4])
	}
	version := binary.LittleEndian.Uint32(buf[4:8])
	if version != formatVersion {
		return Header{}, fmt.Errorf("vectorindex: unsupported format version %d (want %d)", version, formatVersion)
	}
	h := Header{
		EmbedderIDHash: binary.LittleEndian.Uint64(buf[8:16]),
		Revision:       binary.LittleEndian.Uint64(buf[16:24]),
		Dimension:      binary.LittleEndian.Uint32(buf[24:28]),
		Quant:          Quantization(buf[28]),
		RowCount:       binary.LittleEndian.Uint64(buf[29:37]),
	}
	return h, nil
}

// Row is one fixed-width row-table record.
type Row struct {
	MessageID   uint64
	CreatedAtMs int64
	AgentID     uint32
	WorkspaceID uint32
	SourceID    uint32
	Role        uint8
	ChunkIdx    uint16
	ContentHash [32]byte
}

func (r Row) encode() []byte {
	buf := make([]byte, rowSize)
	binary.LittleEndian.PutUint64(buf[0:8], r.MessageID)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(r.CreatedAtMs))
	binary.LittleEndian.PutUint32(buf[16:20], r.AgentID)
	binary.LittleEndian.PutUint32(buf[20:24], r.WorkspaceID)
	binary.LittleEndian.PutUint32(buf[24:28], r.SourceID)
	buf[28] = r.Role
	binary.LittleEndian.PutUint16(buf[29:31], r.ChunkIdx)
	copy(buf[31:63], r.ContentHash[:])
	return buf
}

func decodeRow(buf []byte) Row {
	var r Row
	r.MessageID = binary.LittleEndian.Uint64(buf[0:8])
	r.CreatedAtMs = int64(binary.LittleEndian.Uint64(buf[8:16]))
	r.AgentID = binary.LittleEndian.Uint32(buf[16:20])
	r.WorkspaceID = binary.LittleEndian.Uint32(buf[20:24])
	r.SourceID = binary.LittleEndian.Uint32(buf[24:28])
	r.Role = buf[28]
	r.ChunkIdx = binary.LittleEndian.Uint16(buf[29:31])
	copy(r.ContentHash[:], buf[31:63])
	return r
}

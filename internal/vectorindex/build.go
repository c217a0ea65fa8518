package vectorindex

import (
	"fmt"
	"math"
	"os"
	"sort"
)

// VectorEntry is one row to be written into a cvvi file: a message's
// embedding plus the facets needed to apply a SemanticFilter without a join.
type VectorEntry struct {
	MessageID   uint64
	CreatedAtMs int64
	AgentID     uint32
	WorkspaceID uint32
	SourceID    uint32
	Role        uint8
	ChunkIdx    uint16
	ContentHash [32]byte
	Vector      []float32
}

// Build writes entries to path as a cvvi file, sorted by MessageID ascending
// for a deterministic layout. Quant controls the on-disk component
// encoding; all entries must share Dimension and quant-compatible values.
func Build(path string, entries []VectorEntry, dimension uint32, quant Quantization, embedderIDHash, revision uint64) error {
	sorted := make([]VectorEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MessageID < sorted[j].MessageID })

	for _, e := range sorted {
		if uint32(len(e.Vector)) != dimension {
			return fmt.Errorf("vectorindex: entry for message %d has dimension %d, want %d", e.MessageID, len(e.Vector), dimension)
		}
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("vectorindex: create %s: %w", tmp, err)
	}
	defer f.Close()

	header := Header{
		EmbedderIDHash: embedderIDHash,
		Revision:       revision,
		Dimension:      dimension,
		Quant:          quant,
		RowCount:       uint64(len(sorted)),
	}
	if _, err := f.Write(header.encode()); err != nil {
		return fmt.Errorf("vectorindex: write header: %w", err)
	}

	for _, e := range sorted {
		row := Row{
			MessageID:   e.MessageID,
			CreatedAtMs: e.CreatedAtMs,
			AgentID:     e.AgentID,
			WorkspaceID: e.WorkspaceID,
			SourceID:    e.SourceID,
			Role:        e.Role,
			ChunkIdx:    e.ChunkIdx,
			ContentHash: e.ContentHash,
		}
		if _, err := f.Write(row.encode()); err != nil {
			return fmt.Errorf("vectorindex: write row for message %d: %w", e.MessageID, err)
		}
	}

	for _, e := range sorted {
		encoded, err := encodeVector(e.Vector, quant)
		if err != nil {
			return fmt.Errorf("vectorindex: encode vector for message %d: %w", e.MessageID, err)
		}
		if _, err := f.Write(encoded); err != nil {
			return fmt.Errorf("vectorindex: write vector for message %d: %w", e.MessageID, err)
		}
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("vectorindex: sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("vectorindex: close %s: %w", tmp, err)
	}
	// Rebuild triggers (embedder id / revision change) discard the old file
	// atomically via rename.
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("vectorindex: rename %s to %s: %w", tmp, path, err)
	}
	return nil
}

func encodeVector(v []float32, q Quantization) ([]byte, error) {
	switch q {
	case QuantF32:
		buf := make([]byte, len(v)*4)
		for i, x := range v {
			putFloat32(buf[i*4:], x)
		}
		return buf, nil
	case QuantF16:
		buf := make([]byte, len(v)*2)
		for i, x := range v {
			putFloat16(buf[i*2:], x)
		}
		return buf, nil
	case QuantInt8:
		var maxAbs float32
		for _, x := range v {
			a := x
			if a < 0 {
				a = -a
			}
			if a > maxAbs {
				maxAbs = a
			}
		}
		scale := maxAbs / 127
		if scale == 0 {
			scale = 1
		}
		buf := make([]byte, len(v)+int8ScaleBytes)
		for i, x := range v {
			s := int32(math.Round(float64(x / scale)))
			if s > 127 {
				s = 127
			} else if s < -128 {
				s = -128
			}
			buf[i] = byte(int8(s))
		}
		putFloat32(buf[len(v):], scale)
		return buf, nil
	default:
		return nil, fmt.Errorf("vectorindex: unknown quantization %d", q)
	}
}

func putFloat32(buf []byte, f float32) {
	bits := math.Float32bits(f)
	buf[0] = byte(bits)
	buf[1] = byte(bits >> 8)
	buf[2] = byte(bits >> 16)
	buf[3] = byte(bits >> 24)
}

// putFloat16 writes f as an IEEE 754 binary16 value using round-to-nearest.
func putFloat16(buf []byte, f float32) {
	bits := float32ToFloat16(f)
	buf[0] = byte(bits)
	buf[1] = byte(bits >> 8)
}

func float32ToFloat16(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16((bits >> 16) & 0x8000)
	exp := int32((bits>>23)&0xff) - 127 + 15
	mantissa := bits & 0x7fffff

	switch {
	case exp <= 0:
		return sign
	case exp >= 0x1f:
		return sign | 0x7c00
	default:
		return sign | uint16(exp)<<10 | uint16(mantissa>>13)
	}
}

func float16ToFloat32(bits uint16) float32 {
	sign := uint32(bits&0x8000) << 16
	exp := uint32(bits>>10) & 0x1f
	mantissa := uint32(bits & 0x3ff)

	switch {
	case exp == 0:
		if mantissa == 0 {
			return math.Float32frombits(sign)
		}
		// Subnormal: normalize.
		e := int32(-1)
		m := mantissa
		for m&0x400 == 0 {
			m <<= 1
			e--
		}
		m &= 0x3ff
		return math.Float32frombits(sign | uint32(e+127-15)<<23 | m<<13)
	case exp == 0x1f:
		return math.Float32frombits(sign | 0xff<<23 | mantissa<<13)
	default:
		return math.Float32frombits(sign | (exp-15+127)<<23 | mantissa<<13)
	}
}

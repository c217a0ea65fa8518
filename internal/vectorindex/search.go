package vectorindex

import (
	"container/heap"
	"fmt"
	"math"
	"sort"

	"golang.org/x/exp/mmap"
	"golang.org/x/sync/errgroup"
)

// parallelThreshold is the row count above which top-k search partitions
// across goroutines.
const parallelThreshold = 10_000

// Index is a loaded, memory-mapped cvvi file ready for top-k search.
type Index struct {
	header       Header
	rowTable     []Row
	ra           *mmap.ReaderAt
	vectorBase   int64
	compSize     int
	vectorStride int64 // bytes per row in the vector block, incl. any per-row metadata

	// Pre-converted in-memory views, populated only when
	// LoadOptions.PreconvertF16 is set. At most one is non-nil.
	halfView  [][]uint16
	floatView [][]float32
}

// LoadOptions tunes how an index file is brought into memory.
type LoadOptions struct {
	// PreconvertF16 decodes every vector at load time into an in-memory
	// view, so search never touches the mapping per row. Half-precision
	// storage is held as its raw binary16 components; other quantizations
	// are held in their exactly-decoded form, so the top-k output is
	// identical with or without the flag.
	PreconvertF16 bool
}

// Load memory-maps path, verifies the header and row/vector count
// consistency, and returns a ready-to-query Index. Any structural drift
// fails closed rather than guessing.
func Load(path string) (*Index, error) {
	return LoadWithOptions(path, LoadOptions{})
}

// LoadWithOptions is Load with explicit LoadOptions.
func LoadWithOptions(path string, opts LoadOptions) (*Index, error) {
	ra, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: open %s: %w", path, err)
	}

	hbuf := make([]byte, headerSize)
	if _, err := ra.ReadAt(hbuf, 0); err != nil {
		_ = ra.Close()
		return nil, fmt.Errorf("vectorindex: read header: %w", err)
	}
	header, err := decodeHeader(hbuf)
	if err != nil {
		_ = ra.Close()
		return nil, err
	}

	compSize := header.Quant.componentSize()
	if compSize == 0 {
		_ = ra.Close()
		return nil, fmt.Errorf("vectorindex: unknown quantization kind %d", header.Quant)
	}

	rowTableSize := int64(header.RowCount) * rowSize
	vectorBase := int64(headerSize) + rowTableSize
	vectorStride := int64(header.Quant.vectorRowBytes(int(header.Dimension)))
	vectorBlockSize := int64(header.RowCount) * vectorStride
	wantSize := vectorBase + vectorBlockSize
	if int64(ra.Len()) != wantSize {
		_ = ra.Close()
		return nil, fmt.Errorf("vectorindex: file size %d does not match header-implied size %d (row/vector count drift)", ra.Len(), wantSize)
	}

	rows := make([]Row, header.RowCount)
	if header.RowCount > 0 {
		rbuf := make([]byte, rowTableSize)
		if _, err := ra.ReadAt(rbuf, headerSize); err != nil {
			_ = ra.Close()
			return nil, fmt.Errorf("vectorindex: read row table: %w", err)
		}
		for i := range rows {
			rows[i] = decodeRow(rbuf[i*rowSize : (i+1)*rowSize])
		}
	}

	idx := &Index{header: header, rowTable: rows, ra: ra, vectorBase: vectorBase, compSize: compSize, vectorStride: vectorStride}
	if opts.PreconvertF16 {
		if err := idx.preconvert(); err != nil {
			_ = ra.Close()
			return nil, err
		}
	}
	return idx, nil
}

// preconvert materializes every vector into memory so searchRange never
// issues a per-row read against the mapping.
func (idx *Index) preconvert() error {
	n := len(idx.rowTable)
	dim := int(idx.header.Dimension)
	if idx.header.Quant == QuantF16 {
		idx.halfView = make([][]uint16, n)
		for i := 0; i < n; i++ {
			buf, err := idx.readRawVector(i)
			if err != nil {
				return err
			}
			half := make([]uint16, dim)
			for j := 0; j < dim; j++ {
				half[j] = uint16(buf[j*2]) | uint16(buf[j*2+1])<<8
			}
			idx.halfView[i] = half
		}
		return nil
	}
	view := make([][]float32, n)
	for i := 0; i < n; i++ {
		buf, err := idx.readRawVector(i)
		if err != nil {
			return err
		}
		view[i] = decodeVector(buf, dim, idx.header.Quant)
	}
	idx.floatView = view
	return nil
}

// Close releases the memory mapping.
func (idx *Index) Close() error { return idx.ra.Close() }

// Dimension is the vector width every entry in the index shares.
func (idx *Index) Dimension() int { return int(idx.header.Dimension) }

// EmbedderIDHash and Revision identify what produced this index, for
// rebuild-trigger comparisons.
func (idx *Index) EmbedderIDHash() uint64 { return idx.header.EmbedderIDHash }
func (idx *Index) Revision() uint64       { return idx.header.Revision }

// SemanticFilter gates which rows are considered during search.
type SemanticFilter struct {
	AgentIDs     map[uint32]bool
	WorkspaceIDs map[uint32]bool
	SourceIDs    map[uint32]bool
	Roles        map[uint8]bool
	SinceMs      *int64
	UntilMs      *int64
}

func (f *SemanticFilter) allows(r Row) bool {
	if f == nil {
		return true
	}
	if f.AgentIDs != nil && !f.AgentIDs[r.AgentID] {
		return false
	}
	if f.WorkspaceIDs != nil && !f.WorkspaceIDs[r.WorkspaceID] {
		return false
	}
	if f.SourceIDs != nil && !f.SourceIDs[r.SourceID] {
		return false
	}
	if f.Roles != nil && !f.Roles[r.Role] {
		return false
	}
	if f.SinceMs != nil && r.CreatedAtMs < *f.SinceMs {
		return false
	}
	if f.UntilMs != nil && r.CreatedAtMs > *f.UntilMs {
		return false
	}
	return true
}

// ScoredRow is one top-k search result.
type ScoredRow struct {
	Row   Row
	Score float32
}

// Search returns the top-k rows by cosine similarity against query, subject
// to filter. Rows are partitioned across goroutines once RowCount crosses
// parallelThreshold; the merged result is identical to the sequential path,
// tie-broken on ascending MessageID.
func (idx *Index) Search(query []float32, k int, filter *SemanticFilter) ([]ScoredRow, error) {
	if len(query) != int(idx.header.Dimension) {
		return nil, fmt.Errorf("vectorindex: query dimension %d does not match index dimension %d", len(query), idx.header.Dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	n := len(idx.rowTable)
	if n < parallelThreshold {
		return idx.searchRange(query, k, filter, 0, n)
	}

	numPartitions := 4
	partSize := (n + numPartitions - 1) / numPartitions
	results := make([][]ScoredRow, numPartitions)

	g := new(errgroup.Group)
	for p := 0; p < numPartitions; p++ {
		p := p
		lo := p * partSize
		hi := lo + partSize
		if hi > n {
			hi = n
		}
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			part, err := idx.searchRange(query, k, filter, lo, hi)
			if err != nil {
				return err
			}
			results[p] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []ScoredRow
	for _, part := range results {
		merged = append(merged, part...)
	}
	sortScoredRows(merged)
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}

func (idx *Index) searchRange(query []float32, k int, filter *SemanticFilter, lo, hi int) ([]ScoredRow, error) {
	h := &scoreHeap{}
	heap.Init(h)
	for i := lo; i < hi; i++ {
		row := idx.rowTable[i]
		if !filter.allows(row) {
			continue
		}
		vec, err := idx.readVector(i)
		if err != nil {
			return nil, err
		}
		score := cosineSimilarity(query, vec)
		if h.Len() < k {
			heap.Push(h, ScoredRow{Row: row, Score: score})
			continue
		}
		if (*h)[0].Score < score || ((*h)[0].Score == score && row.MessageID < (*h)[0].Row.MessageID) {
			(*h)[0] = ScoredRow{Row: row, Score: score}
			heap.Fix(h, 0)
		}
	}
	out := make([]ScoredRow, h.Len())
	copy(out, *h)
	sortScoredRows(out)
	return out, nil
}

func sortScoredRows(rows []ScoredRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].Row.MessageID < rows[j].Row.MessageID
	})
}

func (idx *Index) readVector(rowIdx int) ([]float32, error) {
	dim := int(idx.header.Dimension)
	if idx.halfView != nil {
		out := make([]float32, dim)
		for i, bits := range idx.halfView[rowIdx] {
			out[i] = float16ToFloat32(bits)
		}
		return out, nil
	}
	if idx.floatView != nil {
		return idx.floatView[rowIdx], nil
	}
	buf, err := idx.readRawVector(rowIdx)
	if err != nil {
		return nil, err
	}
	return decodeVector(buf, dim, idx.header.Quant), nil
}

func (idx *Index) readRawVector(rowIdx int) ([]byte, error) {
	offset := idx.vectorBase + int64(rowIdx)*idx.vectorStride
	buf := make([]byte, idx.vectorStride)
	if _, err := idx.ra.ReadAt(buf, offset); err != nil {
		return nil, fmt.Errorf("vectorindex: read vector at row %d: %w", rowIdx, err)
	}
	return buf, nil
}

func decodeVector(buf []byte, dim int, q Quantization) []float32 {
	out := make([]float32, dim)
	switch q {
	case QuantF32:
		for i := range out {
			bits := uint32(buf[i*4]) | uint32(buf[i*4+1])<<8 | uint32(buf[i*4+2])<<16 | uint32(buf[i*4+3])<<24
			out[i] = math.Float32frombits(bits)
		}
	case QuantF16:
		for i := range out {
			bits := uint16(buf[i*2]) | uint16(buf[i*2+1])<<8
			out[i] = float16ToFloat32(bits)
		}
	case QuantInt8:
		// Trailing 4 bytes of the row hold the shared per-row f32 scale;
		// each component decodes as s8 * scale.
		scaleBits := uint32(buf[dim]) | uint32(buf[dim+1])<<8 | uint32(buf[dim+2])<<16 | uint32(buf[dim+3])<<24
		scale := math.Float32frombits(scaleBits)
		for i := 0; i < dim; i++ {
			out[i] = float32(int8(buf[i])) * scale
		}
	}
	return out
}

// cosineSimilarity is the scalar reference implementation. A SIMD-accelerated
// path, if added, MUST be numerically equivalent within floating-point
// tolerance for the same inputs — this function is the ground truth.
func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// scoreHeap is a min-heap of ScoredRow keyed by Score, bounding top-k memory.
// Among tied scores the larger MessageID is the worse element, so eviction
// order agrees with sortScoredRows' smaller-id-wins tie-break.
type scoreHeap []ScoredRow

func (h scoreHeap) Len() int { return len(h) }
func (h scoreHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].Row.MessageID > h[j].Row.MessageID
}
func (h scoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *scoreHeap) Push(x interface{}) { *h = append(*h, x.(ScoredRow)) }
func (h *scoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

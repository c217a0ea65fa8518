package hybrid

import "sort"

// defaultRRFK is the Reciprocal Rank Fusion constant.
const defaultRRFK = 60

// rankedItem is one entry in a ranked list going into fusion: just enough
// to compute and tie-break a fused score without depending on the full
// Result shape.
type rankedItem struct {
	messageID    int64
	lexicalRank  int // 1-based; 0 means absent from the lexical list
	semanticRank int // 1-based; 0 means absent from the semantic list
	lexicalScore float64
}

// fuse combines a lexical-ranked and a semantic-ranked message id list with
// Reciprocal Rank Fusion: score(d) = Σ 1/(k+rank_i(d)) over the lists d
// appears in. Ties are broken by lexical score, then message_id ascending,
// both for determinism. lexicalScore is raw SQLite BM25, where
// smaller (more negative) is a better match, so the tie-break prefers
// the smaller value, not the larger one.
func fuse(lexicalIDs []int64, lexicalScores map[int64]float64, semanticIDs []int64, k int) []rankedItem {
	if k <= 0 {
		k = defaultRRFK
	}
	items := make(map[int64]*rankedItem)
	get := func(id int64) *rankedItem {
		it, ok := items[id]
		if !ok {
			it = &rankedItem{messageID: id}
			items[id] = it
		}
		return it
	}
	for i, id := range lexicalIDs {
		it := get(id)
		it.lexicalRank = i + 1
		it.lexicalScore = lexicalScores[id]
	}
	for i, id := range semanticIDs {
		get(id).semanticRank = i + 1
	}

	out := make([]rankedItem, 0, len(items))
	for _, it := range items {
		out = append(out, *it)
	}

	score := func(it rankedItem) float64 {
		var s float64
		if it.lexicalRank > 0 {
			s += 1.0 / float64(k+it.lexicalRank)
		}
		if it.semanticRank > 0 {
			s += 1.0 / float64(k+it.semanticRank)
		}
		return s
	}

	sort.SliceStable(out, func(i, j int) bool {
		si, sj := score(out[i]), score(out[j])
		if si != sj {
			return si > sj
		}
		if out[i].lexicalScore != out[j].lexicalScore {
			return out[i].lexicalScore < out[j].lexicalScore
		}
		return out[i].messageID < out[j].messageID
	})
	return out
}

// fusedScore returns the RRF score of one item from the slice fuse
// returned — callers that already sorted need the raw value for result
// metadata without recomputing tie-break state.
func fusedScore(it rankedItem, k int) float64 {
	if k <= 0 {
		k = defaultRRFK
	}
	var s float64
	if it.lexicalRank > 0 {
		s += 1.0 / float64(k+it.lexicalRank)
	}
	if it.semanticRank > 0 {
		s += 1.0 / float64(k+it.semanticRank)
	}
	return s
}

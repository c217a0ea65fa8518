package hybrid

import (
	"hash/fnv"
	"strings"
)

// Role codes stored in the vector index's fixed-width Row.Role. These
// must stay stable across builds: changing a code without a format version
// bump would silently misclassify existing index rows.
const (
	roleCodeUser uint8 = iota
	roleCodeAgent
	roleCodeTool
	roleCodeSystem
	roleCodeOther
)

// roleCode maps a persisted role string (as stored in messages.role) to its
// fixed-width vector index code. "other:<label>" values all share the
// "other" code — the vector index filters on role category, not the
// specific label.
func roleCode(role string) uint8 {
	switch {
	case role == "user":
		return roleCodeUser
	case role == "agent":
		return roleCodeAgent
	case role == "tool":
		return roleCodeTool
	case role == "system":
		return roleCodeSystem
	case strings.HasPrefix(role, "other"):
		return roleCodeOther
	default:
		return roleCodeOther
	}
}

// sourceIDHash maps a source id (sources.id, e.g. "local") to the uint32
// used in the vector index's Row.SourceID. sources.id is a string primary
// key in the relational schema; the vector index's fixed-width row has no
// room for a variable-length string, so both build and query sides hash it
// identically with FNV-1a.
func sourceIDHash(sourceID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sourceID))
	return h.Sum32()
}

// embedderIDHash collapses an Embedder.ID() string into the uint64 stored
// in the cvvi header, used to detect when the index was built with a
// different embedder than the one configured now.
func embedderIDHash(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

package hybrid

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rawwerks/cass-go/internal/embedding"
	"github.com/rawwerks/cass-go/internal/textprep"
	"github.com/rawwerks/cass-go/internal/vectorindex"
)

// embedBatchSize bounds how many messages are embedded per Embed call, so a
// large corpus doesn't build one unbounded request to a remote embedder.
const embedBatchSize = 64

// BuildVectorIndex reads every message in db, embeds its content with
// embedder, and writes a fresh cvvi file at path. It is the producer side
// of the vector index the semantic search path in this package queries.
func BuildVectorIndex(ctx context.Context, db *sql.DB, path string, embedder embedding.Embedder, revision uint64) error {
	rows, err := db.QueryContext(ctx, `
		SELECT m.id, m.content, coalesce(m.created_at, 0) * 1000, m.role,
		       c.agent_id, coalesce(c.workspace_id, 0), c.source_id
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		ORDER BY m.id ASC`)
	if err != nil {
		return fmt.Errorf("hybrid: query messages for vector index: %w", err)
	}
	defer rows.Close()

	type pending struct {
		messageID   int64
		content     string
		createdAtMs int64
		role        uint8
		agentID     int64
		workspaceID int64
		sourceID    uint32
	}
	var items []pending
	for rows.Next() {
		var p pending
		var role, sourceID string
		if err := rows.Scan(&p.messageID, &p.content, &p.createdAtMs, &role, &p.agentID, &p.workspaceID, &sourceID); err != nil {
			return fmt.Errorf("hybrid: scan message row: %w", err)
		}
		p.role = roleCode(role)
		p.sourceID = sourceIDHash(sourceID)
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("hybrid: iterate messages: %w", err)
	}

	entries := make([]vectorindex.VectorEntry, 0, len(items))
	for start := 0; start < len(items); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]
		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.content
		}
		vectors, err := embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("hybrid: embed batch %d-%d: %w", start, end, err)
		}
		for i, p := range batch {
			hash := textprep.ContentHash(p.content)
			entries = append(entries, vectorindex.VectorEntry{
				MessageID:   uint64(p.messageID),
				CreatedAtMs: p.createdAtMs,
				AgentID:     uint32(p.agentID),
				WorkspaceID: uint32(p.workspaceID),
				SourceID:    p.sourceID,
				Role:        p.role,
				ChunkIdx:    0,
				ContentHash: hash,
				Vector:      vectors[i],
			})
		}
	}

	return vectorindex.Build(path, entries, uint32(embedder.Dimension()), vectorindex.QuantF32, embedderIDHash(embedder.ID()), revision)
}

package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/loreworks/chanlore/internal/chunker"
)

// SearchResult is one stored chunk ranked by similarity to a query vector.
// Similarity is 1 - cosine distance: roughly [-1, 1], higher is closer.
type SearchResult struct {
	ID          uuid.UUID `json:"id"`
	Text        string    `json:"text"`
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	ThreadTS    string    `json:"thread_ts,omitempty"`
	StartTS     string    `json:"start_ts"`
	EndTS       string    `json:"end_ts"`
	Similarity  float64   `json:"similarity"`
}

// UpsertChunk inserts or replaces a chunk by its chunk_key. A re-upsert with
// the same key replaces text, embedding, message_count and end_ts in place
// and keeps the row's id, so re-indexing the same range is idempotent.
func (s *Store) UpsertChunk(ctx context.Context, c chunker.Chunk, embedding []float64) (uuid.UUID, error) {
	var threadTS *string
	if c.IsThread {
		threadTS = &c.ThreadTS
	}

	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO chunks (
			id, team_id, channel_id, channel_name,
			is_thread, thread_ts,
			start_ts, end_ts,
			text, chunk_key,
			embedding, message_count,
			updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::vector, $12, now())
		ON CONFLICT (chunk_key) DO UPDATE SET
			text = EXCLUDED.text,
			embedding = EXCLUDED.embedding,
			message_count = EXCLUDED.message_count,
			end_ts = EXCLUDED.end_ts,
			updated_at = now()
		RETURNING id`,
		uuid.New(), c.TeamID, c.ChannelID, c.ChannelName,
		c.IsThread, threadTS,
		c.StartTS, c.EndTS,
		c.Text, c.Key,
		pgVector(embedding), c.MessageCount,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert chunk %s: %w", c.Key, err)
	}
	return id, nil
}

// SearchChunks returns up to topK chunks ordered by descending cosine
// similarity to queryEmbedding. An empty channelID searches all channels.
func (s *Store) SearchChunks(ctx context.Context, channelID string, queryEmbedding []float64, topK int) ([]SearchResult, error) {
	query := `
		SELECT
			id, text, channel_id, COALESCE(channel_name, ''), COALESCE(thread_ts, ''),
			start_ts, end_ts,
			1 - (embedding <=> $1::vector) AS similarity
		FROM chunks`
	args := []any{pgVector(queryEmbedding)}
	if channelID != "" {
		query += ` WHERE channel_id = $2
		ORDER BY embedding <=> $1::vector
		LIMIT $3`
		args = append(args, channelID, topK)
	} else {
		query += `
		ORDER BY embedding <=> $1::vector
		LIMIT $2`
		args = append(args, topK)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Text, &r.ChannelID, &r.ChannelName, &r.ThreadTS, &r.StartTS, &r.EndTS, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return results, nil
}

package store

import (
	"context"
	"fmt"
	"strings"
)

// EnsureSchema creates the tables if they do not exist. Run once at process
// startup, before the pipeline is constructed. The pgvector extension must
// already be installed on the database.
func (s *Store) EnsureSchema(ctx context.Context, embedDim int) error {
	stmts := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS chunks (
				id uuid PRIMARY KEY,
				team_id text NOT NULL,
				channel_id text NOT NULL,
				channel_name text,
				is_thread boolean NOT NULL,
				thread_ts text,
				start_ts text NOT NULL,
				end_ts text NOT NULL,
				text text NOT NULL,
				chunk_key text NOT NULL UNIQUE,
				embedding vector(%d),
				message_count int NOT NULL DEFAULT 0,
				updated_at timestamptz NOT NULL DEFAULT now()
			)`, embedDim),
		`CREATE INDEX IF NOT EXISTS chunks_channel_idx ON chunks (channel_id)`,
		`
			CREATE TABLE IF NOT EXISTS channel_cursors (
				team_id text NOT NULL,
				channel_id text NOT NULL,
				latest_ts text NOT NULL,
				PRIMARY KEY (team_id, channel_id)
			)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			if strings.Contains(err.Error(), "type \"vector\" does not exist") {
				return fmt.Errorf("pgvector extension missing (run CREATE EXTENSION vector once): %w", err)
			}
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

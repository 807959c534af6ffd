package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GetCursor returns the latest indexed timestamp for a channel, or false if
// the channel has never been indexed.
func (s *Store) GetCursor(ctx context.Context, teamID, channelID string) (string, bool, error) {
	var latest string
	err := s.pool.QueryRow(ctx,
		`SELECT latest_ts FROM channel_cursors WHERE team_id = $1 AND channel_id = $2`,
		teamID, channelID,
	).Scan(&latest)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get cursor for %s: %w", channelID, err)
	}
	return latest, true, nil
}

// SetCursor unconditionally overwrites the channel's watermark. The caller is
// responsible for only advancing it forward.
func (s *Store) SetCursor(ctx context.Context, teamID, channelID, latestTS string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO channel_cursors (team_id, channel_id, latest_ts)
		VALUES ($1, $2, $3)
		ON CONFLICT (team_id, channel_id) DO UPDATE SET latest_ts = EXCLUDED.latest_ts`,
		teamID, channelID, latestTS,
	)
	if err != nil {
		return fmt.Errorf("set cursor for %s: %w", channelID, err)
	}
	return nil
}

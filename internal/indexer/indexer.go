// Package indexer drives the end-to-end pipeline: collect a channel's
// history, partition it into thread and window chunks, embed each chunk and
// persist it, then advance the channel cursor.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/loreworks/chanlore/internal/bus"
	"github.com/loreworks/chanlore/internal/chunker"
	"github.com/loreworks/chanlore/internal/embed"
	"github.com/loreworks/chanlore/internal/slack"
)

// Collector walks remote conversation history.
type Collector interface {
	TeamID(ctx context.Context) (string, error)
	ResolveChannel(ctx context.Context, ref string) (slack.Channel, error)
	FetchHistory(ctx context.Context, channelID, oldest string) ([]slack.Message, error)
	FetchThreadReplies(ctx context.Context, channelID, threadTS string) ([]slack.Message, error)
}

// ChunkStore persists embedded chunks idempotently by chunk key.
type ChunkStore interface {
	UpsertChunk(ctx context.Context, c chunker.Chunk, embedding []float64) (uuid.UUID, error)
}

// CursorStore tracks the per-channel indexing watermark.
type CursorStore interface {
	GetCursor(ctx context.Context, teamID, channelID string) (string, bool, error)
	SetCursor(ctx context.Context, teamID, channelID, latestTS string) error
}

// Publisher announces completed runs. May be nil.
type Publisher interface {
	Publish(subject string, data any) error
}

// Options bound the window policy.
type Options struct {
	MaxMessagesPerWindow int
	MaxWindow            time.Duration
}

// Result reports what a run accomplished.
type Result struct {
	ChannelID       string `json:"channel_id"`
	ChannelName     string `json:"channel_name"`
	ThreadsIndexed  int    `json:"threads_indexed"`
	WindowsIndexed  int    `json:"windows_indexed"`
	ChunksAttempted int    `json:"chunks_attempted"`
	ChunksFailed    int    `json:"chunks_failed"`
	Cursor          string `json:"cursor,omitempty"`
}

type Indexer struct {
	collector Collector
	resolver  slack.Resolver
	embedder  embed.Embedder
	chunks    ChunkStore
	cursors   CursorStore
	publisher Publisher
	opts      Options
	logger    *slog.Logger
}

func New(c Collector, r slack.Resolver, e embed.Embedder, chunks ChunkStore, cursors CursorStore, p Publisher, opts Options, logger *slog.Logger) *Indexer {
	return &Indexer{
		collector: c,
		resolver:  r,
		embedder:  e,
		chunks:    chunks,
		cursors:   cursors,
		publisher: p,
		opts:      opts,
		logger:    logger,
	}
}

// IndexChannel indexes one channel, referenced by id or name. When oldest is
// empty the stored cursor (if any) bounds the fetch, so repeated runs only
// cover new history. Individual chunk failures are logged and skipped; a
// fetch failure aborts the run. The cursor advances to the last fetched
// message regardless of per-chunk outcomes, so a failed chunk never pins the
// watermark (re-run with an explicit oldest to re-cover it).
func (ix *Indexer) IndexChannel(ctx context.Context, channelRef, oldest string) (*Result, error) {
	teamID, err := ix.collector.TeamID(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve team: %w", err)
	}

	ch, err := ix.collector.ResolveChannel(ctx, channelRef)
	if err != nil {
		return nil, fmt.Errorf("resolve channel: %w", err)
	}

	if oldest == "" {
		cursor, ok, err := ix.cursors.GetCursor(ctx, teamID, ch.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			oldest = cursor
			ix.logger.Info("resuming from cursor", "channel", ch.Name, "oldest", oldest)
		}
	}

	ix.logger.Info("indexing channel", "channel", ch.Name, "channel_id", ch.ID, "oldest", oldest)

	msgs, err := ix.collector.FetchHistory(ctx, ch.ID, oldest)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	result := &Result{ChannelID: ch.ID, ChannelName: ch.Name}
	if len(msgs) == 0 {
		ix.logger.Info("no messages to index", "channel", ch.Name)
		return result, nil
	}

	threadRoots, loose := partition(msgs)
	ix.logger.Info("fetched history",
		"channel", ch.Name,
		"messages", len(msgs),
		"thread_roots", len(threadRoots),
		"loose", len(loose),
	)

	params := chunker.Params{TeamID: teamID, ChannelID: ch.ID, ChannelName: ch.Name}

	for _, root := range threadRoots {
		replies, err := ix.collector.FetchThreadReplies(ctx, ch.ID, root)
		if err != nil {
			ix.logger.Error("thread fetch failed", "channel", ch.Name, "thread_ts", root, "error", err)
			result.ChunksFailed++
			continue
		}
		c, ok := chunker.BuildThreadChunk(ctx, params, root, replies, ix.resolver)
		if !ok {
			continue
		}
		result.ChunksAttempted++
		if ix.storeChunk(ctx, c) {
			result.ThreadsIndexed++
		} else {
			result.ChunksFailed++
		}
	}

	windows := chunker.BuildWindows(ctx, params, loose, ix.resolver, ix.opts.MaxMessagesPerWindow, ix.opts.MaxWindow)
	for _, c := range windows {
		result.ChunksAttempted++
		if ix.storeChunk(ctx, c) {
			result.WindowsIndexed++
		} else {
			result.ChunksFailed++
		}
	}

	latest := msgs[len(msgs)-1].TS
	if err := ix.cursors.SetCursor(ctx, teamID, ch.ID, latest); err != nil {
		return result, err
	}
	result.Cursor = latest

	ix.logger.Info("indexing complete",
		"channel", ch.Name,
		"threads", result.ThreadsIndexed,
		"windows", result.WindowsIndexed,
		"failed", result.ChunksFailed,
		"cursor", result.Cursor,
	)

	if ix.publisher != nil {
		if err := ix.publisher.Publish(bus.SubjectIndexCompleted, result); err != nil {
			ix.logger.Warn("failed to publish completion", "error", err)
		}
	}

	return result, nil
}

// storeChunk embeds and upserts one chunk. Failures are logged with the
// chunk's key and absorbed so one bad chunk cannot block the rest of a run.
func (ix *Indexer) storeChunk(ctx context.Context, c chunker.Chunk) bool {
	embedding, err := ix.embedder.Embed(ctx, c.Text)
	if err != nil {
		ix.logger.Error("embed failed", "chunk_key", c.Key, "error", err)
		return false
	}
	if _, err := ix.chunks.UpsertChunk(ctx, c, embedding); err != nil {
		ix.logger.Error("upsert failed", "chunk_key", c.Key, "error", err)
		return false
	}
	return true
}

// partition splits fetched history into thread roots (in first-seen order)
// and loose non-thread messages. Messages with no text are dropped.
func partition(msgs []slack.Message) (threadRoots []string, loose []slack.Message) {
	seen := make(map[string]bool)
	for _, m := range msgs {
		if m.Text == "" {
			continue
		}
		if m.ThreadTS != "" {
			if !seen[m.ThreadTS] {
				seen[m.ThreadTS] = true
				threadRoots = append(threadRoots, m.ThreadTS)
			}
			continue
		}
		loose = append(loose, m)
	}
	return threadRoots, loose
}

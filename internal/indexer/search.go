package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loreworks/chanlore/internal/embed"
	"github.com/loreworks/chanlore/internal/store"
)

// SearchStore answers nearest-neighbor queries over stored chunks.
type SearchStore interface {
	SearchChunks(ctx context.Context, channelID string, queryEmbedding []float64, topK int) ([]store.SearchResult, error)
}

// Searcher embeds a query and retrieves the most similar chunks.
type Searcher struct {
	embedder    embed.Embedder
	store       SearchStore
	defaultTopK int
	logger      *slog.Logger
}

func NewSearcher(e embed.Embedder, s SearchStore, defaultTopK int, logger *slog.Logger) *Searcher {
	return &Searcher{embedder: e, store: s, defaultTopK: defaultTopK, logger: logger}
}

// Search returns up to topK chunks ranked by similarity to query. An empty
// channelID searches across all channels; topK <= 0 uses the default.
func (s *Searcher) Search(ctx context.Context, channelID, query string, topK int) ([]store.SearchResult, error) {
	if topK <= 0 {
		topK = s.defaultTopK
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.store.SearchChunks(ctx, channelID, vec, topK)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("search complete", "channel_id", channelID, "top_k", topK, "results", len(results))
	return results, nil
}

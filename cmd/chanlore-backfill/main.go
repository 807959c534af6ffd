// Backfill one channel's full history into the chunk store.
//
// Usage: chanlore-backfill [-oldest TS] <channel_id_or_name>
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/loreworks/chanlore/internal/collector"
	"github.com/loreworks/chanlore/internal/config"
	"github.com/loreworks/chanlore/internal/embed"
	"github.com/loreworks/chanlore/internal/indexer"
	"github.com/loreworks/chanlore/internal/slack"
	"github.com/loreworks/chanlore/internal/store"
)

func main() {
	oldest := flag.String("oldest", "", "inclusive lower timestamp bound (default: stored cursor, else full history)")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: chanlore-backfill [-oldest TS] <channel_id_or_name>")
		fmt.Fprintln(os.Stderr, "Example: chanlore-backfill C1234567890")
		fmt.Fprintln(os.Stderr, "Example: chanlore-backfill general")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	channelRef := flag.Arg(0)

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx, cfg.EmbedDim); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	embedder := embed.NewOllama(cfg.OllamaURL, cfg.EmbedModel, cfg.EmbedDim)
	if err := embedder.Probe(ctx); err != nil {
		slog.Error("embedding provider not usable", "error", err)
		os.Exit(1)
	}

	if cfg.SlackBotToken == "" {
		slog.Error("SLACK_BOT_TOKEN is required")
		os.Exit(1)
	}
	slackClient := slack.NewClient(cfg.SlackBotToken)
	retryPolicy := slack.NewRetryPolicy(slog.Default())
	resolver := slack.NewUserResolver(slackClient, retryPolicy, slog.Default())
	coll := collector.New(slackClient, retryPolicy, cfg.HistoryPageLimit, slog.Default())

	ix := indexer.New(coll, resolver, embedder, db, db, nil, indexer.Options{
		MaxMessagesPerWindow: cfg.MaxMessagesPerWindow,
		MaxWindow:            time.Duration(cfg.MaxWindowMinutes) * time.Minute,
	}, slog.Default())

	result, err := ix.IndexChannel(ctx, channelRef, *oldest)
	if err != nil {
		slog.Error("backfill failed", "channel", channelRef, "error", err)
		os.Exit(1)
	}

	slog.Info("backfill complete",
		"channel", result.ChannelName,
		"threads_indexed", result.ThreadsIndexed,
		"windows_indexed", result.WindowsIndexed,
		"chunks_failed", result.ChunksFailed,
		"cursor", result.Cursor,
	)
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

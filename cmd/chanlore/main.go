package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loreworks/chanlore/internal/api"
	"github.com/loreworks/chanlore/internal/bus"
	"github.com/loreworks/chanlore/internal/collector"
	"github.com/loreworks/chanlore/internal/config"
	"github.com/loreworks/chanlore/internal/embed"
	"github.com/loreworks/chanlore/internal/indexer"
	"github.com/loreworks/chanlore/internal/slack"
	"github.com/loreworks/chanlore/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("chanlore starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
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
	slog.Info("database ready", "embed_dim", cfg.EmbedDim)

	// Embedding provider
	embedder := embed.NewOllama(cfg.OllamaURL, cfg.EmbedModel, cfg.EmbedDim)
	if err := embedder.Probe(ctx); err != nil {
		slog.Error("embedding provider not usable", "error", err)
		os.Exit(1)
	}
	slog.Info("embedder ready", "model", cfg.EmbedModel, "dim", cfg.EmbedDim)

	// Slack
	if cfg.SlackBotToken == "" {
		slog.Error("SLACK_BOT_TOKEN is required")
		os.Exit(1)
	}
	slackClient := slack.NewClient(cfg.SlackBotToken)
	retryPolicy := slack.NewRetryPolicy(slog.Default())
	resolver := slack.NewUserResolver(slackClient, retryPolicy, slog.Default())
	coll := collector.New(slackClient, retryPolicy, cfg.HistoryPageLimit, slog.Default())

	// NATS (optional — chanlore works without it, just no event-driven runs)
	var busClient *bus.Client
	if cfg.NatsURL != "" {
		busClient, err = bus.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer busClient.Close()
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS not configured — index requests only via HTTP")
	}

	// Pipeline
	opts := indexer.Options{
		MaxMessagesPerWindow: cfg.MaxMessagesPerWindow,
		MaxWindow:            time.Duration(cfg.MaxWindowMinutes) * time.Minute,
	}
	var publisher indexer.Publisher
	if busClient != nil {
		publisher = busClient
	}
	ix := indexer.New(coll, resolver, embedder, db, db, publisher, opts, slog.Default())
	searcher := indexer.NewSearcher(embedder, db, cfg.SearchTopK, slog.Default())

	if busClient != nil {
		err := busClient.Subscribe(bus.SubjectIndexRequest, func(_ string, data []byte) {
			var req bus.IndexRequest
			if err := json.Unmarshal(data, &req); err != nil {
				slog.Error("bad index request payload", "error", err)
				return
			}
			go func() {
				if _, err := ix.IndexChannel(ctx, req.Channel, req.Oldest); err != nil {
					slog.Error("requested index run failed", "channel", req.Channel, "error", err)
				}
			}()
		})
		if err != nil {
			slog.Error("failed to subscribe to index requests", "error", err)
			os.Exit(1)
		}

		if err := busClient.Publish(bus.SubjectRegistered, map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"port":      cfg.Port,
		}); err != nil {
			slog.Warn("failed to publish registration", "error", err)
		}
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, searcher, ix)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("chanlore ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("chanlore stopped")
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

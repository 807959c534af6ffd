package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port                 int
	DatabaseURL          string
	LogLevel             string
	SlackBotToken        string
	NatsURL              string
	NatsToken            string
	OllamaURL            string
	EmbedModel           string
	EmbedDim             int
	HistoryPageLimit     int
	MaxMessagesPerWindow int
	MaxWindowMinutes     int
	SearchTopK           int
}

func Load() Config {
	return Config{
		Port:                 envInt("CHANLORE_PORT", 8760),
		DatabaseURL:          envStr("DATABASE_URL", ""),
		LogLevel:             envStr("LOG_LEVEL", "info"),
		SlackBotToken:        envStr("SLACK_BOT_TOKEN", ""),
		NatsURL:              envStr("NATS_URL", ""),
		NatsToken:            envStr("NATS_TOKEN", ""),
		OllamaURL:            envStr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:           envStr("EMBED_MODEL", "nomic-embed-text"),
		EmbedDim:             envInt("EMBED_DIM", 768),
		HistoryPageLimit:     envInt("HISTORY_PAGE_LIMIT", 200),
		MaxMessagesPerWindow: envInt("MAX_MESSAGES_PER_WINDOW", 20),
		MaxWindowMinutes:     envInt("MAX_WINDOW_MINUTES", 10),
		SearchTopK:           envInt("SEARCH_TOP_K", 8),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	APIPort  string
	LogLevel string

	SnapshotDir string

	OllamaURL        string
	OllamaEmbedModel string

	RetrievalTopK       int
	RetrievalCandidates int
	RetrievalRRFK       int
	RetrievalTimeout    time.Duration

	APIRateLimitRPS   int
	APIRateLimitBurst int
	APIMaxConcurrent  int
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		SnapshotDir: mustEnv("SNAPSHOT_DIR", "./data/snapshot"),

		OllamaURL:        mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaEmbedModel: mustEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),

		RetrievalTopK:       mustEnvInt("RETRIEVAL_TOP_K", 5),
		RetrievalCandidates: mustEnvInt("RETRIEVAL_CANDIDATES", 25),
		RetrievalRRFK:       mustEnvInt("RETRIEVAL_RRF_K", 60),
		RetrievalTimeout:    time.Duration(mustEnvInt("RETRIEVAL_TIMEOUT_MS", 2000)) * time.Millisecond,

		APIRateLimitRPS:   mustEnvInt("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIMaxConcurrent:  mustEnvInt("API_MAX_CONCURRENT", 64),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

package embedding

import (
	"os"
	"strconv"
)

// defaultFastDimension is the width of the always-available hash embedder.
// It does not need to match the quality tier's dimension: the two tiers are
// blended by score, not by vector arithmetic.
const defaultFastDimension = 256

// NewFastEmbedder returns the fast-tier embedder. It never fails and never
// makes a network call, so it is always available as the floor the hybrid
// search path can fall back to.
func NewFastEmbedder() Embedder {
	dim := getEnvInt("CASS_FAST_EMBED_DIMENSIONS", defaultFastDimension)
	return NewHashEmbedder(dim)
}

// NewQualityEmbedderFromEnv constructs the optional quality-tier embedder
// from environment configuration, following the same cascading-default
// shape as the chat-model provider resolution this package's Ollama client
// was adapted from. It returns (nil, false) when no quality tier is
// configured, in which case callers degrade to the fast tier alone.
func NewQualityEmbedderFromEnv() (Embedder, bool) {
	backend := getEnv("CASS_EMBEDDING_PROVIDER")
	if backend == "" {
		return nil, false
	}

	switch backend {
	case "ollama":
		host := getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		model := getEnvOrDefault("CASS_EMBEDDING_MODEL", "nomic-embed-text")
		dim := getEnvInt("CASS_EMBEDDING_DIMENSIONS", 768)
		return NewOllamaEmbedder(OllamaConfig{Host: host, Model: model, Dimension: dim}), true
	default:
		return nil, false
	}
}

func getEnv(key string) string {
	return os.Getenv(key)
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

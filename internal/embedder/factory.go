package embedder

import (
	"fmt"
	"os"
	"strings"

	"github.com/raglet/raglet/internal/config"
)

// New creates an embedder from configuration. The OpenAI key comes from the
// environment; everything else from the config section.
func New(cfg config.Embedding) (Embedder, error) {
	cache := NewCache(cfg.CacheSize)

	switch strings.ToLower(cfg.Provider) {
	case ProviderOllama, "":
		return NewOllamaProvider(cfg.OllamaURL, cfg.Model, cache), nil
	case ProviderOpenAI:
		return NewOpenAIProvider(os.Getenv(config.EnvOpenAIKey), cfg.Model, cache)
	case ProviderLocal:
		return NewLocalProvider(cache), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

// DetectProvider reports which provider a config would select.
func DetectProvider(cfg config.Embedding) string {
	p := strings.ToLower(cfg.Provider)
	if p == "" {
		return ProviderOllama
	}
	return p
}

package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder turns one text into a vector. *embeddings.EmbedderImpl satisfies it.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// NewEmbedder builds the embedder named by LLMconfig.Provider
func NewEmbedder(LLMconfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	switch LLMconfig.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIEmbedder(LLMconfig)
	case config.ProviderOllama:
		return NewOllamaEmbedder(LLMconfig)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", LLMconfig.Provider)
	}
}

// NewOpenAIEmbedder works with any OpenAI compatible endpoint
func NewOpenAIEmbedder(LLMconfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	log.Debug().Interface("config", map[string]string{
		"base_url":        LLMconfig.BaseURL,
		"embedding_model": LLMconfig.Model,
	}).Msg("Creating openai embedder")

	llm, err := openai.New(
		openai.WithBaseURL(LLMconfig.BaseURL),
		openai.WithToken(strings.TrimPrefix(LLMconfig.Key, "Bearer ")),
		openai.WithEmbeddingModel(LLMconfig.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize llm: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// new ollama embedder
func NewOllamaEmbedder(LLMconfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	log.Debug().Interface("config", map[string]string{
		"base_url":        LLMconfig.BaseURL,
		"embedding_model": LLMconfig.Model,
	}).Msg("Creating ollama embedder")

	llm, err := ollama.New(
		ollama.WithServerURL(LLMconfig.BaseURL),
		ollama.WithModel(LLMconfig.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize llm: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// Embed calls the embedder and checks the vector has exactly dim values.
// Every failure is reported as models.ErrEmbedding.
func Embed(ctx context.Context, embedder Embedder, text string, dim int) ([]float32, error) {
	vec, err := embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrEmbedding, err)
	}
	if len(vec) != dim {
		return nil, fmt.Errorf("%w: got vector of %d dimensions, want %d", models.ErrEmbedding, len(vec), dim)
	}
	return vec, nil
}

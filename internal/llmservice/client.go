package llmservice

import (
	"context"
	"fmt"
	"strings"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// NewLLM builds the generative model named by llmConfig.Provider
func NewLLM(llmConfig *config.LLMConfig) (llms.Model, error) {
	log.Debug().Str("provider", llmConfig.Provider).Str("model", llmConfig.Model).Msg("Creating llm")
	var (
		llm llms.Model
		err error
	)
	switch llmConfig.Provider {
	case config.ProviderOpenAI:
		llm, err = openai.New(
			openai.WithBaseURL(llmConfig.BaseURL),
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
		)
	case config.ProviderOllama:
		llm, err = ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", llmConfig.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize llm: %w", err)
	}
	return llm, nil
}

// BuildPrompt puts the title and text of each result in front of the query
func BuildPrompt(query string, results []models.Result) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Title + "\n" + r.Content
	}
	return fmt.Sprintf(models.PromptTemplate, query, strings.Join(parts, "\n"))
}

// call llm
func GenerateContent(ctx context.Context, llm llms.Model, prompt string) (string, error) {
	log.Debug().Int("prompt_len", len(prompt)).Msg("Generating content")
	answer, err := llms.GenerateFromSinglePrompt(ctx, llm, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return answer, nil
}

package rag

import (
	"context"

	"pdf-rag/internal/llmservice"
	"pdf-rag/internal/models"

	"github.com/tmc/langchaingo/llms"
)

// RAG grounds a generative model on retrieved chunks
type RAG struct {
	retriever *Retriever
	llm       llms.Model
	topK      int
}

func NewRAG(retriever *Retriever, llm llms.Model, topK int) *RAG {
	return &RAG{retriever: retriever, llm: llm, topK: topK}
}

// Query retrieves the top chunks for query and asks the model to answer
// with them as context
func (r *RAG) Query(ctx context.Context, query string) (*models.PromptResponse, error) {
	results, err := r.retriever.Retrieve(ctx, query, r.topK)
	if err != nil {
		return nil, err
	}

	answer, err := llmservice.GenerateContent(ctx, r.llm, llmservice.BuildPrompt(query, results))
	if err != nil {
		return nil, err
	}

	return &models.PromptResponse{
		Query:   query,
		Results: results,
		Content: answer,
	}, nil
}

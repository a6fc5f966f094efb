package rag

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"pdf-rag/internal/config"
	"pdf-rag/internal/embedding"
	"pdf-rag/internal/models"
)

// Retriever maps a free-text query to the most similar stored chunks
type Retriever struct {
	cfg      config.RAGConfig
	store    Store
	embedder embedding.Embedder
}

func NewRetriever(cfg config.RAGConfig, store Store, embedder embedding.Embedder) *Retriever {
	return &Retriever{cfg: cfg, store: store, embedder: embedder}
}

// SimilaritySearch embeds query and returns at most k rows ordered by
// descending score. Storage failures come back as models.ErrRetrieval.
func (r *Retriever) SimilaritySearch(ctx context.Context, query string, k int) ([]models.SearchRow, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", models.ErrInvalidArgument, k)
	}

	vec, err := embedding.Embed(ctx, r.embedder, query, r.cfg.Dimension)
	if err != nil {
		return nil, err
	}

	rows, err := r.store.SimilaritySearch(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrRetrieval, err)
	}
	log.Debug().Str("table", r.cfg.Table).Int("k", k).Int("rows", len(rows)).Msg("Similarity search")
	return rows, nil
}

// ToResultRecords keeps the input order
func ToResultRecords(rows []models.SearchRow) []models.Result {
	results := make([]models.Result, len(rows))
	for i, row := range rows {
		results[i] = models.Result{
			Content: row.Content,
			Score:   row.Score,
			Title:   row.Title,
			ChunkID: row.ChunkID,
		}
	}
	return results
}

// Retrieve is SimilaritySearch followed by ToResultRecords
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]models.Result, error) {
	rows, err := r.SimilaritySearch(ctx, query, k)
	if err != nil {
		return nil, err
	}
	return ToResultRecords(rows), nil
}

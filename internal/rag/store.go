package rag

import (
	"context"

	"pdf-rag/internal/models"
)

// Store is the vector-capable storage behind the indexer and the retriever.
// Implementations wrap their failures in models.ErrStorage.
type Store interface {
	// CreateTable drops any existing table of the configured name and
	// creates it empty. All previous data is lost.
	CreateTable(ctx context.Context) error
	// InsertChunks persists one batch; a batch is applied entirely or not at all
	// where the backend supports transactions.
	InsertChunks(ctx context.Context, chunks []models.Chunk) error
	// SimilaritySearch returns at most k rows, best score first.
	SimilaritySearch(ctx context.Context, vector []float32, k int) ([]models.SearchRow, error)
	Close() error
}

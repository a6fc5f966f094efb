package chromemdb

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
)

const (
	metaTitle = "title"
)

// VectorDBManager stores chunk records in a chromem-go collection named
// after the configured table
type VectorDBManager struct {
	db            *chromem.DB
	collection    *chromem.Collection
	name          string
	compress      bool
	encryptionKey string
	filePath      string
}

// NewVectorDBManager opens a persistent database under cfg.Path, or an
// in-memory one when cfg.InMemory is set
func NewVectorDBManager(cfg config.ChromemConfig, table string) (*VectorDBManager, error) {
	var db *chromem.DB
	var err error
	if cfg.InMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to create database: %w", models.ErrStorage, err)
		}
	}

	return &VectorDBManager{
		db:            db,
		collection:    db.GetCollection(table, nil),
		name:          table,
		compress:      cfg.Compress,
		encryptionKey: cfg.EncryptionKey,
		filePath:      filepath.Join(cfg.Path, table+".chromem"),
	}, nil
}

// CreateTable drops the collection if present and creates an empty one
func (m *VectorDBManager) CreateTable(ctx context.Context) error {
	if err := m.db.DeleteCollection(m.name); err != nil {
		return fmt.Errorf("%w: failed to drop collection %s: %w", models.ErrStorage, m.name, err)
	}
	c, err := m.db.CreateCollection(m.name, nil, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create collection %s: %w", models.ErrStorage, m.name, err)
	}
	m.collection = c
	log.Info().Str("table", m.name).Msg("Collection created")
	return nil
}

// InsertChunks adds all chunks to the collection
func (m *VectorDBManager) InsertChunks(ctx context.Context, chunks []models.Chunk) error {
	if m.collection == nil {
		return fmt.Errorf("%w: collection %s does not exist", models.ErrStorage, m.name)
	}
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        c.ChunkID,
			Content:   c.Content,
			Metadata:  map[string]string{metaTitle: c.Title},
			Embedding: c.Embedding,
		}
	}

	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("%w: failed to add documents: %w", models.ErrStorage, err)
	}
	return nil
}

// SimilaritySearch ranks by cosine similarity, which is 1 - cosine distance.
// The whole collection is fetched and ranked before cutting to k, so rows
// tied at the cutoff are picked by chunk id and not by chromem's scheduling.
func (m *VectorDBManager) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]models.SearchRow, error) {
	if m.collection == nil {
		return nil, fmt.Errorf("%w: collection %s does not exist", models.ErrStorage, m.name)
	}
	// chromem refuses nResults above the collection size
	n := m.collection.Count()
	if n <= 0 || k <= 0 {
		return []models.SearchRow{}, nil
	}

	results, err := m.collection.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query by similarity: %w", models.ErrStorage, err)
	}

	rows := make([]models.SearchRow, len(results))
	for i, r := range results {
		rows[i] = models.SearchRow{
			ChunkID: r.ID,
			Title:   r.Metadata[metaTitle],
			Content: r.Content,
			Score:   float64(r.Similarity),
		}
	}
	models.RankRows(rows)
	return rows[:min(k, len(rows))], nil
}

// Export writes the collection to an encrypted file next to the database
func (m *VectorDBManager) Export(ctx context.Context) error {
	if m.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	if m.collection == nil {
		return fmt.Errorf("collection is required")
	}

	log.Debug().Str("collection", m.name).Str("file", m.filePath).Bool("compress", m.compress).Msg("Exporting collection")
	if err := m.db.ExportToFile(m.filePath, m.compress, m.encryptionKey, m.name); err != nil {
		return fmt.Errorf("%w: failed to export database: %w", models.ErrStorage, err)
	}
	return nil
}

// Import loads a collection previously written by Export
func (m *VectorDBManager) Import(ctx context.Context) error {
	if err := m.db.ImportFromFile(m.filePath, m.encryptionKey, m.name); err != nil {
		return fmt.Errorf("%w: failed to import database: %w", models.ErrStorage, err)
	}
	m.collection = m.db.GetCollection(m.name, nil)
	return nil
}

func (m *VectorDBManager) Close() error {
	return nil
}

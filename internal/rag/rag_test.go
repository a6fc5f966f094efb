package rag

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
	"pdf-rag/internal/parser"
)

const testDim = 64

// hashEmbedder is deterministic: the same text always gives the same vector,
// and no vector is ever all zeros
type hashEmbedder struct {
	failOn string
	calls  int
}

func (e *hashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if e.failOn != "" && strings.Contains(text, e.failOn) {
		return nil, errors.New("embedding service unavailable")
	}
	vec := make([]float32, testDim)
	vec[0] = 1
	for _, w := range strings.Fields(text) {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[1+int(h.Sum32()%(testDim-1))] += 1
	}
	return vec, nil
}

// memoryStore records what it is asked to do
type memoryStore struct {
	created   int
	batches   [][]models.Chunk
	rows      []models.SearchRow
	searchErr error
	insertErr error
}

func (s *memoryStore) CreateTable(ctx context.Context) error {
	s.created++
	s.batches = nil
	return nil
}

func (s *memoryStore) InsertChunks(ctx context.Context, chunks []models.Chunk) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.batches = append(s.batches, chunks)
	return nil
}

func (s *memoryStore) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]models.SearchRow, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.rows[:min(k, len(s.rows))], nil
}

func (s *memoryStore) Close() error { return nil }

func (s *memoryStore) inserted() []models.Chunk {
	var out []models.Chunk
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

func testConfig() config.RAGConfig {
	cfg := config.DefaultRAGConfig()
	cfg.ChunkSize = 40
	cfg.ChunkOverlap = 5
	cfg.Dimension = testDim
	return cfg
}

// fakeFiles serves documents by file name
func fakeFiles(docs map[string][]string) parser.Opener {
	return func(path string) (parser.Document, error) {
		for name, pages := range docs {
			if strings.HasSuffix(path, "/"+name) {
				return parser.NewTextDocument(pages...), nil
			}
		}
		return nil, models.ErrDocumentOpen
	}
}

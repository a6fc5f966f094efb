package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"pdf-rag/internal/config"
	"pdf-rag/internal/embedding"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/models"
	"pdf-rag/internal/parser"
)

// Indexer turns documents into embedded chunk records
type Indexer struct {
	cfg      config.RAGConfig
	store    Store
	embedder embedding.Embedder
	splitter *parser.Splitter
	open     parser.Opener
}

type IndexerOption func(*Indexer)

// WithOpener replaces parser.Open as the way files are read
func WithOpener(open parser.Opener) IndexerOption {
	return func(i *Indexer) {
		i.open = open
	}
}

func NewIndexer(cfg config.RAGConfig, store Store, embedder embedding.Embedder, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		cfg:      cfg,
		store:    store,
		embedder: embedder,
		splitter: parser.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		open:     parser.Open,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// FileResult is the outcome of indexing one file
type FileResult struct {
	File   string
	Chunks int
	Err    error
}

// IndexReport summarizes a directory run
type IndexReport struct {
	Files []FileResult
}

func (r IndexReport) Chunks() int {
	total := 0
	for _, f := range r.Files {
		total += f.Chunks
	}
	return total
}

func (r IndexReport) Failed() int {
	failed := 0
	for _, f := range r.Files {
		if f.Err != nil {
			failed++
		}
	}
	return failed
}

// CreateTable recreates the backing table. Destructive, only call it when
// rebuilding the index on purpose.
func (i *Indexer) CreateTable(ctx context.Context) error {
	return i.store.CreateTable(ctx)
}

// ExtractPageChunks normalizes and splits every page of doc
func (i *Indexer) ExtractPageChunks(doc parser.Document) ([]models.PageChunks, error) {
	return i.splitter.ExtractPageChunks(doc)
}

// IndexFile embeds every chunk of dir/fileName and stores them in one batch.
// Embeddings are computed before anything is written, so a failure leaves no
// rows of this file behind.
func (i *Indexer) IndexFile(ctx context.Context, dir, fileName string) (int, error) {
	filePath := filepath.Join(dir, fileName)
	doc, err := i.open(filePath)
	if err != nil {
		return 0, err
	}
	defer doc.Close()

	pages, err := i.ExtractPageChunks(doc)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", fileName, err)
	}

	var records []models.Chunk
	for _, page := range pages {
		for _, chunk := range page.Chunks {
			vec, err := embedding.Embed(ctx, i.embedder, chunk, i.cfg.Dimension)
			if err != nil {
				return 0, fmt.Errorf("%s %s: %w", fileName, page.Label, err)
			}
			id, err := helper.GenerateUUID()
			if err != nil {
				return 0, err
			}
			records = append(records, models.Chunk{
				ChunkID:   id,
				Title:     fileName + page.Label,
				Content:   chunk,
				Embedding: vec,
			})
		}
	}

	if err := i.store.InsertChunks(ctx, records); err != nil {
		return 0, fmt.Errorf("%s: %w", fileName, err)
	}
	log.Info().Str("file", fileName).Int("pages", len(pages)).Int("chunks", len(records)).Msg("File indexed")
	return len(records), nil
}

// IndexDirectory indexes every regular file in dir, or symlink to one, in
// name order. By default a failing file is recorded and the rest are still
// indexed; the returned error joins all failures. With StopOnError the first failure ends the run.
func (i *Indexer) IndexDirectory(ctx context.Context, dir string) (IndexReport, error) {
	var report IndexReport

	entries, err := os.ReadDir(dir)
	if err != nil {
		return report, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		// Stat follows symlinks, so a link to a regular file is indexed
		info, err := os.Stat(filepath.Join(dir, e.Name()))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		n, err := i.IndexFile(ctx, dir, name)
		report.Files = append(report.Files, FileResult{File: name, Chunks: n, Err: err})
		if err != nil {
			if i.cfg.StopOnError {
				return report, err
			}
			log.Error().Err(err).Str("file", name).Msg("Error indexing file")
			errs = append(errs, err)
		}
	}
	return report, errors.Join(errs...)
}

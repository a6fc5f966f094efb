package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pdf-rag/internal/models"
	"pdf-rag/internal/parser"
)

// with chunk size 40 and overlap 5 these pages split into 3 and 2 chunks
var twoPageDoc = []string{
	"alpha bravo charlie delta echo foxtrot golf hotel india juliet kilo lima mike november",
	"oscar papa quebec romeo sierra tango uniform victor",
}

func TestIndexFile_InsertsOneRowPerChunk(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	store := &memoryStore{}
	idx := NewIndexer(cfg, store, &hashEmbedder{}, WithOpener(fakeFiles(map[string][]string{"doc.pdf": twoPageDoc})))

	pages, err := idx.ExtractPageChunks(parser.NewTextDocument(twoPageDoc...))
	if err != nil {
		t.Fatalf("ExtractPageChunks: %v", err)
	}
	if len(pages[0].Chunks) != 3 || len(pages[1].Chunks) != 2 {
		t.Fatalf("expected 3 and 2 chunks, got %d and %d", len(pages[0].Chunks), len(pages[1].Chunks))
	}

	n, err := idx.IndexFile(ctx, "files", "doc.pdf")
	if err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 rows, got %d", n)
	}
	if len(store.batches) != 1 {
		t.Fatalf("expected one batch per file, got %d", len(store.batches))
	}

	ids := make(map[string]bool)
	perTitle := make(map[string]int)
	for _, row := range store.inserted() {
		if ids[row.ChunkID] {
			t.Fatalf("duplicate chunk id %s", row.ChunkID)
		}
		ids[row.ChunkID] = true
		perTitle[row.Title]++
		if row.Content == "" {
			t.Fatalf("empty content in row %+v", row)
		}
		if len(row.Content) > cfg.ChunkSize {
			t.Fatalf("content longer than chunk size: %q", row.Content)
		}
		if len(row.Embedding) != cfg.Dimension {
			t.Fatalf("embedding has %d values, want %d", len(row.Embedding), cfg.Dimension)
		}
	}
	if perTitle["doc.pdfpage_0"] != 3 || perTitle["doc.pdfpage_1"] != 2 {
		t.Fatalf("unexpected titles %v", perTitle)
	}
}

func TestIndexFile_EmbeddingFailureWritesNothing(t *testing.T) {
	store := &memoryStore{}
	embedder := &hashEmbedder{failOn: "sierra"}
	idx := NewIndexer(testConfig(), store, embedder, WithOpener(fakeFiles(map[string][]string{"doc.pdf": twoPageDoc})))

	_, err := idx.IndexFile(context.Background(), "files", "doc.pdf")
	if !errors.Is(err, models.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
	if len(store.inserted()) != 0 {
		t.Fatalf("expected no rows after a failed file, got %d", len(store.inserted()))
	}
	if embedder.calls < 4 {
		t.Fatalf("expected the earlier chunks to be embedded first, got %d calls", embedder.calls)
	}
}

func TestIndexFile_WrongDimension(t *testing.T) {
	cfg := testConfig()
	cfg.Dimension = 768
	idx := NewIndexer(cfg, &memoryStore{}, &hashEmbedder{}, WithOpener(fakeFiles(map[string][]string{"doc.pdf": twoPageDoc})))
	_, err := idx.IndexFile(context.Background(), "files", "doc.pdf")
	if !errors.Is(err, models.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
}

func TestIndexFile_OpenFailure(t *testing.T) {
	idx := NewIndexer(testConfig(), &memoryStore{}, &hashEmbedder{})
	path := filepath.Join(t.TempDir(), "broken.pdf")
	if err := os.WriteFile(path, []byte("not a pdf"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := idx.IndexFile(context.Background(), filepath.Dir(path), "broken.pdf")
	if !errors.Is(err, models.ErrDocumentOpen) {
		t.Fatalf("expected ErrDocumentOpen, got %v", err)
	}
}

func TestIndexFile_StorageFailure(t *testing.T) {
	store := &memoryStore{insertErr: models.ErrStorage}
	idx := NewIndexer(testConfig(), store, &hashEmbedder{}, WithOpener(fakeFiles(map[string][]string{"doc.pdf": twoPageDoc})))
	_, err := idx.IndexFile(context.Background(), "files", "doc.pdf")
	if !errors.Is(err, models.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}

func TestIndexFile_EmptyPagesStillIndexOthers(t *testing.T) {
	store := &memoryStore{}
	docs := map[string][]string{"scan.pdf": {"", "...", "real words here"}}
	idx := NewIndexer(testConfig(), store, &hashEmbedder{}, WithOpener(fakeFiles(docs)))
	n, err := idx.IndexFile(context.Background(), "files", "scan.pdf")
	if err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	if n != 1 || store.inserted()[0].Title != "scan.pdfpage_2" {
		t.Fatalf("expected one row for page 2, got %+v", store.inserted())
	}
}

func writeDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return dir
}

func TestIndexDirectory_ContinuesOnError(t *testing.T) {
	dir := writeDir(t, map[string]string{
		"a.txt":     "first file text",
		"b.unknown": "cannot be parsed",
		"c.txt":     "third file\fsecond page",
		"d.md":      "# heading\n\nbody",
	})
	store := &memoryStore{}
	idx := NewIndexer(testConfig(), store, &hashEmbedder{})

	report, err := idx.IndexDirectory(context.Background(), dir)
	if !errors.Is(err, models.ErrDocumentOpen) {
		t.Fatalf("expected joined ErrDocumentOpen, got %v", err)
	}
	if len(report.Files) != 4 {
		t.Fatalf("expected 4 files (subdirectory skipped), got %d", len(report.Files))
	}
	if report.Failed() != 1 || report.Files[1].File != "b.unknown" {
		t.Fatalf("unexpected failures %+v", report.Files)
	}
	if report.Chunks() != 4 || len(store.inserted()) != 4 {
		t.Fatalf("expected 4 chunks indexed, report=%d store=%d", report.Chunks(), len(store.inserted()))
	}
}

func TestIndexDirectory_StopOnError(t *testing.T) {
	dir := writeDir(t, map[string]string{
		"a.unknown": "bad",
		"b.txt":     "good",
	})
	cfg := testConfig()
	cfg.StopOnError = true
	store := &memoryStore{}
	idx := NewIndexer(cfg, store, &hashEmbedder{})

	report, err := idx.IndexDirectory(context.Background(), dir)
	if !errors.Is(err, models.ErrDocumentOpen) {
		t.Fatalf("expected ErrDocumentOpen, got %v", err)
	}
	if len(report.Files) != 1 || len(store.inserted()) != 0 {
		t.Fatalf("expected the run to stop at the first file, got %+v", report.Files)
	}
}

func TestIndexDirectory_MissingDir(t *testing.T) {
	idx := NewIndexer(testConfig(), &memoryStore{}, &hashEmbedder{})
	if _, err := idx.IndexDirectory(context.Background(), filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}

func TestCreateTable_Delegates(t *testing.T) {
	store := &memoryStore{batches: [][]models.Chunk{{{ChunkID: "old"}}}}
	idx := NewIndexer(testConfig(), store, &hashEmbedder{})
	if err := idx.CreateTable(context.Background()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if store.created != 1 || len(store.inserted()) != 0 {
		t.Fatalf("expected table recreated and emptied")
	}
}

func TestTitleHasNoSeparator(t *testing.T) {
	store := &memoryStore{}
	idx := NewIndexer(testConfig(), store, &hashEmbedder{}, WithOpener(fakeFiles(map[string][]string{"report.pdf": {"x"}})))
	if _, err := idx.IndexFile(context.Background(), "files", "report.pdf"); err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	if got := store.inserted()[0].Title; !strings.HasPrefix(got, "report.pdfpage_0") {
		t.Fatalf("title = %q", got)
	}
}

func TestIndexDirectory_FollowsSymlinks(t *testing.T) {
	dir := writeDir(t, map[string]string{"a.txt": "plain file"})
	target := filepath.Join(t.TempDir(), "shared.txt")
	if err := os.WriteFile(target, []byte("linked file"), 0o644); err != nil {
		t.Fatalf("write target: %v", err)
	}
	if err := os.Symlink(target, filepath.Join(dir, "b.txt")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	if err := os.Symlink(filepath.Join(dir, "nested"), filepath.Join(dir, "c_dir")); err != nil {
		t.Fatalf("symlink dir: %v", err)
	}
	if err := os.Symlink(filepath.Join(dir, "gone.txt"), filepath.Join(dir, "d.txt")); err != nil {
		t.Fatalf("symlink dangling: %v", err)
	}

	store := &memoryStore{}
	report, err := NewIndexer(testConfig(), store, &hashEmbedder{}).IndexDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("IndexDirectory: %v", err)
	}
	if len(report.Files) != 2 || report.Files[0].File != "a.txt" || report.Files[1].File != "b.txt" {
		t.Fatalf("expected a.txt and the linked b.txt, got %+v", report.Files)
	}
	if len(store.inserted()) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(store.inserted()))
	}
}

package db

import (
	"context"
	"database/sql"
	"fmt"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

// ChunkRow maps one row of the chunk table. The table name comes from the
// configuration, so every query sets it with ModelTableExpr.
type ChunkRow struct {
	bun.BaseModel `bun:"alias:c"`
	ChunkID       string          `bun:"chunk_id,notnull"`
	Title         string          `bun:"title,notnull"`
	Content       string          `bun:"content,notnull"`
	Embeddings    pgvector.Vector `bun:"embeddings,notnull"`
}

// scoredRow is what the similarity query scans into
type scoredRow struct {
	ChunkID string  `bun:"chunk_id"`
	Title   string  `bun:"title"`
	Content string  `bun:"content"`
	Score   float64 `bun:"score"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens a connection pool with the configured driver. Nothing is
// dialed until the first query.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.DSN()
	switch cfg.Driver {
	case config.DriverPq:
		return sql.Open("postgres", dsn)
	case config.DriverPgdriver, "":
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn))), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// EnableVector installs the pgvector extension
func EnableVector(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewRaw("CREATE EXTENSION IF NOT EXISTS vector").Exec(ctx); err != nil {
		return fmt.Errorf("%w: failed to enable vector extension: %w", models.ErrStorage, err)
	}
	return nil
}

// Store keeps chunk records in one postgres table with a pgvector column
type Store struct {
	db        *bun.DB
	table     string
	dimension int
}

// NewStore expects cfg to be validated already; the table name is used as
// an identifier in every statement.
func NewStore(db *bun.DB, cfg config.RAGConfig) *Store {
	return &Store{db: db, table: cfg.Table, dimension: cfg.Dimension}
}

// CreateTable drops the table if it exists and creates it empty
func (s *Store) CreateTable(ctx context.Context) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDropTable().Table(s.table).IfExists().Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewRaw(`CREATE TABLE ? (
			chunk_id VARCHAR NOT NULL UNIQUE,
			title VARCHAR NOT NULL,
			content VARCHAR NOT NULL,
			embeddings VECTOR(?) NOT NULL
		)`, bun.Ident(s.table), s.dimension).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: failed to create table %s: %w", models.ErrStorage, s.table, err)
	}
	log.Info().Str("table", s.table).Msg("Table created")
	return nil
}

// InsertChunks writes all chunks in one transaction; on error nothing is kept
func (s *Store) InsertChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	rows := make([]ChunkRow, len(chunks))
	for i, c := range chunks {
		rows[i] = ChunkRow{
			ChunkID:    c.ChunkID,
			Title:      c.Title,
			Content:    c.Content,
			Embeddings: pgvector.NewVector(c.Embedding),
		}
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := s.insertQuery(tx, &rows).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: failed to insert %d chunks: %w", models.ErrStorage, len(chunks), err)
	}
	return nil
}

// SimilaritySearch ranks rows by 1 - euclidean distance to vector
func (s *Store) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]models.SearchRow, error) {
	var rows []scoredRow
	if err := s.searchQuery(s.db, &rows, vector, k).Scan(ctx); err != nil {
		return nil, fmt.Errorf("%w: similarity query on %s: %w", models.ErrStorage, s.table, err)
	}

	out := make([]models.SearchRow, len(rows))
	for i, r := range rows {
		out[i] = models.SearchRow{
			ChunkID: r.ChunkID,
			Title:   r.Title,
			Content: r.Content,
			Score:   r.Score,
		}
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) insertQuery(db bun.IDB, rows *[]ChunkRow) *bun.InsertQuery {
	return db.NewInsert().
		Model(rows).
		ModelTableExpr("?", bun.Ident(s.table))
}

func (s *Store) searchQuery(db bun.IDB, dest *[]scoredRow, vector []float32, k int) *bun.SelectQuery {
	return db.NewSelect().
		Model(dest).
		ModelTableExpr("? AS c", bun.Ident(s.table)).
		ColumnExpr("c.chunk_id, c.title, c.content").
		ColumnExpr("1 - (c.embeddings <-> ?::vector) AS score", pgvector.NewVector(vector)).
		OrderExpr("score DESC").
		OrderExpr("c.chunk_id ASC").
		Limit(k)
}

package main

import (
	"bufio"
	"context"
	"fmt"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pdf-rag/internal/chromemdb"
	"pdf-rag/internal/config"
	"pdf-rag/internal/db"
	"pdf-rag/internal/embedding"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/llmservice"
	"pdf-rag/internal/parser"
	"pdf-rag/internal/qdrantdb"
	"pdf-rag/internal/rag"
)

const (
	configFilePath = "./configs/config.yaml"
	defaultDir     = "files/"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()
	stdlog.SetFlags(0)
	stdlog.SetOutput(stdLogWriter{})

	if err := newRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

// stdLogWriter forwards lines printed through the standard log package to
// zerolog at debug level. The text splitter warns there about chunks over the
// size bound, which Splitter cuts afterwards anyway.
type stdLogWriter struct{}

func (stdLogWriter) Write(p []byte) (int, error) {
	log.Debug().Str("source", "stdlog").Msg(strings.TrimSpace(string(p)))
	return len(p), nil
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:           "pdf-rag",
		Short:         "Index documents into a vector store and answer questions over them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", configFilePath, "Config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	load := func() (*config.Config, error) {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
		setLogLevel(cfg.LogLevel, debug)
		log.Debug().Str("store", cfg.Store).Interface("rag", cfg.RAG).Msg("Loaded config")
		return cfg, nil
	}

	rootCmd.AddCommand(newIndexCmd(load), newQueryCmd(load), newChunksCmd(load))
	return rootCmd
}

func setLogLevel(level string, debug bool) {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

type loader func() (*config.Config, error)

func newIndexCmd(load loader) *cobra.Command {
	var (
		recreate bool
		fileName string
	)

	cmd := &cobra.Command{
		Use:   "index [dir]",
		Short: "Create the chunk table and index every document in dir",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := defaultDir
			if len(args) == 1 {
				dir = args[0]
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			return runIndex(cmd.Context(), cfg, dir, fileName, shouldRecreate(cmd))
		},
	}
	cmd.Flags().BoolVar(&recreate, "recreate", true, "Drop and recreate the chunk table before indexing (off with --file unless set)")
	cmd.Flags().StringVar(&fileName, "file", "", "Index only this file from dir")
	return cmd
}

// shouldRecreate drops the table for a full directory run by default. Adding
// a single file keeps what is already indexed unless --recreate is explicit.
func shouldRecreate(cmd *cobra.Command) bool {
	flags := cmd.Flags()
	recreate, _ := flags.GetBool("recreate")
	fileName, _ := flags.GetString("file")
	if fileName != "" && !flags.Changed("recreate") {
		return false
	}
	return recreate
}

func runIndex(ctx context.Context, cfg *config.Config, dir, fileName string, recreate bool) error {
	store, chromem, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return fmt.Errorf("error initializing embedder: %w", err)
	}

	indexer := rag.NewIndexer(cfg.RAG, store, embedder)
	if recreate {
		if err := indexer.CreateTable(ctx); err != nil {
			return err
		}
	}

	if fileName != "" {
		n, err := indexer.IndexFile(ctx, dir, fileName)
		if err != nil {
			return err
		}
		log.Info().Str("file", fileName).Int("chunks", n).Msg("Indexed file")
	} else {
		report, err := indexer.IndexDirectory(ctx, dir)
		log.Info().Int("files", len(report.Files)).Int("failed", report.Failed()).Int("chunks", report.Chunks()).Msg("Indexing finished")
		if err != nil {
			return err
		}
	}

	if chromem != nil && cfg.Chromem.EncryptionKey != "" {
		if err := chromem.Export(ctx); err != nil {
			return fmt.Errorf("error exporting collection: %w", err)
		}
	}
	return nil
}

func newQueryCmd(load loader) *cobra.Command {
	var (
		query    string
		k        int
		noAnswer bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Search the indexed chunks and answer the query with them as context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if query == "" {
				query, err = promptQuery(cmd)
				if err != nil {
					return err
				}
			}
			if k <= 0 {
				k = cfg.RAG.TopK
			}
			return runQuery(cmd.Context(), cfg, query, k, noAnswer)
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "Query text; read from stdin when empty")
	cmd.Flags().IntVar(&k, "k", 0, "Number of chunks to retrieve (defaults to rag.top_k)")
	cmd.Flags().BoolVar(&noAnswer, "no-answer", false, "Only print the retrieved chunks")
	return cmd
}

func promptQuery(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "Enter your query: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("error reading query: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func runQuery(ctx context.Context, cfg *config.Config, query string, k int, noAnswer bool) error {
	store, chromem, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if chromem != nil && cfg.Chromem.InMemory && cfg.Chromem.EncryptionKey != "" {
		if err := chromem.Import(ctx); err != nil {
			return fmt.Errorf("error importing collection: %w", err)
		}
	}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return fmt.Errorf("error initializing embedder: %w", err)
	}
	retriever := rag.NewRetriever(cfg.RAG, store, embedder)

	if noAnswer {
		results, err := retriever.Retrieve(ctx, query, k)
		if err != nil {
			return err
		}
		printResults(os.Stdout, results)
		return nil
	}

	llm, err := llmservice.NewLLM(&cfg.InferenceLLM)
	if err != nil {
		return fmt.Errorf("error initializing llm: %w", err)
	}
	response, err := rag.NewRAG(retriever, llm, k).Query(ctx, query)
	if err != nil {
		return err
	}
	printResults(os.Stdout, response.Results)
	printAnswer(os.Stdout, response.Content)
	return nil
}

func newChunksCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "chunks <file>",
		Short: "Print the page chunks extracted from a file without embedding them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			doc, err := parser.Open(filepath.Clean(args[0]))
			if err != nil {
				return err
			}
			defer doc.Close()

			pages, err := parser.NewSplitter(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap).ExtractPageChunks(doc)
			if err != nil {
				return err
			}
			helper.PrettyPrint(pages)
			return nil
		},
	}
}

// openStore builds the configured backend. The chromem manager is returned
// separately as well since it can export and import its collection.
func openStore(ctx context.Context, cfg *config.Config) (rag.Store, *chromemdb.VectorDBManager, error) {
	switch cfg.Store {
	case config.StoreChromem:
		m, err := chromemdb.NewVectorDBManager(cfg.Chromem, cfg.RAG.Table)
		if err != nil {
			return nil, nil, err
		}
		return m, m, nil
	case config.StoreQdrant:
		s, err := qdrantdb.NewStore(cfg.Qdrant, cfg.RAG)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	default:
		sqldb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("error connecting to database: %w", err)
		}
		bunDB := db.NewDB(sqldb, cfg.Database.Debug)
		if err := db.EnableVector(ctx, bunDB); err != nil {
			bunDB.Close()
			return nil, nil, err
		}
		return db.NewStore(bunDB, cfg.RAG), nil, nil
	}
}

package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"regexp"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StorePostgres = "postgres"
	StoreChromem  = "chromem"
	StoreQdrant   = "qdrant"

	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	DriverPgdriver = "pgdriver"
	DriverPq       = "postgres"
)

const (
	defaultTable        = "rag_testing"
	defaultChunkSize    = 1500
	defaultChunkOverlap = 100
	defaultDimension    = 768
	defaultTopK         = 3
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

type Config struct {
	LogLevel     string         `yaml:"log_level"`
	Store        string         `yaml:"store"`
	Database     DatabaseConfig `yaml:"database"`
	Chromem      ChromemConfig  `yaml:"chromem"`
	Qdrant       QdrantConfig   `yaml:"qdrant"`
	EmbedLLM     LLMConfig      `yaml:"embed_llm"`
	InferenceLLM LLMConfig      `yaml:"inference_llm"`
	RAG          RAGConfig      `yaml:"rag"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	Debug    bool   `yaml:"debug"`
}

// DSN renders the postgres connection URL
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.User(d.User),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	}
	return u.String()
}

type ChromemConfig struct {
	Path          string `yaml:"path"`
	InMemory      bool   `yaml:"in_memory"`
	Compress      bool   `yaml:"compress"`
	EncryptionKey string `yaml:"encryption_key"`
}

type QdrantConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	Key      string `yaml:"key"`
}

// RAGConfig is the fixed option set shared by the indexer and the retriever.
// It is passed by value and never changed after Validate succeeds.
type RAGConfig struct {
	Table        string `yaml:"table"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	Dimension    int    `yaml:"dimension"`
	TopK         int    `yaml:"top_k"`
	StopOnError  bool   `yaml:"stop_on_error"`
}

// Validate checks the options. The table name ends up inside SQL statements
// so it has to be a plain identifier.
func (r RAGConfig) Validate() error {
	if !tableNameRe.MatchString(r.Table) {
		return fmt.Errorf("invalid table name %q", r.Table)
	}
	if r.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", r.ChunkSize)
	}
	if r.ChunkOverlap < 0 || r.ChunkOverlap >= r.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, %d), got %d", r.ChunkSize, r.ChunkOverlap)
	}
	if r.Dimension <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", r.Dimension)
	}
	if r.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", r.TopK)
	}
	return nil
}

func DefaultRAGConfig() RAGConfig {
	return RAGConfig{
		Table:        defaultTable,
		ChunkSize:    defaultChunkSize,
		ChunkOverlap: defaultChunkOverlap,
		Dimension:    defaultDimension,
		TopK:         defaultTopK,
	}
}

func defaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Store:    StorePostgres,
		Database: DatabaseConfig{
			Driver:  DriverPgdriver,
			Host:    "localhost",
			Port:    5432,
			Name:    "postgres",
			User:    "postgres",
			SSLMode: "disable",
		},
		Chromem: ChromemConfig{Path: "./chromemdb"},
		Qdrant:  QdrantConfig{Host: "localhost", Port: 6334},
		EmbedLLM: LLMConfig{
			Provider: ProviderOllama,
			BaseURL:  "http://localhost:11434",
			Model:    "nomic-embed-text",
		},
		InferenceLLM: LLMConfig{
			Provider: ProviderOllama,
			BaseURL:  "http://localhost:11434",
			Model:    "llama3.2",
		},
		RAG: DefaultRAGConfig(),
	}
}

// LoadConfig reads the YAML file at path on top of the defaults, applies
// environment overrides (a .env file is loaded first when present) and
// validates the result. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	_ = godotenv.Load()
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres, StoreChromem, StoreQdrant:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	switch c.Database.Driver {
	case DriverPgdriver, DriverPq:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	// chromem encrypts exports with AES-256
	if k := c.Chromem.EncryptionKey; k != "" && len(k) != 32 {
		return fmt.Errorf("chromem encryption_key must be 32 bytes, got %d", len(k))
	}
	for _, p := range []string{c.EmbedLLM.Provider, c.InferenceLLM.Provider} {
		if p != ProviderOllama && p != ProviderOpenAI {
			return fmt.Errorf("unknown llm provider %q", p)
		}
	}
	return c.RAG.Validate()
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DB_PORT %q: %w", v, err)
		}
		cfg.Database.Port = port
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("EMBED_API_KEY"); v != "" {
		cfg.EmbedLLM.Key = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.InferenceLLM.Key = v
	}
	return nil
}

// Package config loads and validates sentinel-rag configuration.
//
// Configuration is applied in order of increasing precedence:
//  1. Hardcoded defaults
//  2. Config file (sentinel.yaml)
//  3. Environment variables (SENTINEL_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	sentinelerrors "github.com/RajeshTechForge/sentinel-rag/internal/errors"
)

// Config represents the complete sentinel-rag configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Access     AccessConfig     `yaml:"access" json:"access"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// PathsConfig configures on-disk data locations.
type PathsConfig struct {
	// DataDir is the root directory for all persistent state.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// MetadataDB is the SQLite metadata database path (default: <data_dir>/metadata.db).
	MetadataDB string `yaml:"metadata_db" json:"metadata_db"`
	// VectorIndex is the HNSW vector index path (default: <data_dir>/vectors.hnsw).
	VectorIndex string `yaml:"vector_index" json:"vector_index"`
	// KeywordIndex is the keyword index base path without extension
	// (default: <data_dir>/keyword). The backend appends .db or .bleve.
	KeywordIndex string `yaml:"keyword_index" json:"keyword_index"`
	// AuditDB is the query audit database path (default: <data_dir>/audit.db).
	AuditDB string `yaml:"audit_db" json:"audit_db"`
}

// ChunkingConfig configures the document chunk hierarchy.
// Parent chunks provide generation context; child chunks are the
// retrieval granule. Flat settings apply when hierarchy is disabled.
type ChunkingConfig struct {
	ParentChunkSize int `yaml:"parent_chunk_size" json:"parent_chunk_size"`
	ParentOverlap   int `yaml:"parent_overlap" json:"parent_overlap"`
	ChildChunkSize  int `yaml:"child_chunk_size" json:"child_chunk_size"`
	ChildOverlap    int `yaml:"child_overlap" json:"child_overlap"`
	FlatChunkSize   int `yaml:"flat_chunk_size" json:"flat_chunk_size"`
	FlatOverlap     int `yaml:"flat_overlap" json:"flat_overlap"`
}

// RetrievalConfig configures hybrid search and rank fusion.
type RetrievalConfig struct {
	// RRFConstant is the reciprocal rank fusion smoothing parameter (k).
	// Default: 60 (industry standard used by Azure AI Search, OpenSearch).
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// SimilarityThreshold excludes vector hits scoring below this value (0-1).
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`

	// MaxCandidatesPerModality caps results requested from each store.
	MaxCandidatesPerModality int `yaml:"max_candidates_per_modality" json:"max_candidates_per_modality"`

	// SearchTimeout is the per-query time budget (e.g. "5s").
	SearchTimeout string `yaml:"search_timeout" json:"search_timeout"`

	// ParentAggregation selects how children's fused scores roll up to the
	// parent: "max" (default) or "sum".
	ParentAggregation string `yaml:"parent_aggregation" json:"parent_aggregation"`

	// KeywordBackend selects the keyword index backend.
	// Options: "sqlite" (default, FTS5 with concurrent access) or "bleve".
	KeywordBackend string `yaml:"keyword_backend" json:"keyword_backend"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`

	// OllamaHost is the Ollama API endpoint (default: http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	// CacheSize is the query-embedding LRU cache capacity (0 disables).
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// AccessConfig configures the RBAC access matrix.
type AccessConfig struct {
	// MatrixPath is the YAML file defining classification -> department -> roles.
	MatrixPath string `yaml:"matrix_path" json:"matrix_path"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: defaultDataDir(),
		},
		Chunking: ChunkingConfig{
			ParentChunkSize: 2000,
			ParentOverlap:   200,
			ChildChunkSize:  400,
			ChildOverlap:    50,
			FlatChunkSize:   1000,
			FlatOverlap:     100,
		},
		Retrieval: RetrievalConfig{
			RRFConstant:              60,
			SimilarityThreshold:      0.4,
			MaxCandidatesPerModality: 20,
			SearchTimeout:            "5s",
			ParentAggregation:        "max",
			KeywordBackend:           "sqlite",
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "", // Empty triggers auto-detection: Ollama -> Static
			Model:      "nomic-embed-text",
			Dimensions: 0, // Auto-detect from embedder
			BatchSize:  32,
			OllamaHost: "", // Empty uses default http://localhost:11434
			CacheSize:  1000,
		},
		Access: AccessConfig{
			MatrixPath: "",
		},
		Logging: LoggingConfig{
			Level:    "info",
			FilePath: "",
		},
	}
}

// defaultDataDir returns the default data directory (~/.sentinel-rag).
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".sentinel-rag")
	}
	return filepath.Join(home, ".sentinel-rag")
}

// Load loads configuration from the given file path. An empty path loads
// defaults plus environment overrides. The final config is always validated.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyPathDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sentinelerrors.New(sentinelerrors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file not found: %s", path), err)
		}
		return sentinelerrors.ConfigError(fmt.Sprintf("failed to read config file %s", path), err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return sentinelerrors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Paths
	if other.Paths.DataDir != "" {
		c.Paths.DataDir = other.Paths.DataDir
	}
	if other.Paths.MetadataDB != "" {
		c.Paths.MetadataDB = other.Paths.MetadataDB
	}
	if other.Paths.VectorIndex != "" {
		c.Paths.VectorIndex = other.Paths.VectorIndex
	}
	if other.Paths.KeywordIndex != "" {
		c.Paths.KeywordIndex = other.Paths.KeywordIndex
	}
	if other.Paths.AuditDB != "" {
		c.Paths.AuditDB = other.Paths.AuditDB
	}

	// Chunking
	if other.Chunking.ParentChunkSize != 0 {
		c.Chunking.ParentChunkSize = other.Chunking.ParentChunkSize
	}
	if other.Chunking.ParentOverlap != 0 {
		c.Chunking.ParentOverlap = other.Chunking.ParentOverlap
	}
	if other.Chunking.ChildChunkSize != 0 {
		c.Chunking.ChildChunkSize = other.Chunking.ChildChunkSize
	}
	if other.Chunking.ChildOverlap != 0 {
		c.Chunking.ChildOverlap = other.Chunking.ChildOverlap
	}
	if other.Chunking.FlatChunkSize != 0 {
		c.Chunking.FlatChunkSize = other.Chunking.FlatChunkSize
	}
	if other.Chunking.FlatOverlap != 0 {
		c.Chunking.FlatOverlap = other.Chunking.FlatOverlap
	}

	// Retrieval
	if other.Retrieval.RRFConstant != 0 {
		c.Retrieval.RRFConstant = other.Retrieval.RRFConstant
	}
	if other.Retrieval.SimilarityThreshold != 0 {
		c.Retrieval.SimilarityThreshold = other.Retrieval.SimilarityThreshold
	}
	if other.Retrieval.MaxCandidatesPerModality != 0 {
		c.Retrieval.MaxCandidatesPerModality = other.Retrieval.MaxCandidatesPerModality
	}
	if other.Retrieval.SearchTimeout != "" {
		c.Retrieval.SearchTimeout = other.Retrieval.SearchTimeout
	}
	if other.Retrieval.ParentAggregation != "" {
		c.Retrieval.ParentAggregation = other.Retrieval.ParentAggregation
	}
	if other.Retrieval.KeywordBackend != "" {
		c.Retrieval.KeywordBackend = other.Retrieval.KeywordBackend
	}

	// Embeddings
	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	// Access
	if other.Access.MatrixPath != "" {
		c.Access.MatrixPath = other.Access.MatrixPath
	}

	// Logging
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.FilePath != "" {
		c.Logging.FilePath = other.Logging.FilePath
	}
}

// applyEnvOverrides applies SENTINEL_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SENTINEL_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("SENTINEL_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Retrieval.RRFConstant = k
		}
	}
	if v := os.Getenv("SENTINEL_SIMILARITY_THRESHOLD"); v != "" {
		if t, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && t >= 0 && t <= 1 {
			c.Retrieval.SimilarityThreshold = t
		}
	}
	if v := os.Getenv("SENTINEL_KEYWORD_BACKEND"); v != "" {
		c.Retrieval.KeywordBackend = v
	}
	if v := os.Getenv("SENTINEL_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("SENTINEL_EMBED_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("SENTINEL_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("SENTINEL_ACCESS_MATRIX"); v != "" {
		c.Access.MatrixPath = v
	}
	if v := os.Getenv("SENTINEL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// applyPathDefaults fills store paths derived from DataDir.
func (c *Config) applyPathDefaults() {
	if c.Paths.MetadataDB == "" {
		c.Paths.MetadataDB = filepath.Join(c.Paths.DataDir, "metadata.db")
	}
	if c.Paths.VectorIndex == "" {
		c.Paths.VectorIndex = filepath.Join(c.Paths.DataDir, "vectors.hnsw")
	}
	if c.Paths.KeywordIndex == "" {
		c.Paths.KeywordIndex = filepath.Join(c.Paths.DataDir, "keyword")
	}
	if c.Paths.AuditDB == "" {
		c.Paths.AuditDB = filepath.Join(c.Paths.DataDir, "audit.db")
	}
}

// SearchTimeoutDuration parses the search timeout, falling back to 5s.
func (c *Config) SearchTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Retrieval.SearchTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// Validate validates the configuration and returns a ConfigError if invalid.
// Chunk geometry is validated up front so a bad config fails before any
// document is split.
func (c *Config) Validate() error {
	ch := c.Chunking
	if ch.ChildChunkSize <= 0 {
		return sentinelerrors.ChunkConfigError(
			fmt.Sprintf("child_chunk_size must be positive, got %d", ch.ChildChunkSize), nil)
	}
	if ch.ParentChunkSize <= ch.ChildChunkSize {
		return sentinelerrors.ChunkConfigError(
			fmt.Sprintf("parent_chunk_size (%d) must exceed child_chunk_size (%d)",
				ch.ParentChunkSize, ch.ChildChunkSize), nil)
	}
	if ch.ParentOverlap < 0 || ch.ParentOverlap >= ch.ParentChunkSize {
		return sentinelerrors.ChunkConfigError(
			fmt.Sprintf("parent_overlap must be in [0, %d), got %d", ch.ParentChunkSize, ch.ParentOverlap), nil)
	}
	if ch.ChildOverlap < 0 || ch.ChildOverlap >= ch.ChildChunkSize {
		return sentinelerrors.ChunkConfigError(
			fmt.Sprintf("child_overlap must be in [0, %d), got %d", ch.ChildChunkSize, ch.ChildOverlap), nil)
	}
	if ch.FlatChunkSize <= 0 {
		return sentinelerrors.ChunkConfigError(
			fmt.Sprintf("flat_chunk_size must be positive, got %d", ch.FlatChunkSize), nil)
	}
	if ch.FlatOverlap < 0 || ch.FlatOverlap >= ch.FlatChunkSize {
		return sentinelerrors.ChunkConfigError(
			fmt.Sprintf("flat_overlap must be in [0, %d), got %d", ch.FlatChunkSize, ch.FlatOverlap), nil)
	}

	if c.Retrieval.RRFConstant <= 0 {
		return sentinelerrors.ConfigError(
			fmt.Sprintf("rrf_constant must be positive, got %d", c.Retrieval.RRFConstant), nil)
	}
	if c.Retrieval.SimilarityThreshold < 0 || c.Retrieval.SimilarityThreshold > 1 {
		return sentinelerrors.ConfigError(
			fmt.Sprintf("similarity_threshold must be between 0 and 1, got %f", c.Retrieval.SimilarityThreshold), nil)
	}
	if c.Retrieval.MaxCandidatesPerModality <= 0 {
		return sentinelerrors.ConfigError(
			fmt.Sprintf("max_candidates_per_modality must be positive, got %d", c.Retrieval.MaxCandidatesPerModality), nil)
	}
	if _, err := time.ParseDuration(c.Retrieval.SearchTimeout); err != nil {
		return sentinelerrors.ConfigError(
			fmt.Sprintf("search_timeout is not a valid duration: %s", c.Retrieval.SearchTimeout), err)
	}

	switch strings.ToLower(c.Retrieval.ParentAggregation) {
	case "max", "sum":
	default:
		return sentinelerrors.ConfigError(
			fmt.Sprintf("parent_aggregation must be 'max' or 'sum', got %s", c.Retrieval.ParentAggregation), nil)
	}

	switch strings.ToLower(c.Retrieval.KeywordBackend) {
	case "sqlite", "bleve":
	default:
		return sentinelerrors.ConfigError(
			fmt.Sprintf("keyword_backend must be 'sqlite' or 'bleve', got %s", c.Retrieval.KeywordBackend), nil)
	}

	if c.Embeddings.Provider != "" {
		validProviders := map[string]bool{"ollama": true, "static": true}
		if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
			return sentinelerrors.ConfigError(
				fmt.Sprintf("embeddings.provider must be 'ollama', 'static', or empty (auto-detect), got %s",
					c.Embeddings.Provider), nil)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return sentinelerrors.ConfigError(
			fmt.Sprintf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level), nil)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// KeywordBackend represents the keyword index backend type.
type KeywordBackend string

const (
	// KeywordBackendSQLite uses SQLite FTS5 (default).
	// Enables concurrent multi-process access via WAL mode.
	KeywordBackendSQLite KeywordBackend = "sqlite"

	// KeywordBackendBleve uses Bleve v2.
	// Has exclusive file locking via BoltDB - single process only.
	KeywordBackendBleve KeywordBackend = "bleve"
)

// NewKeywordIndexWithBackend creates a KeywordIndex using the specified
// backend. The path should be the base path without extension; the
// extension is added per backend (.db for SQLite, .bleve for Bleve).
// If basePath is empty, creates an in-memory index for testing.
func NewKeywordIndexWithBackend(basePath string, config KeywordConfig, backend string) (KeywordIndex, error) {
	switch backend {
	case string(KeywordBackendSQLite), "":
		var path string
		if basePath != "" {
			path = basePath + ".db"
		}
		return NewSQLiteKeywordIndex(path, config)

	case string(KeywordBackendBleve):
		var path string
		if basePath != "" {
			path = basePath + ".bleve"
		}
		return NewBleveKeywordIndex(path, config)

	default:
		return nil, fmt.Errorf("unknown keyword backend: %s (valid options: sqlite, bleve)", backend)
	}
}

// DetectKeywordBackend detects which backend an existing index uses
// based on file existence. Returns an empty string if no index exists.
func DetectKeywordBackend(basePath string) KeywordBackend {
	if fileExists(basePath + ".db") {
		return KeywordBackendSQLite
	}
	if dirExists(basePath + ".bleve") {
		return KeywordBackendBleve
	}
	return ""
}

// GetKeywordIndexPath returns the full path to the keyword index
// file/directory based on the backend type.
func GetKeywordIndexPath(dataDir string, backend string) string {
	basePath := filepath.Join(dataDir, "keyword")
	switch backend {
	case string(KeywordBackendBleve):
		return basePath + ".bleve"
	default:
		return basePath + ".db"
	}
}

// fileExists checks if a file exists at the given path.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// dirExists checks if a directory exists at the given path.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/RajeshTechForge/sentinel-rag/internal/access"
)

// SQLiteKeywordIndex implements KeywordIndex using SQLite FTS5 with
// WAL mode for concurrent access. The access filter is pushed down
// into the SQL WHERE clause, so denied chunks never leave the store.
type SQLiteKeywordIndex struct {
	mu        sync.RWMutex
	db        *sql.DB
	path      string
	config    KeywordConfig
	closed    bool
	stopWords map[string]struct{}
}

// Verify interface implementation at compile time
var _ KeywordIndex = (*SQLiteKeywordIndex)(nil)

// validateSQLiteIntegrity checks if a SQLite FTS5 index is valid before
// opening. Returns nil if valid, error describing corruption if not.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Database doesn't exist, will be created
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
                       WHERE type='table' AND name='fts_chunks'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("FTS5 table 'fts_chunks' missing")
	}

	return nil
}

// NewSQLiteKeywordIndex creates a new SQLite FTS5-based keyword index.
// If path is empty, creates an in-memory index for testing.
func NewSQLiteKeywordIndex(path string, config KeywordConfig) (*SQLiteKeywordIndex, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validateSQLiteIntegrity(path); validErr != nil {
			slog.Warn("keyword_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			// Auto-clear corrupted index
			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, fmt.Errorf("keyword index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")

			slog.Info("keyword_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reindex"))
		}

		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	idx := &SQLiteKeywordIndex{
		db:        db,
		path:      path,
		config:    config,
		stopWords: BuildStopWordMap(config.StopWords),
	}

	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return idx, nil
}

// initSchema creates the FTS5 virtual table and supporting tables.
func (s *SQLiteKeywordIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- FTS5 virtual table with BM25 scoring. chunk_id, department, and
	-- classification are UNINDEXED: stored and filterable but not part
	-- of the full-text search.
	CREATE VIRTUAL TABLE IF NOT EXISTS fts_chunks USING fts5(
		chunk_id UNINDEXED,
		content,
		department UNINDEXED,
		classification UNINDEXED,
		tokenize='unicode61'
	);

	-- Auxiliary table for tracking chunk IDs (AllIDs method).
	-- FTS5 doesn't expose rowid reliably for external content tables.
	CREATE TABLE IF NOT EXISTS chunk_ids (
		chunk_id TEXT PRIMARY KEY
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Index adds entries to the index. Existing IDs are replaced.
func (s *SQLiteKeywordIndex) Index(ctx context.Context, entries []*IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// FTS5 virtual tables don't support REPLACE, so delete first
	deleteStmt, err := tx.PrepareContext(ctx,
		`DELETE FROM fts_chunks WHERE chunk_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}
	defer deleteStmt.Close()

	insertStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fts_chunks(chunk_id, content, department, classification) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare FTS statement: %w", err)
	}
	defer insertStmt.Close()

	idStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO chunk_ids(chunk_id) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare ID statement: %w", err)
	}
	defer idStmt.Close()

	for _, entry := range entries {
		tokens := TokenizeText(entry.Content)
		tokens = FilterStopWords(tokens, s.stopWords)
		processedContent := strings.Join(tokens, " ")

		if _, err := deleteStmt.ExecContext(ctx, entry.ChunkID); err != nil {
			return fmt.Errorf("failed to delete existing chunk %s: %w", entry.ChunkID, err)
		}
		if _, err := insertStmt.ExecContext(ctx, entry.ChunkID, processedContent,
			entry.Department, entry.Classification); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", entry.ChunkID, err)
		}
		if _, err := idStmt.ExecContext(ctx, entry.ChunkID); err != nil {
			return fmt.Errorf("failed to track chunk ID %s: %w", entry.ChunkID, err)
		}
	}

	return tx.Commit()
}

// Search returns chunks matching the query, scored by BM25 and
// restricted to the filter's allowed pairs.
func (s *SQLiteKeywordIndex) Search(ctx context.Context, queryStr string, limit int, filter *access.Filter) ([]*KeywordResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}

	if filter != nil && filter.IsEmpty() {
		return []*KeywordResult{}, nil
	}

	if strings.TrimSpace(queryStr) == "" {
		return []*KeywordResult{}, nil
	}

	tokens := TokenizeText(queryStr)
	tokens = FilterStopWords(tokens, s.stopWords)
	if len(tokens) == 0 {
		return []*KeywordResult{}, nil
	}

	// FTS5 treats space-separated terms as AND by default; OR keeps
	// partial matches in play for rank fusion.
	processedQuery := strings.Join(tokens, " OR ")

	// FTS5 bm25() returns negative values where lower = better match.
	// chunk_id breaks score ties for deterministic ordering.
	query := `
		SELECT chunk_id, bm25(fts_chunks) as score
		FROM fts_chunks
		WHERE content MATCH ?`
	args := []any{processedQuery}

	if filter != nil {
		clause, filterArgs := filterClause(filter)
		query += " AND " + clause
		args = append(args, filterArgs...)
	}

	query += `
		ORDER BY score, chunk_id
		LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		// FTS5 returns an error for invalid match queries, treat as no results
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return []*KeywordResult{}, nil
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var results []*KeywordResult
	for rows.Next() {
		var chunkID string
		var score float64
		if err := rows.Scan(&chunkID, &score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		// Negate: FTS5 bm25() is negative, higher positive = better
		results = append(results, &KeywordResult{
			ChunkID:      chunkID,
			Score:        -score,
			MatchedTerms: tokens,
		})
	}

	return results, rows.Err()
}

// filterClause builds a WHERE fragment matching any of the filter's
// allowed (department, classification) pairs.
func filterClause(filter *access.Filter) (string, []any) {
	pairs := filter.Pairs()
	clauses := make([]string, len(pairs))
	args := make([]any, 0, len(pairs)*2)
	for i, p := range pairs {
		clauses[i] = "(department = ? AND classification = ?)"
		args = append(args, p.Department, p.Classification)
	}
	return "(" + strings.Join(clauses, " OR ") + ")", args
}

// Delete removes chunks from the index.
func (s *SQLiteKeywordIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	inClause := strings.Join(placeholders, ",")

	ftsQuery := fmt.Sprintf("DELETE FROM fts_chunks WHERE chunk_id IN (%s)", inClause)
	if _, err := tx.ExecContext(ctx, ftsQuery, args...); err != nil {
		return fmt.Errorf("failed to delete from FTS: %w", err)
	}

	idsQuery := fmt.Sprintf("DELETE FROM chunk_ids WHERE chunk_id IN (%s)", inClause)
	if _, err := tx.ExecContext(ctx, idsQuery, args...); err != nil {
		return fmt.Errorf("failed to delete from chunk_ids: %w", err)
	}

	return tx.Commit()
}

// AllIDs returns all chunk IDs in the index.
func (s *SQLiteKeywordIndex) AllIDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}

	rows, err := s.db.Query(`SELECT chunk_id FROM chunk_ids ORDER BY chunk_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query IDs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan ID: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Count returns the number of indexed chunks.
func (s *SQLiteKeywordIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM chunk_ids`).Scan(&count); err != nil {
		return 0
	}
	return count
}

// Save forces a WAL checkpoint to ensure durability.
func (s *SQLiteKeywordIndex) Save(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}

	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// Close checkpoints the WAL and closes the index. Idempotent.
func (s *SQLiteKeywordIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/RajeshTechForge/sentinel-rag/internal/chunk"
	sentinelerrors "github.com/RajeshTechForge/sentinel-rag/internal/errors"
)

// SQLiteStore implements MetadataStore on SQLite with WAL mode.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Verify interface implementation at compile time
var _ MetadataStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a metadata store at path. An empty
// path creates an in-memory store for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, sentinelerrors.StorageError(fmt.Sprintf("failed to create directory %s", dir), err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, sentinelerrors.StorageError("failed to open metadata database", err)
	}

	// Single writer prevents lock contention under SQLite
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
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, sentinelerrors.StorageError("failed to set pragma", err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, sentinelerrors.StorageError("failed to initialize schema", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS documents (
		id             TEXT PRIMARY KEY,
		title          TEXT NOT NULL,
		department     TEXT NOT NULL,
		classification TEXT NOT NULL,
		metadata       TEXT NOT NULL DEFAULT '{}',
		chunk_count    INTEGER NOT NULL DEFAULT 0,
		created_at     TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id          TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		parent_id   TEXT,
		kind        TEXT NOT NULL,
		ordinal     INTEGER NOT NULL,
		content     TEXT NOT NULL,
		start_pos   INTEGER NOT NULL,
		end_pos     INTEGER NOT NULL,
		created_at  TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_parent ON chunks(parent_id);

	CREATE TABLE IF NOT EXISTS state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveHierarchy persists a document and its chunks in one transaction.
// The chunk set is validated first: every child must reference a parent
// chunk of the same document that is part of the same batch.
func (s *SQLiteStore) SaveHierarchy(ctx context.Context, doc *Document, chunks []*chunk.Chunk) error {
	if doc == nil {
		return sentinelerrors.ValidationError("document is nil", nil)
	}
	if doc.ID == "" || doc.Department == "" || doc.Classification == "" {
		return sentinelerrors.ValidationError("document requires id, department, and classification", nil)
	}
	if err := validateHierarchy(doc.ID, chunks); err != nil {
		return err
	}

	metaJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return sentinelerrors.ValidationError("document metadata is not serializable", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return sentinelerrors.StorageError("metadata store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sentinelerrors.StorageError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, title, department, classification, metadata, chunk_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Title, doc.Department, doc.Classification, string(metaJSON), len(chunks), createdAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return sentinelerrors.IngestError(fmt.Sprintf("document %s already exists", doc.ID), err)
		}
		return sentinelerrors.StorageError("failed to insert document", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, document_id, parent_id, kind, ordinal, content, start_pos, end_pos, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return sentinelerrors.StorageError("failed to prepare chunk insert", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		var parentID any
		if c.ParentID != "" {
			parentID = c.ParentID
		}
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.DocumentID, parentID, string(c.Kind), c.Ordinal, c.Content, c.Start, c.End, c.CreatedAt); err != nil {
			return sentinelerrors.StorageError(fmt.Sprintf("failed to insert chunk %s", c.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return sentinelerrors.StorageError("failed to commit hierarchy", err)
	}
	return nil
}

// validateHierarchy enforces the one-level tree invariants before any
// write: children reference in-batch parents, parents and flats carry
// no parent reference, and every chunk belongs to the document.
func validateHierarchy(docID string, chunks []*chunk.Chunk) error {
	parents := make(map[string]struct{})
	for _, c := range chunks {
		if c.Kind == chunk.KindParent {
			parents[c.ID] = struct{}{}
		}
	}

	for _, c := range chunks {
		if c.DocumentID != docID {
			return sentinelerrors.ValidationError(
				fmt.Sprintf("chunk %s belongs to document %s, not %s", c.ID, c.DocumentID, docID), nil)
		}
		switch c.Kind {
		case chunk.KindChild:
			if c.ParentID == "" {
				return sentinelerrors.ValidationError(
					fmt.Sprintf("child chunk %s has no parent reference", c.ID), nil)
			}
			if _, ok := parents[c.ParentID]; !ok {
				return sentinelerrors.ValidationError(
					fmt.Sprintf("child chunk %s references unknown parent %s", c.ID, c.ParentID), nil)
			}
		case chunk.KindParent, chunk.KindFlat:
			if c.ParentID != "" {
				return sentinelerrors.ValidationError(
					fmt.Sprintf("%s chunk %s must not have a parent reference", c.Kind, c.ID), nil)
			}
		default:
			return sentinelerrors.ValidationError(
				fmt.Sprintf("chunk %s has unknown kind %q", c.ID, c.Kind), nil)
		}
	}
	return nil
}

// GetDocument returns a document by ID.
func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, sentinelerrors.StorageError("metadata store is closed", nil)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, department, classification, metadata, chunk_count, created_at
		 FROM documents WHERE id = ?`, id)
	return scanDocument(row, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner, id string) (*Document, error) {
	var doc Document
	var metaJSON string
	err := row.Scan(&doc.ID, &doc.Title, &doc.Department, &doc.Classification,
		&metaJSON, &doc.ChunkCount, &doc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, sentinelerrors.New(sentinelerrors.ErrCodeDocumentNotFound,
			fmt.Sprintf("document not found: %s", id), nil)
	}
	if err != nil {
		return nil, sentinelerrors.StorageError("failed to read document", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &doc.Metadata); err != nil {
		return nil, sentinelerrors.StorageError("failed to decode document metadata", err)
	}
	return &doc, nil
}

// ListDocuments returns all documents ordered by creation time.
func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, sentinelerrors.StorageError("metadata store is closed", nil)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, department, classification, metadata, chunk_count, created_at
		 FROM documents ORDER BY created_at, id`)
	if err != nil {
		return nil, sentinelerrors.StorageError("failed to list documents", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		var doc Document
		var metaJSON string
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Department, &doc.Classification,
			&metaJSON, &doc.ChunkCount, &doc.CreatedAt); err != nil {
			return nil, sentinelerrors.StorageError("failed to scan document", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &doc.Metadata); err != nil {
			return nil, sentinelerrors.StorageError("failed to decode document metadata", err)
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document and its chunks, returning the
// deleted chunk IDs for index eviction.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, sentinelerrors.StorageError("metadata store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, sentinelerrors.StorageError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM chunks WHERE document_id = ?`, id)
	if err != nil {
		return nil, sentinelerrors.StorageError("failed to list document chunks", err)
	}
	var chunkIDs []string
	for rows.Next() {
		var cid string
		if err := rows.Scan(&cid); err != nil {
			rows.Close()
			return nil, sentinelerrors.StorageError("failed to scan chunk id", err)
		}
		chunkIDs = append(chunkIDs, cid)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, sentinelerrors.StorageError("failed to read chunk ids", err)
	}
	rows.Close()

	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return nil, sentinelerrors.StorageError("failed to delete document", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return nil, sentinelerrors.New(sentinelerrors.ErrCodeDocumentNotFound,
			fmt.Sprintf("document not found: %s", id), nil)
	}

	// ON DELETE CASCADE removes the chunks; the explicit delete covers
	// databases created before foreign keys were enabled.
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, id); err != nil {
		return nil, sentinelerrors.StorageError("failed to delete chunks", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, sentinelerrors.StorageError("failed to commit delete", err)
	}
	return chunkIDs, nil
}

// GetChunk returns a chunk by ID.
func (s *SQLiteStore) GetChunk(ctx context.Context, id string) (*chunk.Chunk, error) {
	chunks, err := s.GetChunks(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, sentinelerrors.StorageError(fmt.Sprintf("chunk not found: %s", id), nil)
	}
	return chunks[0], nil
}

// GetChunks returns chunks by ID in one query. Missing IDs are skipped.
func (s *SQLiteStore) GetChunks(ctx context.Context, ids []string) ([]*chunk.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, sentinelerrors.StorageError("metadata store is closed", nil)
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(
		`SELECT id, document_id, parent_id, kind, ordinal, content, start_pos, end_pos, created_at
		 FROM chunks WHERE id IN (%s)`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sentinelerrors.StorageError("failed to query chunks", err)
	}
	defer rows.Close()

	byID := make(map[string]*chunk.Chunk, len(ids))
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, sentinelerrors.StorageError("failed to read chunks", err)
	}

	// Preserve the caller's ordering
	chunks := make([]*chunk.Chunk, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			chunks = append(chunks, c)
		}
	}
	return chunks, nil
}

// GetChunksByDocument returns a document's chunks ordered by kind and
// ordinal.
func (s *SQLiteStore) GetChunksByDocument(ctx context.Context, docID string) ([]*chunk.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, sentinelerrors.StorageError("metadata store is closed", nil)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, parent_id, kind, ordinal, content, start_pos, end_pos, created_at
		 FROM chunks WHERE document_id = ? ORDER BY kind, ordinal`, docID)
	if err != nil {
		return nil, sentinelerrors.StorageError("failed to query document chunks", err)
	}
	defer rows.Close()

	var chunks []*chunk.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func scanChunk(rows *sql.Rows) (*chunk.Chunk, error) {
	var c chunk.Chunk
	var parentID sql.NullString
	var kind string
	if err := rows.Scan(&c.ID, &c.DocumentID, &parentID, &kind, &c.Ordinal,
		&c.Content, &c.Start, &c.End, &c.CreatedAt); err != nil {
		return nil, sentinelerrors.StorageError("failed to scan chunk", err)
	}
	c.ParentID = parentID.String
	c.Kind = chunk.Kind(kind)
	return &c, nil
}

// ListLeafChunks returns all child and flat chunks joined with their
// document's access attributes, for index rebuilds.
func (s *SQLiteStore) ListLeafChunks(ctx context.Context) ([]*IndexEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, sentinelerrors.StorageError("metadata store is closed", nil)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.content, d.department, d.classification
		 FROM chunks c JOIN documents d ON c.document_id = d.id
		 WHERE c.kind IN ('child', 'flat')
		 ORDER BY c.id`)
	if err != nil {
		return nil, sentinelerrors.StorageError("failed to list leaf chunks", err)
	}
	defer rows.Close()

	var entries []*IndexEntry
	for rows.Next() {
		var e IndexEntry
		if err := rows.Scan(&e.ChunkID, &e.Content, &e.Department, &e.Classification); err != nil {
			return nil, sentinelerrors.StorageError("failed to scan leaf chunk", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// GetState returns a state value, or empty string if unset.
func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", sentinelerrors.StorageError("metadata store is closed", nil)
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", sentinelerrors.StorageError("failed to read state", err)
	}
	return value, nil
}

// SetState stores a state value, replacing any existing one.
func (s *SQLiteStore) SetState(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return sentinelerrors.StorageError("metadata store is closed", nil)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO state (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return sentinelerrors.StorageError("failed to write state", err)
	}
	return nil
}

// Close checkpoints the WAL and closes the database. Idempotent.
func (s *SQLiteStore) Close() error {
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

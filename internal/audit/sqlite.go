package audit

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// defaultBufferSize is the capacity of the async event queue. When the
// queue is full new events are dropped, never blocking the caller.
const defaultBufferSize = 256

// SQLiteSink persists audit events to a local SQLite database. Writes
// happen on a background goroutine; Record only enqueues.
type SQLiteSink struct {
	db      *sql.DB
	events  chan Event
	done    chan struct{}
	dropped atomic.Int64

	// mu orders Record's channel send against Close closing the
	// channel; events arriving after shutdown are dropped, not sent.
	mu     sync.Mutex
	closed bool

	closeOnce sync.Once
	closeErr  error
}

// NewSQLiteSink opens (or creates) the audit database at path.
// An empty path uses an in-memory database.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	// Single writer goroutine, single connection
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TIMESTAMP NOT NULL,
		user_id TEXT NOT NULL,
		action TEXT NOT NULL,
		query TEXT NOT NULL DEFAULT '',
		filter TEXT NOT NULL DEFAULT '',
		document_id TEXT NOT NULL DEFAULT '',
		chunk_ids TEXT NOT NULL DEFAULT '',
		result_count INTEGER NOT NULL DEFAULT 0,
		degraded INTEGER NOT NULL DEFAULT 0,
		partial INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_audit_events_user ON audit_events(user_id);
	CREATE INDEX IF NOT EXISTS idx_audit_events_action ON audit_events(action);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}

	s := &SQLiteSink{
		db:     db,
		events: make(chan Event, defaultBufferSize),
		done:   make(chan struct{}),
	}
	go s.writeLoop()

	return s, nil
}

// Record enqueues an event. If the queue is full or the sink is already
// closed the event is dropped and counted; auditing never backs up or
// crashes the request path.
func (s *SQLiteSink) Record(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.countDrop()
		return
	}

	select {
	case s.events <- event:
		s.mu.Unlock()
	default:
		s.mu.Unlock()
		s.countDrop()
	}
}

func (s *SQLiteSink) countDrop() {
	if s.dropped.Add(1)%100 == 1 {
		slog.Warn("audit queue full, dropping events",
			slog.Int64("dropped_total", s.dropped.Load()))
	}
}

// writeLoop drains the queue until Close.
func (s *SQLiteSink) writeLoop() {
	defer close(s.done)
	for event := range s.events {
		if err := s.insert(event); err != nil {
			slog.Warn("audit write failed",
				slog.String("action", string(event.Action)),
				slog.String("error", err.Error()))
		}
	}
}

func (s *SQLiteSink) insert(event Event) error {
	_, err := s.db.Exec(`
		INSERT INTO audit_events
			(timestamp, user_id, action, query, filter, document_id, chunk_ids, result_count, degraded, partial, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, event.Timestamp, event.UserID, string(event.Action), event.Query,
		strings.Join(event.Filter, ","), event.DocumentID, strings.Join(event.ChunkIDs, ","),
		event.ResultCount, boolToInt(event.Degraded), boolToInt(event.Partial),
		event.Duration.Milliseconds())
	return err
}

// Dropped returns the number of events lost to queue overflow.
func (s *SQLiteSink) Dropped() int64 {
	return s.dropped.Load()
}

// Recent returns the most recent events, newest first.
func (s *SQLiteSink) Recent(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(`
		SELECT timestamp, user_id, action, query, filter, document_id, chunk_ids, result_count, degraded, partial, duration_ms
		FROM audit_events
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var action, filter, chunkIDs string
		var degraded, partial int
		var durationMs int64
		if err := rows.Scan(&e.Timestamp, &e.UserID, &action, &e.Query, &filter, &e.DocumentID,
			&chunkIDs, &e.ResultCount, &degraded, &partial, &durationMs); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Action = Action(action)
		e.Filter = splitJoined(filter)
		e.ChunkIDs = splitJoined(chunkIDs)
		e.Degraded = degraded != 0
		e.Partial = partial != 0
		e.Duration = time.Duration(durationMs) * time.Millisecond
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close stops accepting events, drains the queue, and closes the
// database. Safe to call more than once.
func (s *SQLiteSink) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.events)
		<-s.done
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func splitJoined(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

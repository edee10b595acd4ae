// Package audit records retrieval activity for later review. All audit
// data is stored locally. Recording is fire-and-forget: a failing sink
// never fails or slows the operation being audited.
package audit

import (
	"log/slog"
	"strings"
	"time"
)

// Action identifies the audited operation.
type Action string

const (
	ActionQuery        Action = "query"
	ActionIngest       Action = "ingest"
	ActionDelete       Action = "delete"
	ActionMatrixReload Action = "matrix_reload"
)

// Event is a single audit record.
type Event struct {
	Timestamp   time.Time
	UserID      string
	Action      Action
	Query       string   // Query text (query action only)
	Filter      []string // Applied grant pairs as "department:classification"
	DocumentID  string   // Affected document (ingest/delete actions)
	ChunkIDs    []string // Chunk ids returned to the user (query action only)
	ResultCount int
	Degraded    bool // Query served keyword-only
	Partial     bool // Candidate set was incomplete
	Duration    time.Duration
}

// Sink receives audit events. Implementations must not block the
// caller; Record is called on the request path.
type Sink interface {
	// Record submits an event. Failures are swallowed and logged.
	Record(event Event)

	// Close drains pending events and releases resources.
	Close() error
}

// LogSink writes audit events to the structured log. It is the
// fallback when no database-backed sink is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink writing to the given logger.
// A nil logger uses the default.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Record writes the event as a structured log line.
func (s *LogSink) Record(event Event) {
	s.logger.Info("audit",
		slog.String("action", string(event.Action)),
		slog.String("user_id", event.UserID),
		slog.String("query", event.Query),
		slog.String("filter", strings.Join(event.Filter, ",")),
		slog.String("document_id", event.DocumentID),
		slog.Int("result_count", event.ResultCount),
		slog.Bool("degraded", event.Degraded),
		slog.Bool("partial", event.Partial),
		slog.Duration("duration", event.Duration))
}

// Close is a no-op for the log sink.
func (s *LogSink) Close() error {
	return nil
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Record(Event) {}
func (NopSink) Close() error { return nil }

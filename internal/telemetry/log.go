// Package telemetry provides the writer side of the SQLite-backed
// LLM request/response log: one row per LLM call, keyed by event_type,
// written to the codestory.data file under the index directory.
package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS llm_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	session_id TEXT,
	exchange_id TEXT,
	provider_id TEXT,
	model_id TEXT,
	request_json TEXT NOT NULL,
	response_json TEXT,
	error TEXT,
	started_at INTEGER NOT NULL,
	ended_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_llm_log_session ON llm_log(session_id);
CREATE INDEX IF NOT EXISTS idx_llm_log_event_type ON llm_log(event_type);
`

// Log is a pooled *sql.DB over codestory.data; all writes are
// serialised by the pool.
type Log struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if necessary) the SQLite log at path.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	// SQLite allows only one writer at a time regardless of pool size;
	// pinning to a single connection avoids SQLITE_BUSY churn under
	// concurrent sessions the way storage.FileLock does
	// for its JSON store.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("telemetry: migrate schema: %w", err)
	}

	return &Log{db: db}, nil
}

// Close closes the underlying database handle.
func (l *Log) Close() error {
	return l.db.Close()
}

// Event is one row of the LLM request/response log.
type Event struct {
	EventType    string
	SessionID    string
	ExchangeID   string
	ProviderID   string
	ModelID      string
	RequestJSON  string
	ResponseJSON string
	Error        string
	StartedAt    int64
	EndedAt      int64
}

// Record inserts one event row.
func (l *Log) Record(ctx context.Context, ev Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var endedAt any
	if ev.EndedAt != 0 {
		endedAt = ev.EndedAt
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO llm_log
			(event_type, session_id, exchange_id, provider_id, model_id, request_json, response_json, error, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.EventType, ev.SessionID, ev.ExchangeID, ev.ProviderID, ev.ModelID,
		ev.RequestJSON, ev.ResponseJSON, ev.Error, ev.StartedAt, endedAt,
	)
	if err != nil {
		return fmt.Errorf("telemetry: insert event: %w", err)
	}
	return nil
}

// RecordCompletion is a convenience wrapper that stamps StartedAt/EndedAt
// around a completion call: call Begin, do the work, then call the
// returned finish function with the outcome.
func (l *Log) RecordCompletion(ctx context.Context, eventType, sessionID, exchangeID, providerID, modelID, requestJSON string) func(responseJSON, errMsg string) {
	started := time.Now().UnixMilli()
	return func(responseJSON, errMsg string) {
		_ = l.Record(ctx, Event{
			EventType:    eventType,
			SessionID:    sessionID,
			ExchangeID:   exchangeID,
			ProviderID:   providerID,
			ModelID:      modelID,
			RequestJSON:  requestJSON,
			ResponseJSON: responseJSON,
			Error:        errMsg,
			StartedAt:    started,
			EndedAt:      time.Now().UnixMilli(),
		})
	}
}

package telemetry

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	path := filepath.Join(t.TempDir(), "codestory.data")
	log, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return log
}

func TestOpen_CreatesSchema(t *testing.T) {
	log := openTestLog(t)

	var name string
	err := log.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='llm_log'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "llm_log", name)
}

func TestRecord_InsertsRow(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()

	err := log.Record(ctx, Event{
		EventType:   "completion",
		SessionID:   "sess-1",
		ExchangeID:  "exch-1",
		ProviderID:  "anthropic",
		ModelID:     "claude-sonnet",
		RequestJSON: `{"messages":[]}`,
		StartedAt:   1000,
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, log.db.QueryRow(`SELECT COUNT(*) FROM llm_log WHERE session_id = ?`, "sess-1").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestRecord_NilEndedAtStoresNull(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()

	require.NoError(t, log.Record(ctx, Event{
		EventType:   "completion",
		RequestJSON: "{}",
		StartedAt:   1,
	}))

	var endedAt sql.NullInt64
	require.NoError(t, log.db.QueryRow(`SELECT ended_at FROM llm_log LIMIT 1`).Scan(&endedAt))
	assert.False(t, endedAt.Valid)
}

func TestRecordCompletion_StampsStartAndEnd(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()

	finish := log.RecordCompletion(ctx, "completion", "sess-2", "exch-2", "openai", "gpt-5", `{"k":"v"}`)
	finish(`{"ok":true}`, "")

	var respJSON string
	var startedAt, endedAt int64
	require.NoError(t, log.db.QueryRow(
		`SELECT response_json, started_at, ended_at FROM llm_log WHERE session_id = ?`, "sess-2",
	).Scan(&respJSON, &startedAt, &endedAt))

	assert.Equal(t, `{"ok":true}`, respJSON)
	assert.GreaterOrEqual(t, endedAt, startedAt)
}

func TestRecordCompletion_CapturesError(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()

	finish := log.RecordCompletion(ctx, "completion", "sess-3", "exch-3", "anthropic", "claude", "{}")
	finish("", "provider rejected request")

	var errMsg string
	require.NoError(t, log.db.QueryRow(`SELECT error FROM llm_log WHERE session_id = ?`, "sess-3").Scan(&errMsg))
	assert.Equal(t, "provider rejected request", errMsg)
}

package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/ericogr/rfid-deck/pkg/config"
	"github.com/ericogr/rfid-deck/pkg/telemetry"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(ts time.Time, value, delay uint64) telemetry.Snapshot {
	return telemetry.Snapshot{Timestamp: ts, Samples: []telemetry.Sample{
		{Name: "rfid.delay", Kind: telemetry.KindUint32, Value: delay},
		{Name: "rfid.value", Kind: telemetry.KindUint16, Value: value},
	}}
}

func countRows(t *testing.T, path, where string, args ...interface{}) int {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM samples "+where, args...).Scan(&n))
	return n
}

func TestRecorderBatchesAndFlushesOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rfid.db")
	out, err := NewRecorder(config.SQLiteConfig{Path: path, BatchSize: 2}, zerolog.Nop())
	require.NoError(t, err)

	ts := time.UnixMilli(1700000000000)
	require.NoError(t, out.Publish(snapshot(ts, 200, 1000)))
	r := out.(*Recorder)
	r.mu.Lock()
	assert.Len(t, r.buffer, 1)
	r.mu.Unlock()

	require.NoError(t, out.Publish(snapshot(ts.Add(time.Second), 3600, 56)))
	r.mu.Lock()
	assert.Empty(t, r.buffer)
	r.mu.Unlock()

	require.NoError(t, out.Publish(snapshot(ts.Add(2*time.Second), 4000, 50)))
	require.NoError(t, out.Close())

	assert.Equal(t, 6, countRows(t, path, ""))
	assert.Equal(t, 1, countRows(t, path, "WHERE name = ? AND value = ?", "rfid.value", 3600))
	assert.Equal(t, 2, countRows(t, path, "WHERE timestamp = ?", ts.UnixMilli()+2000), "last snapshot flushed on close")
}

func TestRecorderPeriodicFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rfid.db")
	out, err := NewRecorder(config.SQLiteConfig{Path: path, BatchSize: 1000, FlushMs: 5}, zerolog.Nop())
	require.NoError(t, err)
	r := out.(*Recorder)

	require.NoError(t, out.Publish(snapshot(time.Now(), 200, 1000)))
	assert.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.buffer) == 0
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, out.Close())
	assert.Equal(t, 2, countRows(t, path, ""))
}

func TestRecorderRequiresPath(t *testing.T) {
	_, err := NewRecorder(config.SQLiteConfig{}, zerolog.Nop())
	assert.Error(t, err)
}

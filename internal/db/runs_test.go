package db

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/wavemode/internal/analysis"
	"github.com/banshee-data/wavemode/internal/monitoring"
	"github.com/banshee-data/wavemode/internal/timeutil"
)

func init() {
	monitoring.SetLogger(nil)
}

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRun(source string) *Run {
	return RunFromResult(&analysis.Result{
		Source:               source,
		SampleRate:           5e6,
		Samples:              2048,
		ExtensionIndex:       505,
		FlexureIndex:         900,
		ExtensionTimeUS:      101,
		FlexureTimeUS:        180,
		ExtensionFrequencyHz: 310e3,
		FlexureFrequenciesHz: []float64{80e3, 100e3},
	}, json.RawMessage(`{"noise_multiplier":10}`))
}

func TestNewDB_Migrates(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Migrating again is a no-op.
	require.NoError(t, db.MigrateUp())

	require.NoError(t, db.MigrateDown())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}

func TestRunStore_InsertGet(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC))
	store := NewRunStore(newTestDB(t), clock)
	ctx := context.Background()

	run := sampleRun("hit-01.txt")
	require.NoError(t, store.Insert(ctx, run))
	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, clock.Now().UnixNano(), run.CreatedAt)

	got, err := store.Get(ctx, run.RunID)
	require.NoError(t, err)
	if diff := cmp.Diff(run, got); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}
}

func TestRunStore_DefaultsParams(t *testing.T) {
	t.Parallel()

	store := NewRunStore(newTestDB(t), nil)
	run := &Run{Source: "x", SampleRate: 1}
	require.NoError(t, store.Insert(context.Background(), run))

	got, err := store.Get(context.Background(), run.RunID)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(got.Params))
	assert.Equal(t, []float64{}, got.FlexureFrequenciesHz)
}

func TestRunStore_ListRecent(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(time.Unix(1_700_000_000, 0))
	store := NewRunStore(newTestDB(t), clock)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, store.Insert(ctx, sampleRun(name)))
		clock.Advance(time.Second)
	}

	runs, err := store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].Source)
	assert.Equal(t, "b", runs[1].Source)

	all, err := store.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRunStore_Delete(t *testing.T) {
	t.Parallel()

	store := NewRunStore(newTestDB(t), nil)
	ctx := context.Background()
	run := sampleRun("gone")
	require.NoError(t, store.Insert(ctx, run))

	require.NoError(t, store.Delete(ctx, run.RunID))
	_, err := store.Get(ctx, run.RunID)
	assert.True(t, errors.Is(err, ErrRunNotFound), "got %v", err)
	assert.True(t, errors.Is(store.Delete(ctx, run.RunID), ErrRunNotFound))
}

func TestRunStore_DuplicateID(t *testing.T) {
	t.Parallel()

	store := NewRunStore(newTestDB(t), nil)
	ctx := context.Background()
	run := sampleRun("dup")
	require.NoError(t, store.Insert(ctx, run))
	again := *run
	assert.Error(t, store.Insert(ctx, &again))
}

func TestServeBackup(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	require.NoError(t, NewRunStore(db, nil).Insert(context.Background(), sampleRun("b")))

	rec := httptest.NewRecorder()
	db.serveBackup(rec, httptest.NewRequest(http.MethodGet, "/debug/backup", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "SQLite format 3\x00", string(data[:16]))
}

func TestAttachAdminRoutes(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	req := httptest.NewRequest(http.MethodGet, "/debug/", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tailsql")
}

func TestNewDB_PragmasOnEveryConnection(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	// Hold several connections at once so the pool has to open new ones.
	for i := 0; i < 3; i++ {
		conn, err := db.Conn(ctx)
		require.NoError(t, err)
		defer conn.Close()

		var timeout, fk int
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
		assert.Equal(t, 5000, timeout, "connection %d", i)
		assert.Equal(t, 1, fk, "connection %d", i)
	}
}

func TestDSN(t *testing.T) {
	assert.Equal(t,
		"runs.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
		dsn("runs.db"))
}

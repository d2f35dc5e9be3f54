package storage

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"helphub/internal/adapters/http/perf"
)

func openTimedTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db := openTestDB(t)
	if _, err := db.Exec("CREATE TABLE test (id TEXT PRIMARY KEY, val TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

// recordingSink captures entries for assertions.
type recordingSink struct {
	mu      sync.Mutex
	entries []perf.Entry
}

func (r *recordingSink) Record(e perf.Entry) {
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
}

func (r *recordingSink) paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Path
	}
	return out
}

func TestTimedDB_RecordsEachCall(t *testing.T) {
	db := openTimedTestDB(t)
	sink := &recordingSink{}
	tdb := NewTimedDB(db, sink, 0)
	ctx := context.Background()

	if _, err := tdb.ExecContext(ctx, "INSERT INTO test (id, val) VALUES (?, ?)", "1", "hello"); err != nil {
		t.Fatalf("ExecContext: %v", err)
	}
	rows, err := tdb.QueryContext(ctx, "SELECT id, val FROM test")
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	rows.Close()
	var val string
	if err := tdb.QueryRowContext(ctx, "SELECT val FROM test WHERE id = ?", "1").Scan(&val); err != nil {
		t.Fatalf("QueryRowContext: %v", err)
	}
	if val != "hello" {
		t.Errorf("val = %q, want hello", val)
	}

	want := []string{"INSERT test", "SELECT test", "SELECT test"}
	got := sink.paths()
	if len(got) != len(want) {
		t.Fatalf("recorded %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d path = %q, want %q", i, got[i], want[i])
		}
	}
	for _, e := range sink.entries {
		if e.Kind != perf.KindQuery {
			t.Errorf("kind = %v, want query", e.Kind)
		}
	}
}

func TestTimedDB_WithCollector(t *testing.T) {
	db := openTimedTestDB(t)
	collector := perf.NewCollector(100)
	tdb := NewTimedDB(db, collector, time.Second)

	tdb.ExecContext(context.Background(), "INSERT INTO test (id, val) VALUES (?, ?)", "1", "hello")
	if collector.TotalRecorded() != 1 {
		t.Errorf("TotalRecorded = %d, want 1", collector.TotalRecorded())
	}
}

// TestTimedDB_NilRecorder verifies TimedDB works without a recorder.
func TestTimedDB_NilRecorder(t *testing.T) {
	db := openTimedTestDB(t)
	tdb := NewTimedDB(db, nil, 0)

	if _, err := tdb.ExecContext(context.Background(), "INSERT INTO test (id, val) VALUES (?, ?)", "1", "hello"); err != nil {
		t.Fatalf("ExecContext with nil recorder: %v", err)
	}
	if err := tdb.PingContext(context.Background()); err != nil {
		t.Errorf("PingContext: %v", err)
	}
}

// TestTimedDB_ErrorPassthrough verifies SQL errors come back unchanged and are still timed.
func TestTimedDB_ErrorPassthrough(t *testing.T) {
	db := openTimedTestDB(t)
	sink := &recordingSink{}
	tdb := NewTimedDB(db, sink, 0)
	ctx := context.Background()

	if _, err := tdb.ExecContext(ctx, "INSERT INTO nonexistent_table VALUES (?)", 1); err == nil {
		t.Error("expected error from invalid SQL")
	}
	if _, err := tdb.QueryContext(ctx, "SELECT * FROM nonexistent_table"); err == nil {
		t.Error("expected error from invalid SQL")
	}
	var val string
	if err := tdb.QueryRowContext(ctx, "SELECT val FROM test WHERE id = ?", "missing").Scan(&val); err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
	if n := len(sink.paths()); n != 3 {
		t.Errorf("recorded %d entries, want 3 (errors are timed too)", n)
	}
}

func TestTimedDB_CancelledContext(t *testing.T) {
	db := openTimedTestDB(t)
	tdb := NewTimedDB(db, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tdb.ExecContext(ctx, "INSERT INTO test (id, val) VALUES (?, ?)", "1", "hello"); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestTimedDB_RawDB(t *testing.T) {
	db := openTimedTestDB(t)
	if NewTimedDB(db, nil, 0).RawDB() != db {
		t.Error("RawDB() should return the original *sql.DB")
	}
}

func TestQueryLabel(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"INSERT INTO retrieval_attempt (id) VALUES (?)", "INSERT retrieval_attempt"},
		{"SELECT id, section FROM retrieval_attempt ORDER BY started_at DESC", "SELECT retrieval_attempt"},
		{"delete from retrieval_attempt where started_at < ?", "DELETE retrieval_attempt"},
		{"UPDATE retrieval_attempt SET outcome = ?", "UPDATE retrieval_attempt"},
		{"\n\t  SELECT 1", "SELECT"},
		{"PRAGMA journal_mode=WAL", "PRAGMA"},
		{"   ", "empty"},
	}
	for _, tt := range tests {
		if got := queryLabel(tt.query); got != tt.want {
			t.Errorf("queryLabel(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

// TestTimedDB_ConcurrentMixedOps verifies no data races under concurrent calls.
func TestTimedDB_ConcurrentMixedOps(t *testing.T) {
	db := openTimedTestDB(t)
	collector := perf.NewCollector(1000)
	tdb := NewTimedDB(db, collector, 0)
	ctx := context.Background()
	tdb.ExecContext(ctx, "INSERT INTO test (id, val) VALUES (?, ?)", "seed", "data")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if i%2 == 0 {
					tdb.ExecContext(ctx, "INSERT OR REPLACE INTO test (id, val) VALUES (?, ?)", "w", "v")
				} else {
					var v string
					tdb.QueryRowContext(ctx, "SELECT val FROM test WHERE id = ?", "seed").Scan(&v)
				}
			}
		}(i)
	}
	wg.Wait()

	if got := collector.TotalRecorded(); got != 161 {
		t.Errorf("TotalRecorded = %d, want 161", got)
	}
}

func BenchmarkTimedDB_QueryRow(b *testing.B) {
	db, _ := sql.Open("sqlite", ":memory:")
	defer db.Close()
	db.SetMaxOpenConns(1)
	db.Exec("CREATE TABLE bench (id INTEGER PRIMARY KEY, val TEXT)")
	db.Exec("INSERT INTO bench VALUES (1, 'x')")
	tdb := NewTimedDB(db, perf.NewCollector(perf.DefaultRingSize), 0)

	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var v string
		tdb.QueryRowContext(ctx, "SELECT val FROM bench WHERE id = 1").Scan(&v)
	}
}

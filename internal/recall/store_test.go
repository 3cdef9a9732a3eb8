package recall

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(Schema); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStoreWithDB(db)
}

func TestRecordAndLookup(t *testing.T) {
	s := setupStore(t)

	rec, err := s.Record("fp-1", 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if rec.OccurrenceCount != 1 {
		t.Fatalf("expected occurrence 1, got %d", rec.OccurrenceCount)
	}

	rec, err = s.Record("fp-1", 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if rec.OccurrenceCount != 2 {
		t.Fatalf("expected occurrence 2, got %d", rec.OccurrenceCount)
	}

	got, seen, err := s.Lookup("fp-1")
	if err != nil {
		t.Fatal(err)
	}
	if !seen {
		t.Fatal("expected fp-1 to be seen")
	}
	if got.OccurrenceCount != 2 {
		t.Fatalf("expected count 2, got %d", got.OccurrenceCount)
	}
}

func TestLookupUnknownFingerprint(t *testing.T) {
	s := setupStore(t)

	_, seen, err := s.Lookup("never-recorded")
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Fatal("unknown fingerprint reported as seen")
	}
}

func TestTTLBoundary(t *testing.T) {
	s := setupStore(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return base }

	if _, err := s.Record("fp-ttl", 24*time.Hour); err != nil {
		t.Fatal(err)
	}

	// Just inside the window.
	s.Now = func() time.Time { return base.Add(23*time.Hour + 59*time.Minute) }
	_, seen, err := s.Lookup("fp-ttl")
	if err != nil {
		t.Fatal(err)
	}
	if !seen {
		t.Fatal("record expired before its TTL lapsed")
	}

	// Just past expiry.
	s.Now = func() time.Time { return base.Add(24*time.Hour + time.Second) }
	_, seen, err = s.Lookup("fp-ttl")
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Fatal("record still visible past its TTL")
	}
}

func TestExpiredRecordRestartsCount(t *testing.T) {
	s := setupStore(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return base }

	for i := 0; i < 3; i++ {
		if _, err := s.Record("fp-reset", 24*time.Hour); err != nil {
			t.Fatal(err)
		}
	}

	// Past expiry the same failure is a fresh incident, not occurrence 4.
	s.Now = func() time.Time { return base.Add(25 * time.Hour) }
	rec, err := s.Record("fp-reset", 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if rec.OccurrenceCount != 1 {
		t.Fatalf("expected count restart at 1, got %d", rec.OccurrenceCount)
	}
}

func TestRecordRefreshesTTL(t *testing.T) {
	s := setupStore(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return base }
	if _, err := s.Record("fp-refresh", 24*time.Hour); err != nil {
		t.Fatal(err)
	}

	// A repeat at T+20h pushes expiry out to T+44h.
	s.Now = func() time.Time { return base.Add(20 * time.Hour) }
	if _, err := s.Record("fp-refresh", 24*time.Hour); err != nil {
		t.Fatal(err)
	}

	s.Now = func() time.Time { return base.Add(30 * time.Hour) }
	_, seen, err := s.Lookup("fp-refresh")
	if err != nil {
		t.Fatal(err)
	}
	if !seen {
		t.Fatal("refreshed record expired on the original schedule")
	}
}

func TestPurgeExpired(t *testing.T) {
	s := setupStore(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return base }
	if _, err := s.Record("fp-old", time.Hour); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Record("fp-live", 48*time.Hour); err != nil {
		t.Fatal(err)
	}

	s.Now = func() time.Time { return base.Add(2 * time.Hour) }
	n, err := s.PurgeExpired()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged record, got %d", n)
	}

	_, seen, err := s.Lookup("fp-live")
	if err != nil {
		t.Fatal(err)
	}
	if !seen {
		t.Fatal("purge removed a live record")
	}
}

func TestRecordRetriesBeforeFailing(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(Schema); err != nil {
		t.Fatal(err)
	}
	s := NewStoreWithDB(db)
	s.WriteRetries = 2

	// A write against a dead backing store is retried, then surfaces an error
	// instead of vanishing.
	db.Close()
	_, err = s.Record("fp-down", 24*time.Hour)
	if err == nil {
		t.Fatal("expected error from a closed backing store")
	}
	if !strings.Contains(err.Error(), "after 2 retries") {
		t.Fatalf("retry loop not exhausted: %v", err)
	}

	// A reported failure also surfaces from Lookup alongside not-seen, so
	// callers lean toward intervening.
	_, seen, err := s.Lookup("fp-down")
	if err == nil {
		t.Fatal("expected lookup error from a closed backing store")
	}
	if seen {
		t.Fatal("unreachable store reported a fingerprint as seen")
	}
}

func TestCommandHistoryAndDeniedCount(t *testing.T) {
	s := setupStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		err := s.RecordCommand(CommandRecord{
			RawCommand: "rm -rf /",
			Decision:   "deny",
			ReasonCode: "dangerous_pattern",
			Timestamp:  now.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	err := s.RecordCommand(CommandRecord{
		RawCommand: "git status",
		Decision:   "allow",
		ReasonCode: "default_allow",
		Timestamp:  now,
	})
	if err != nil {
		t.Fatal(err)
	}

	n, err := s.DeniedCount("rm -rf /", now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 denials, got %d", n)
	}

	// Window excludes older denials.
	n, err = s.DeniedCount("rm -rf /", now.Add(30*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 denial inside the window, got %d", n)
	}

	recent, err := s.RecentCommands(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 history rows, got %d", len(recent))
	}

	byPrefix, err := s.CommandsByPrefix("rm ", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(byPrefix) != 2 {
		t.Fatalf("expected 2 rm commands, got %d", len(byPrefix))
	}
	for _, r := range byPrefix {
		if !strings.HasPrefix(r.RawCommand, "rm ") {
			t.Fatalf("prefix filter leaked %q", r.RawCommand)
		}
	}
}

func TestCommandsByPrefixIsLiteral(t *testing.T) {
	s := setupStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, cmd := range []string{"rm_x", "rmax", "make test_unit", "make testXunit"} {
		if err := s.RecordCommand(CommandRecord{RawCommand: cmd, Decision: "allow", Timestamp: now}); err != nil {
			t.Fatal(err)
		}
	}

	// An underscore in the prefix matches itself, not any character.
	got, err := s.CommandsByPrefix("rm_", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].RawCommand != "rm_x" {
		t.Fatalf("underscore treated as wildcard: %+v", got)
	}

	// A percent sign matches nothing extra.
	got, err = s.CommandsByPrefix("make test%", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("percent treated as wildcard: %+v", got)
	}
}

func TestStats(t *testing.T) {
	s := setupStore(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return base }
	if _, err := s.Record("fp-a", time.Hour); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Record("fp-b", 48*time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordCommand(CommandRecord{RawCommand: "ls", Decision: "allow"}); err != nil {
		t.Fatal(err)
	}

	s.Now = func() time.Time { return base.Add(2 * time.Hour) }
	st, err := s.CollectStats()
	if err != nil {
		t.Fatal(err)
	}
	if st.ActiveFingerprints != 1 || st.ExpiredRecords != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	if st.CommandDecisions != 1 {
		t.Fatalf("expected 1 command decision, got %d", st.CommandDecisions)
	}
}

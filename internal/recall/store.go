// Package recall provides the TTL-bounded memory of prior failures and
// command decisions. It answers "has this been seen recently" and owns every
// RecallRecord: all mutation goes through the Store API.
package recall

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	_ "modernc.org/sqlite"
)

// Record is a single remembered error fingerprint.
type Record struct {
	Fingerprint     string    `json:"fingerprint"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`
	OccurrenceCount int       `json:"occurrence_count"`
	TTLExpiry       time.Time `json:"ttl_expiry"`
}

// CommandRecord is one gate decision in the command history.
type CommandRecord struct {
	RawCommand     string    `json:"raw_command"`
	Classification string    `json:"classification"`
	Severity       string    `json:"severity"`
	Decision       string    `json:"decision"`
	ReasonCode     string    `json:"reason_code"`
	Timestamp      time.Time `json:"timestamp"`
}

// Stats summarizes the store contents.
type Stats struct {
	ActiveFingerprints int `json:"active_fingerprints"`
	ExpiredRecords     int `json:"expired_records"`
	CommandDecisions   int `json:"command_decisions"`
	PendingNotices     int `json:"pending_notices"`
}

// writeShards bounds write contention: writes are serialized per fingerprint
// through a fixed set of sharded locks while reads stay lock-free on sqlite.
const writeShards = 32

// Store is the sqlite-backed RecallDB.
type Store struct {
	db     *sql.DB
	shards [writeShards]sync.Mutex

	// Now is the clock used for TTL arithmetic. Tests substitute it.
	Now func() time.Time

	// WriteRetries bounds the retry loop on failed writes.
	WriteRetries int
}

// NewStore opens (or creates) the RecallDB at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open recall db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply recall schema: %w", err)
	}
	// Best-effort migrations for databases created before these columns existed.
	_, _ = db.Exec(`ALTER TABLE command_history ADD COLUMN severity TEXT NOT NULL DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE command_history ADD COLUMN reason_code TEXT NOT NULL DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE escalation_notices ADD COLUMN recommended_action TEXT NOT NULL DEFAULT ''`)
	return newStore(db), nil
}

// NewStoreWithDB wraps an already-open database. The schema must exist.
// Used by tests with an in-memory database.
func NewStoreWithDB(db *sql.DB) *Store {
	return newStore(db)
}

func newStore(db *sql.DB) *Store {
	return &Store{
		db:           db,
		Now:          time.Now,
		WriteRetries: 3,
	}
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) lockShard(fingerprint string) func() {
	mu := &s.shards[xxhash.Sum64String(fingerprint)%writeShards]
	mu.Lock()
	return mu.Unlock
}

// Record creates or increments the record for a fingerprint and refreshes its
// last_seen and ttl_expiry. A record whose TTL already lapsed restarts at
// occurrence 1: the incident window has closed, this is a fresh sighting.
// Write failures are retried with bounded backoff and never dropped silently.
func (s *Store) Record(fingerprint string, ttl time.Duration) (Record, error) {
	unlock := s.lockShard(fingerprint)
	defer unlock()

	var rec Record
	var lastErr error
	for attempt := 0; attempt <= s.WriteRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
		}
		rec, lastErr = s.recordOnce(fingerprint, ttl)
		if lastErr == nil {
			return rec, nil
		}
		slog.Warn("recall: record write failed, retrying",
			"fingerprint", fingerprint, "attempt", attempt+1, "error", lastErr)
	}
	return Record{}, fmt.Errorf("record %s after %d retries: %w", fingerprint, s.WriteRetries, lastErr)
}

func (s *Store) recordOnce(fingerprint string, ttl time.Duration) (Record, error) {
	now := s.Now()
	expiry := now.Add(ttl)

	existing, seen, err := s.Lookup(fingerprint)
	if err != nil {
		return Record{}, err
	}

	if !seen {
		// Fresh record. INSERT OR REPLACE also reclaims an expired row
		// with the same fingerprint.
		_, err := s.db.Exec(
			`INSERT INTO error_events (fingerprint, first_seen, last_seen, occurrence_count, ttl_expiry)
			 VALUES (?, ?, ?, 1, ?)
			 ON CONFLICT(fingerprint) DO UPDATE SET
			   first_seen = excluded.first_seen,
			   last_seen = excluded.last_seen,
			   occurrence_count = 1,
			   ttl_expiry = excluded.ttl_expiry`,
			fingerprint, now, now, expiry,
		)
		if err != nil {
			return Record{}, err
		}
		return Record{Fingerprint: fingerprint, FirstSeen: now, LastSeen: now, OccurrenceCount: 1, TTLExpiry: expiry}, nil
	}

	_, err = s.db.Exec(
		`UPDATE error_events
		 SET occurrence_count = occurrence_count + 1, last_seen = ?, ttl_expiry = ?
		 WHERE fingerprint = ?`,
		now, expiry, fingerprint,
	)
	if err != nil {
		return Record{}, err
	}
	existing.OccurrenceCount++
	existing.LastSeen = now
	existing.TTLExpiry = expiry
	return existing, nil
}

// Lookup returns the record for a fingerprint, or seen=false when it was
// never recorded or its TTL has lapsed. Expiry is lazy: the row is left for
// PurgeExpired, but it is invisible here from the moment it lapses.
// A backing-store error also reports not-seen so callers lean toward
// intervening rather than silently suppressing a repeat failure.
func (s *Store) Lookup(fingerprint string) (Record, bool, error) {
	var rec Record
	err := s.db.QueryRow(
		`SELECT fingerprint, first_seen, last_seen, occurrence_count, ttl_expiry
		 FROM error_events WHERE fingerprint = ?`,
		fingerprint,
	).Scan(&rec.Fingerprint, &rec.FirstSeen, &rec.LastSeen, &rec.OccurrenceCount, &rec.TTLExpiry)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		slog.Error("recall: lookup failed, treating as not seen", "fingerprint", fingerprint, "error", err)
		return Record{}, false, err
	}
	if !rec.TTLExpiry.After(s.Now()) {
		return Record{}, false, nil
	}
	return rec, true, nil
}

// PurgeExpired physically removes lapsed records. Safe to run on a cadence.
func (s *Store) PurgeExpired() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM error_events WHERE ttl_expiry <= ?`, s.Now())
	if err != nil {
		return 0, fmt.Errorf("purge expired: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// RunPurge runs PurgeExpired on the given interval until the channel closes.
func (s *Store) RunPurge(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if n, err := s.PurgeExpired(); err != nil {
				slog.Error("recall: purge failed", "error", err)
			} else if n > 0 {
				slog.Debug("recall: purged expired records", "count", n)
			}
		}
	}
}

// RecordCommand appends a gate decision to the command history.
func (s *Store) RecordCommand(cr CommandRecord) error {
	if cr.Timestamp.IsZero() {
		cr.Timestamp = s.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO command_history (raw_command, classification, severity, decision, reason_code, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		cr.RawCommand, cr.Classification, cr.Severity, cr.Decision, cr.ReasonCode, cr.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("record command: %w", err)
	}
	return nil
}

// DeniedCount returns how many times rawCommand has been denied since the
// given time. The shim uses it for repeat-offense detection; the query is
// indexed on raw_command to stay inside the validation budget.
func (s *Store) DeniedCount(rawCommand string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM command_history
		 WHERE raw_command = ? AND decision = 'deny' AND timestamp >= ?`,
		rawCommand, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("denied count: %w", err)
	}
	return n, nil
}

// RecentCommands returns the newest command decisions, most recent first.
func (s *Store) RecentCommands(limit int) ([]CommandRecord, error) {
	rows, err := s.db.Query(
		`SELECT raw_command, classification, severity, decision, reason_code, timestamp
		 FROM command_history ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CommandRecord
	for rows.Next() {
		var cr CommandRecord
		if err := rows.Scan(&cr.RawCommand, &cr.Classification, &cr.Severity, &cr.Decision, &cr.ReasonCode, &cr.Timestamp); err != nil {
			continue
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

// likeEscaper neutralizes LIKE metacharacters so a prefix is matched literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// CommandsByPrefix returns the newest decisions for commands starting with
// prefix, most recent first. The prefix is literal; wildcards in it match
// themselves.
func (s *Store) CommandsByPrefix(prefix string, limit int) ([]CommandRecord, error) {
	rows, err := s.db.Query(
		`SELECT raw_command, classification, severity, decision, reason_code, timestamp
		 FROM command_history WHERE raw_command LIKE ? ESCAPE '\'
		 ORDER BY timestamp DESC, id DESC LIMIT ?`, likeEscaper.Replace(prefix)+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CommandRecord
	for rows.Next() {
		var cr CommandRecord
		if err := rows.Scan(&cr.RawCommand, &cr.Classification, &cr.Severity, &cr.Decision, &cr.ReasonCode, &cr.Timestamp); err != nil {
			continue
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

// RecordViolation links a fingerprint to the rule that matched it.
func (s *Store) RecordViolation(fingerprint, ruleID string) error {
	_, err := s.db.Exec(
		`INSERT INTO pattern_violations (fingerprint, rule_id, timestamp) VALUES (?, ?, ?)`,
		fingerprint, ruleID, s.Now(),
	)
	if err != nil {
		return fmt.Errorf("record violation: %w", err)
	}
	return nil
}

// CollectStats returns summary counts for the status command.
func (s *Store) CollectStats() (Stats, error) {
	var st Stats
	now := s.Now()
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM error_events WHERE ttl_expiry > ?`, now).Scan(&st.ActiveFingerprints); err != nil {
		return st, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM error_events WHERE ttl_expiry <= ?`, now).Scan(&st.ExpiredRecords); err != nil {
		return st, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM command_history`).Scan(&st.CommandDecisions); err != nil {
		return st, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM escalation_notices WHERE delivery_status = ?`, DeliveryPending).Scan(&st.PendingNotices); err != nil {
		return st, err
	}
	return st, nil
}

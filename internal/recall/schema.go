package recall

// Schema is the full RecallDB schema, applied on open. Migrations for older
// databases are applied best-effort in NewStore.
const Schema = `
CREATE TABLE IF NOT EXISTS error_events (
	fingerprint      TEXT PRIMARY KEY,
	first_seen       DATETIME NOT NULL,
	last_seen        DATETIME NOT NULL,
	occurrence_count INTEGER NOT NULL DEFAULT 1,
	ttl_expiry       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_error_events_expiry ON error_events(ttl_expiry);

CREATE TABLE IF NOT EXISTS command_history (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	raw_command    TEXT NOT NULL,
	classification TEXT NOT NULL DEFAULT '',
	severity       TEXT NOT NULL DEFAULT '',
	decision       TEXT NOT NULL,
	reason_code    TEXT NOT NULL DEFAULT '',
	timestamp      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_command_history_ts ON command_history(timestamp);
CREATE INDEX IF NOT EXISTS idx_command_history_cmd ON command_history(raw_command);

CREATE TABLE IF NOT EXISTS pattern_violations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	fingerprint TEXT NOT NULL,
	rule_id     TEXT NOT NULL,
	timestamp   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_pattern_violations_fp ON pattern_violations(fingerprint);

CREATE TABLE IF NOT EXISTS escalation_notices (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	notice_id          TEXT UNIQUE NOT NULL,
	task_id            TEXT NOT NULL,
	reason             TEXT NOT NULL,
	recommended_action TEXT NOT NULL DEFAULT '',
	delivery_status    TEXT NOT NULL DEFAULT 'pending',
	delivery_attempts  INTEGER NOT NULL DEFAULT 0,
	delivery_next_at   DATETIME,
	created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	delivered_at       DATETIME
);

CREATE INDEX IF NOT EXISTS idx_notices_delivery ON escalation_notices(delivery_status, delivery_next_at);
`

// Delivery states for persisted escalation notices.
const (
	DeliveryPending = "pending"
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
)

package recall

import (
	"database/sql"
	"fmt"
	"time"
)

// Notice is a persisted escalation notice awaiting (or past) delivery.
type Notice struct {
	NoticeID          string     `json:"notice_id"`
	TaskID            string     `json:"task_id"`
	Reason            string     `json:"reason"`
	RecommendedAction string     `json:"recommended_action"`
	DeliveryStatus    string     `json:"delivery_status"`
	DeliveryAttempts  int        `json:"delivery_attempts"`
	DeliveryNextAt    *time.Time `json:"delivery_next_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// InsertNotice persists a new pending escalation notice. The notice must not
// be lost even when human delivery keeps failing, so it lands in the store
// before any delivery attempt is made.
func (s *Store) InsertNotice(noticeID, taskID, reason, recommendedAction string) error {
	_, err := s.db.Exec(
		`INSERT INTO escalation_notices (notice_id, task_id, reason, recommended_action, delivery_status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		noticeID, taskID, reason, recommendedAction, DeliveryPending, s.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert notice: %w", err)
	}
	return nil
}

// ListDueNotices returns pending notices whose next delivery time has arrived.
func (s *Store) ListDueNotices(limit int) ([]Notice, error) {
	rows, err := s.db.Query(
		`SELECT notice_id, task_id, reason, recommended_action, delivery_status, delivery_attempts, delivery_next_at, created_at
		 FROM escalation_notices
		 WHERE delivery_status = ? AND (delivery_next_at IS NULL OR delivery_next_at <= ?)
		 ORDER BY created_at ASC LIMIT ?`,
		DeliveryPending, s.Now(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list due notices: %w", err)
	}
	defer rows.Close()

	var out []Notice
	for rows.Next() {
		var n Notice
		var nextAt sql.NullTime
		if err := rows.Scan(&n.NoticeID, &n.TaskID, &n.Reason, &n.RecommendedAction,
			&n.DeliveryStatus, &n.DeliveryAttempts, &nextAt, &n.CreatedAt); err != nil {
			continue
		}
		if nextAt.Valid {
			t := nextAt.Time
			n.DeliveryNextAt = &t
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNoticeSent records a successful delivery.
func (s *Store) MarkNoticeSent(noticeID string) error {
	_, err := s.db.Exec(
		`UPDATE escalation_notices SET delivery_status = ?, delivered_at = ? WHERE notice_id = ?`,
		DeliverySent, s.Now(), noticeID,
	)
	return err
}

// DeferNotice bumps the attempt counter and schedules the next retry.
func (s *Store) DeferNotice(noticeID string, nextAt time.Time) error {
	_, err := s.db.Exec(
		`UPDATE escalation_notices
		 SET delivery_attempts = delivery_attempts + 1, delivery_next_at = ?
		 WHERE notice_id = ?`,
		nextAt, noticeID,
	)
	return err
}

// MarkNoticeFailed parks a notice after the retry budget is exhausted. The row
// stays in the store so the escalation is reconstructable later.
func (s *Store) MarkNoticeFailed(noticeID string) error {
	_, err := s.db.Exec(
		`UPDATE escalation_notices SET delivery_status = ? WHERE notice_id = ?`,
		DeliveryFailed, noticeID,
	)
	return err
}

package escalation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ZeroSumQuant/cake/internal/bus"
	"github.com/ZeroSumQuant/cake/internal/recall"
)

// Notifier delivers an escalation notice to a human-facing channel.
type Notifier interface {
	Notify(ctx context.Context, n *bus.EscalationNotice) error
}

// DeliveryWorker polls the store for pending notices and retries delivery
// with bounded backoff. A notice that exhausts its retries is parked in the
// store, never lost, and the session keeps monitoring regardless.
type DeliveryWorker struct {
	store    *recall.Store
	notifier Notifier
	interval time.Duration
	maxRetry int
}

// NewDeliveryWorker creates a delivery worker with sensible defaults.
func NewDeliveryWorker(store *recall.Store, notifier Notifier, maxRetry int) *DeliveryWorker {
	if maxRetry <= 0 {
		maxRetry = 5
	}
	return &DeliveryWorker{
		store:    store,
		notifier: notifier,
		interval: 5 * time.Second,
		maxRetry: maxRetry,
	}
}

// Enqueue persists a notice and attempts immediate delivery. Persist first:
// the notice must survive a crash between decision and delivery.
func (w *DeliveryWorker) Enqueue(ctx context.Context, n *bus.EscalationNotice) {
	if err := w.store.InsertNotice(n.NoticeID, n.TaskID, n.Reason, n.RecommendedAction); err != nil {
		slog.Error("Escalation: failed to persist notice", "notice_id", n.NoticeID, "error", err)
		// Still try to deliver; losing both the row and the delivery is worse.
	}
	w.attempt(ctx, recall.Notice{
		NoticeID:          n.NoticeID,
		TaskID:            n.TaskID,
		Reason:            n.Reason,
		RecommendedAction: n.RecommendedAction,
	})
}

// Run starts the polling loop. Blocks until the context is cancelled.
func (w *DeliveryWorker) Run(ctx context.Context) error {
	slog.Info("Escalation delivery worker started", "interval", w.interval, "max_retry", w.maxRetry)
	// Notices left pending by a previous run are picked up immediately.
	w.poll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Escalation delivery worker stopped")
			return ctx.Err()
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *DeliveryWorker) poll(ctx context.Context) {
	notices, err := w.store.ListDueNotices(10)
	if err != nil {
		slog.Error("Escalation delivery poll failed", "error", err)
		return
	}
	for _, n := range notices {
		if n.DeliveryAttempts >= w.maxRetry {
			slog.Warn("Escalation delivery retries exhausted, parking notice",
				"notice_id", n.NoticeID, "attempts", n.DeliveryAttempts)
			_ = w.store.MarkNoticeFailed(n.NoticeID)
			continue
		}
		w.attempt(ctx, n)
	}
}

func (w *DeliveryWorker) attempt(ctx context.Context, n recall.Notice) {
	err := w.notifier.Notify(ctx, &bus.EscalationNotice{
		NoticeID:          n.NoticeID,
		TaskID:            n.TaskID,
		Reason:            n.Reason,
		RecommendedAction: n.RecommendedAction,
	})
	if err != nil {
		next := DeliveryBackoff(n.DeliveryAttempts)
		slog.Warn("Escalation delivery failed, will retry",
			"notice_id", n.NoticeID, "attempts", n.DeliveryAttempts+1, "next_at", next, "error", err)
		_ = w.store.DeferNotice(n.NoticeID, next)
		return
	}
	if err := w.store.MarkNoticeSent(n.NoticeID); err != nil {
		slog.Error("Escalation: failed to mark notice sent", "notice_id", n.NoticeID, "error", err)
		return
	}
	slog.Info("Escalation notice delivered", "notice_id", n.NoticeID, "task_id", n.TaskID)
}

// DeliveryBackoff calculates the next retry time using exponential backoff.
// Returns min(30s * 2^attempts, 5min) from now.
func DeliveryBackoff(attempts int) time.Time {
	delay := time.Duration(30*math.Pow(2, float64(attempts))) * time.Second
	maxDelay := 5 * time.Minute
	if delay > maxDelay {
		delay = maxDelay
	}
	return time.Now().Add(delay)
}

// LogNotifier writes notices to the structured log. It is the default sink
// when no external channel is configured and it never fails.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(_ context.Context, n *bus.EscalationNotice) error {
	slog.Warn("ESCALATION",
		"notice_id", n.NoticeID,
		"task_id", n.TaskID,
		"reason", n.Reason,
		"recommended_action", n.RecommendedAction)
	return nil
}

// FormatNotice renders the human-facing notice text shared by all channels.
func FormatNotice(n *bus.EscalationNotice) string {
	return fmt.Sprintf(":rotating_light: CAKE escalation for task %s\nReason: %s\nRecommended action: %s",
		n.TaskID, n.Reason, n.RecommendedAction)
}

// Package watchdog consumes the agent's live transcript and turns
// error-worthy lines into events for the controller.
package watchdog

import (
	"context"
	"log/slog"
	"time"

	"github.com/ZeroSumQuant/cake/internal/bus"
	"github.com/ZeroSumQuant/cake/internal/recall"
	"github.com/ZeroSumQuant/cake/internal/rules"
)

// Watchdog applies the precompiled error-signature rules to each transcript
// line and publishes an ErrorEvent on a match. The matching path does no I/O;
// RecallDB interaction happens downstream in the controller.
type Watchdog struct {
	rules  *rules.Set
	bus    *bus.EventBus
	budget time.Duration

	linesSeen   int64
	eventsFired int64
}

// New creates a watchdog over the given rule set.
func New(set *rules.Set, b *bus.EventBus, detectionBudget time.Duration) *Watchdog {
	if detectionBudget <= 0 {
		detectionBudget = 100 * time.Millisecond
	}
	return &Watchdog{rules: set, bus: b, budget: detectionBudget}
}

// Run consumes lines until the channel closes or ctx is cancelled. A failure
// while scanning one line is logged and skipped; the loop itself never exits
// on a detection error.
func (w *Watchdog) Run(ctx context.Context, lines <-chan string) error {
	slog.Info("Watchdog started", "rules", w.rules.Len(), "budget", w.budget)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Watchdog stopped", "lines", w.linesSeen, "events", w.eventsFired)
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				slog.Info("Watchdog input closed", "lines", w.linesSeen, "events", w.eventsFired)
				return nil
			}
			w.scanLine(line)
		}
	}
}

func (w *Watchdog) scanLine(line string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Watchdog: detection panicked, skipping line", "panic", r)
		}
	}()

	w.linesSeen++
	arrived := time.Now()

	m := w.rules.Match(line)
	if m == nil {
		return
	}

	ev := &bus.ErrorEvent{
		Fingerprint: recall.Fingerprint(line),
		Category:    m.Category,
		Severity:    m.Severity,
		RawText:     line,
		RuleID:      m.Rule.ID,
		DetectedAt:  arrived,
		Timestamp:   time.Now(),
	}
	w.bus.PublishError(ev)
	w.eventsFired++

	if elapsed := time.Since(arrived); elapsed > w.budget {
		slog.Warn("Watchdog: detection exceeded latency budget",
			"elapsed", elapsed, "budget", w.budget, "fingerprint", ev.Fingerprint)
	}
}

// LinesSeen returns the number of lines consumed so far.
func (w *Watchdog) LinesSeen() int64 { return w.linesSeen }

// EventsFired returns the number of error events emitted so far.
func (w *Watchdog) EventsFired() int64 { return w.eventsFired }

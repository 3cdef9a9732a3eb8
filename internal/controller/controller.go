// Package controller hosts the supervisory state machine. A single actor
// consumes watchdog events and shim decisions through one queue, so the
// lifecycle invariants never race.
package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ZeroSumQuant/cake/internal/bus"
	"github.com/ZeroSumQuant/cake/internal/escalation"
	"github.com/ZeroSumQuant/cake/internal/operator"
	"github.com/ZeroSumQuant/cake/internal/recall"
	"github.com/ZeroSumQuant/cake/internal/rules"
	"github.com/ZeroSumQuant/cake/internal/stage"
)

// classifyTimeout bounds how long the external classifier may hold up event
// handling before the rule-derived classification stands.
const classifyTimeout = 2 * time.Second

// Controller owns the TaskSession and drives the intervention lifecycle.
type Controller struct {
	bus      *bus.EventBus
	store    *recall.Store
	operator *operator.Operator
	decider  *escalation.Decider

	classifier Classifier      // optional
	snapshots  SnapshotManager // optional

	ttl time.Duration

	mu      sync.RWMutex
	session *TaskSession

	stageOutcomes chan stage.Outcome
}

// New creates a controller with a fresh task session.
func New(b *bus.EventBus, store *recall.Store, op *operator.Operator, dec *escalation.Decider, ttl time.Duration) *Controller {
	return &Controller{
		bus:           b,
		store:         store,
		operator:      op,
		decider:       dec,
		ttl:           ttl,
		session:       NewTaskSession(),
		stageOutcomes: make(chan stage.Outcome, 16),
	}
}

// WithClassifier wires the optional external classifier.
func (c *Controller) WithClassifier(cl Classifier) *Controller {
	c.classifier = cl
	return c
}

// WithSnapshots wires the optional snapshot manager.
func (c *Controller) WithSnapshots(sm SnapshotManager) *Controller {
	c.snapshots = sm
	return c
}

// Session returns a copy of the current session for read-only inspection.
func (c *Controller) Session() TaskSession {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *c.session
}

// ReportStageOutcome queues a stage routing request onto the actor loop.
func (c *Controller) ReportStageOutcome(outcome stage.Outcome) {
	c.stageOutcomes <- outcome
}

// Run is the actor loop. All session mutation happens here, one event at a
// time. Cancelling the context tears the session down; an in-flight event
// that has not reached the store yet is simply discarded.
func (c *Controller) Run(ctx context.Context) error {
	slog.Info("Controller started", "task_id", c.session.TaskID)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Controller stopped", "task_id", c.session.TaskID)
			return ctx.Err()
		case outcome := <-c.stageOutcomes:
			c.handleStageOutcome(outcome)
		case d := <-c.bus.Decisions():
			c.handleDecision(d)
		case ev := <-c.bus.Errors():
			c.handleError(ctx, ev)
		}
	}
}

// handleError runs one error through the full lifecycle:
// detect → recall → decide → intervene or escalate → recover.
func (c *Controller) handleError(ctx context.Context, ev *bus.ErrorEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	now := time.Now()

	// A prior escalation closed its incident; this event opens the next one.
	if s.State == Escalating {
		if err := c.transition(Monitoring); err != nil {
			return
		}
	}

	if err := c.transition(Detecting); err != nil {
		return
	}
	s.openIncident(now)

	// Published events are shared and immutable; enrichment happens on a copy.
	local := *ev
	ev = &local
	ev.Stage = s.Stage

	c.refineClassification(ctx, ev)

	rec, err := c.store.Record(ev.Fingerprint, c.ttl)
	if err != nil {
		// Persistence is down. Conservative direction: act as if this were a
		// first occurrence and intervene, rather than silently suppressing.
		slog.Error("Controller: recall record failed, treating as first occurrence",
			"fingerprint", ev.Fingerprint, "error", err)
		rec = recall.Record{Fingerprint: ev.Fingerprint, FirstSeen: now, LastSeen: now, OccurrenceCount: 1}
	}
	if ev.RuleID != "" {
		if err := c.store.RecordViolation(ev.Fingerprint, ev.RuleID); err != nil {
			slog.Warn("Controller: violation record failed", "fingerprint", ev.Fingerprint, "error", err)
		}
	}

	verdict := c.decider.DecideWithRetries(rec.OccurrenceCount, s.RetriesUsed, s.incidentElapsed(now), s.Stage)

	if err := c.transition(Intervening); err != nil {
		return
	}

	// The operator speaks only when the incident stays local; on an escalate
	// verdict the notice is the sole output.
	if verdict == escalation.Retry {
		msg := c.operator.Render(ev, rec, s.Stage)
		msg.TaskID = s.TaskID
		c.bus.PublishIntervention(&msg)
		s.RetriesUsed++
	}

	// Checkpoint before recovery on the incidents worth being able to undo.
	if c.snapshots != nil && ev.Severity >= rules.SeverityHigh {
		if err := c.snapshots.Snapshot(ctx); err != nil {
			slog.Warn("Controller: snapshot failed", "task_id", s.TaskID, "error", err)
		}
	}

	if err := c.transition(Recovering); err != nil {
		return
	}

	switch verdict {
	case escalation.Retry:
		if err := c.transition(Monitoring); err != nil {
			return
		}
		slog.Info("Intervention issued",
			"task_id", s.TaskID, "fingerprint", ev.Fingerprint,
			"category", ev.Category, "occurrence", rec.OccurrenceCount,
			"stage", s.Stage, "state", s.State)
	case escalation.Escalate:
		if err := c.transition(Escalating); err != nil {
			return
		}
		notice := &bus.EscalationNotice{
			NoticeID: uuid.NewString(),
			TaskID:   s.TaskID,
			Reason: "repeated failure: " + ev.Category +
				" (fingerprint " + ev.Fingerprint + ") exceeded local retry policy",
			RecommendedAction: "Review the transcript around the last occurrence and unblock the agent manually.",
		}
		c.bus.PublishNotice(notice)
		s.closeIncident()
		slog.Warn("Incident escalated",
			"task_id", s.TaskID, "fingerprint", ev.Fingerprint,
			"occurrence", rec.OccurrenceCount, "notice_id", notice.NoticeID)
	}
}

// refineClassification lets the external classifier sharpen the rule-derived
// category. Failure here is transient by definition: log, keep the rules'
// answer, keep monitoring.
func (c *Controller) refineClassification(ctx context.Context, ev *bus.ErrorEvent) {
	if c.classifier == nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()
	cl, err := c.classifier.Classify(cctx, ev.RawText)
	if err != nil {
		slog.Warn("Controller: classifier unavailable, using rule classification",
			"fingerprint", ev.Fingerprint, "error", err)
		return
	}
	if cl.Category != "" {
		ev.Category = cl.Category
	}
	ev.Severity = cl.Severity
}

// handleDecision accounts for shim verdicts. Denied dangerous commands are
// remembered as pattern violations against the command's own fingerprint.
func (c *Controller) handleDecision(d *bus.CommandDecision) {
	if d.Allow {
		return
	}
	slog.Info("Command denied",
		"command", d.RawCommand, "reason", d.ReasonCode, "category", d.Category)
	if d.RuleID != "" {
		fp := recall.Fingerprint(d.RawCommand)
		if err := c.store.RecordViolation(fp, d.RuleID); err != nil {
			slog.Warn("Controller: violation record failed", "command", d.RawCommand, "error", err)
		}
	}
}

// handleStageOutcome routes the task lifecycle stage.
func (c *Controller) handleStageOutcome(outcome stage.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if err := s.advanceStage(outcome); err != nil {
		slog.Error("Stage transition rejected",
			"task_id", s.TaskID, "stage", s.Stage, "outcome", outcome, "error", err)
		return
	}
	slog.Info("Stage advanced", "task_id", s.TaskID, "stage", s.Stage)
}

// transition moves the session and logs a rejected request as incident-fatal.
// The session itself is retained in its last valid state.
func (c *Controller) transition(to State) error {
	s := c.session
	if err := s.transition(to); err != nil {
		slog.Error("State transition rejected (incident-fatal)",
			"task_id", s.TaskID, "state", s.State, "requested", to,
			"stage", s.Stage, "error", err)
		return err
	}
	return nil
}

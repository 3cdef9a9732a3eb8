// Package bus provides the one-directional event channels between the
// watchdog, the command shim, and the controller. Components publish; the
// controller consumes. Nothing holds a reference back to the controller.
package bus

import (
	"context"
	"sync"
	"time"

	"github.com/ZeroSumQuant/cake/internal/rules"
	"github.com/ZeroSumQuant/cake/internal/stage"
)

// ErrorEvent is an error detected in the agent's output stream.
// Immutable once created.
type ErrorEvent struct {
	Fingerprint string         `json:"fingerprint"`
	Category    string         `json:"category"`
	Severity    rules.Severity `json:"severity"`
	RawText     string         `json:"raw_text"`
	RuleID      string         `json:"rule_id"`
	Stage       stage.Stage    `json:"stage"`
	DetectedAt  time.Time      `json:"detected_at"`
	Timestamp   time.Time      `json:"timestamp"`
}

// CommandDecision mirrors a shim verdict onto the bus so the controller can
// account for denials without the shim calling into it.
type CommandDecision struct {
	RawCommand string    `json:"raw_command"`
	Category   string    `json:"category"`
	RuleID     string    `json:"rule_id,omitempty"`
	Allow      bool      `json:"allow"`
	ReasonCode string    `json:"reason_code"`
	Timestamp  time.Time `json:"timestamp"`
}

// EscalationNotice is the controller giving up local autonomy on an incident.
type EscalationNotice struct {
	NoticeID          string    `json:"notice_id"`
	TaskID            string    `json:"task_id"`
	Reason            string    `json:"reason"`
	RecommendedAction string    `json:"recommended_action"`
	Timestamp         time.Time `json:"timestamp"`
}

// InterventionMessage is the rendered corrective text surfaced to the agent.
type InterventionMessage struct {
	TaskID    string    `json:"task_id"`
	Category  string    `json:"category"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// EventBus decouples the detection and gating paths from the controller.
type EventBus struct {
	errors        chan *ErrorEvent
	decisions     chan *CommandDecision
	interventions chan *InterventionMessage
	noticeSubs    []func(*EscalationNotice)
	mu            sync.RWMutex
}

// NewEventBus creates an event bus with bounded buffers.
func NewEventBus(buffer int) *EventBus {
	if buffer <= 0 {
		buffer = 100
	}
	return &EventBus{
		errors:        make(chan *ErrorEvent, buffer),
		decisions:     make(chan *CommandDecision, buffer),
		interventions: make(chan *InterventionMessage, buffer),
	}
}

// PublishError sends a detected error toward the controller.
func (b *EventBus) PublishError(ev *ErrorEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	b.errors <- ev
}

// ConsumeError blocks until an error event is available or ctx is cancelled.
func (b *EventBus) ConsumeError(ctx context.Context) (*ErrorEvent, error) {
	select {
	case ev := <-b.errors:
		return ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Errors exposes the error event stream to the controller.
func (b *EventBus) Errors() <-chan *ErrorEvent { return b.errors }

// PublishDecision records a shim verdict for the controller. Non-blocking:
// the gate sits on the execution path and must never wait for the controller.
func (b *EventBus) PublishDecision(d *CommandDecision) {
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now()
	}
	select {
	case b.decisions <- d:
	default:
	}
}

// Decisions exposes the shim verdict stream to the controller.
func (b *EventBus) Decisions() <-chan *CommandDecision { return b.decisions }

// PublishIntervention surfaces a rendered intervention to the caller.
func (b *EventBus) PublishIntervention(msg *InterventionMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	select {
	case b.interventions <- msg:
	default:
	}
}

// Interventions exposes the intervention stream.
func (b *EventBus) Interventions() <-chan *InterventionMessage { return b.interventions }

// SubscribeNotices registers a callback for escalation notices.
func (b *EventBus) SubscribeNotices(callback func(*EscalationNotice)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.noticeSubs = append(b.noticeSubs, callback)
}

// PublishNotice fans an escalation notice out to all subscribers.
func (b *EventBus) PublishNotice(n *EscalationNotice) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	b.mu.RLock()
	subs := b.noticeSubs
	b.mu.RUnlock()
	for _, cb := range subs {
		cb(n)
	}
}

// PendingErrors returns the number of queued error events.
func (b *EventBus) PendingErrors() int { return len(b.errors) }

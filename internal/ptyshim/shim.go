// Package ptyshim provides the synchronous gate in front of command
// execution. Every command the agent attempts passes through Evaluate before
// any process is spawned; the execution environment must honor a deny.
package ptyshim

import (
	"log/slog"
	"time"

	"github.com/ZeroSumQuant/cake/internal/bus"
	"github.com/ZeroSumQuant/cake/internal/recall"
	"github.com/ZeroSumQuant/cake/internal/rules"
)

// CommandRequest is a command awaiting the gate's verdict.
type CommandRequest struct {
	RawCommand string    `json:"raw_command"`
	Timestamp  time.Time `json:"timestamp"`
}

// Classification is what the rule set made of the command.
type Classification struct {
	Category string         `json:"category"`
	Severity rules.Severity `json:"severity"`
}

// Decision is the gate's verdict. Advisory-binding: deny means do not run.
type Decision struct {
	Allow          bool           `json:"allow"`
	ReasonCode     string         `json:"reason_code"`
	RuleID         string         `json:"rule_id,omitempty"`
	Classification Classification `json:"classification"`
	Ts             time.Time      `json:"ts"`
}

// Shim classifies commands against the rule set and the recall history.
// It sits inline on the execution path: classification is O(rule count) with
// precompiled matchers, and the only I/O is one indexed RecallDB lookup.
type Shim struct {
	rules  *rules.Set
	store  *recall.Store
	bus    *bus.EventBus
	budget time.Duration

	// RepeatDenyThreshold denies a command outright once it has been denied
	// this many times inside the repeat window, regardless of rule action.
	RepeatDenyThreshold int
	// RepeatWindow bounds how far back repeat-offense lookups reach.
	RepeatWindow time.Duration

	// classifyFn is swapped in tests to simulate a slow classifier.
	classifyFn func(CommandRequest) Decision
}

// New creates a shim. The event bus may be nil when no controller is wired.
func New(set *rules.Set, store *recall.Store, b *bus.EventBus, budget time.Duration) *Shim {
	if budget <= 0 {
		budget = 50 * time.Millisecond
	}
	return &Shim{
		rules:               set,
		store:               store,
		bus:                 b,
		budget:              budget,
		RepeatDenyThreshold: 2,
		RepeatWindow:        24 * time.Hour,
	}
}

// Evaluate returns allow/deny for a command within the validation budget.
// If the budget lapses before classification finishes, the shim fails closed:
// a denied safe command costs a retry, an allowed dangerous one costs much more.
func (s *Shim) Evaluate(req CommandRequest) Decision {
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}

	classify := s.classifyFn
	if classify == nil {
		classify = s.classify
	}

	done := make(chan Decision, 1)
	go func() {
		done <- classify(req)
	}()

	timer := time.NewTimer(s.budget)
	defer timer.Stop()

	var d Decision
	select {
	case d = <-done:
	case <-timer.C:
		d = Decision{
			Allow:      false,
			ReasonCode: rules.ReasonTimeout,
			Ts:         time.Now(),
		}
		slog.Warn("Shim: validation budget exceeded, failing closed",
			"command", req.RawCommand, "budget", s.budget)
	}

	s.record(req, d)
	return d
}

func (s *Shim) classify(req CommandRequest) Decision {
	d := Decision{Ts: time.Now()}

	if m := s.rules.Match(req.RawCommand); m != nil {
		d.Classification = Classification{Category: m.Category, Severity: m.Severity}
		d.RuleID = m.Rule.ID
		switch m.Action {
		case rules.ActionDeny:
			d.Allow = false
			d.ReasonCode = rules.ReasonDangerousPattern
			return d
		case rules.ActionFlag:
			d.Allow = true
			d.ReasonCode = rules.ReasonFlagged
		case rules.ActionAllow:
			d.Allow = true
			d.ReasonCode = rules.ReasonDefaultAllow
			return d
		}
	} else {
		d.Allow = true
		d.ReasonCode = rules.ReasonDefaultAllow
	}

	// Repeat-offense check: a command that keeps getting denied does not
	// become safe by being retried.
	if s.store != nil && s.RepeatDenyThreshold > 0 {
		since := req.Timestamp.Add(-s.RepeatWindow)
		denied, err := s.store.DeniedCount(req.RawCommand, since)
		if err != nil {
			// Conservative direction for the gate is deny, but an unreadable
			// history must not block commands no rule objects to. Log and move on.
			slog.Error("Shim: repeat-offense lookup failed", "error", err)
		} else if denied >= s.RepeatDenyThreshold {
			d.Allow = false
			d.ReasonCode = rules.ReasonRepeatOffense
		}
	}

	return d
}

// record writes the decision to command history and mirrors it on the bus.
func (s *Shim) record(req CommandRequest, d Decision) {
	decision := "deny"
	if d.Allow {
		decision = "allow"
	}
	if s.store != nil {
		err := s.store.RecordCommand(recall.CommandRecord{
			RawCommand:     req.RawCommand,
			Classification: d.Classification.Category,
			Severity:       d.Classification.Severity.String(),
			Decision:       decision,
			ReasonCode:     d.ReasonCode,
			Timestamp:      req.Timestamp,
		})
		if err != nil {
			slog.Error("Shim: failed to record decision", "command", req.RawCommand, "error", err)
		}
	}
	if s.bus != nil {
		s.bus.PublishDecision(&bus.CommandDecision{
			RawCommand: req.RawCommand,
			Category:   d.Classification.Category,
			RuleID:     d.RuleID,
			Allow:      d.Allow,
			ReasonCode: d.ReasonCode,
			Timestamp:  req.Timestamp,
		})
	}
}

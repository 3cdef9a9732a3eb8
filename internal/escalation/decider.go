// Package escalation decides when the system gives up local autonomy and
// delivers the resulting notices to a human.
package escalation

import (
	"time"

	"github.com/ZeroSumQuant/cake/internal/stage"
)

// Verdict is the decider's answer for one incident occurrence.
type Verdict string

const (
	Retry    Verdict = "retry"
	Escalate Verdict = "escalate"
)

// ConfidenceEngine optionally scores how likely a local retry is to work.
// Absence never breaks the decider; a fixed default confidence is used.
type ConfidenceEngine interface {
	ConfidenceFor(category string, occurrenceCount int) float64
}

// defaultConfidence is used when no engine is wired.
const defaultConfidence = 0.5

// Decider applies the deterministic threshold policy. The product goal is
// zero-escalation, so the thresholds are conservative: local retries continue
// until the repeat threshold or the retry budget is exhausted, and Escalate
// is always reachable from there. There is no infinite-retry path.
type Decider struct {
	// RepeatThreshold escalates once the same fingerprint has occurred this
	// many times inside the TTL window.
	RepeatThreshold int
	// MaxAutoRetries caps total local interventions per incident regardless
	// of fingerprint, the backstop against slow-churning distinct failures.
	MaxAutoRetries int
	// StallAfter escalates an incident that has been open this long even
	// below the repeat threshold.
	StallAfter time.Duration
	// MinConfidence escalates a repeating incident early when the confidence
	// engine scores a further retry below this floor. The fixed default
	// confidence (0.5) never trips it.
	MinConfidence float64

	confidence ConfidenceEngine
}

// NewDecider creates a decider with the given policy. engine may be nil.
func NewDecider(repeatThreshold, maxAutoRetries int, stallAfter time.Duration, engine ConfidenceEngine) *Decider {
	if repeatThreshold <= 0 {
		repeatThreshold = 3
	}
	if maxAutoRetries <= 0 {
		maxAutoRetries = 5
	}
	return &Decider{
		RepeatThreshold: repeatThreshold,
		MaxAutoRetries:  maxAutoRetries,
		StallAfter:      stallAfter,
		MinConfidence:   0.2,
		confidence:      engine,
	}
}

// Decide is idempotent: identical inputs always yield the identical verdict.
func (d *Decider) Decide(occurrenceCount int, elapsed time.Duration, st stage.Stage) Verdict {
	if occurrenceCount >= d.RepeatThreshold {
		return Escalate
	}
	if d.StallAfter > 0 && elapsed >= d.StallAfter {
		return Escalate
	}
	return Retry
}

// DecideFor folds the confidence score into the threshold policy: an already
// repeating incident the engine scores below the floor escalates one
// occurrence early rather than burning the remaining retries.
func (d *Decider) DecideFor(category string, occurrenceCount int, elapsed time.Duration, st stage.Stage) Verdict {
	if occurrenceCount >= 2 && d.Confidence(category, occurrenceCount) < d.MinConfidence {
		return Escalate
	}
	return d.Decide(occurrenceCount, elapsed, st)
}

// DecideWithRetries also accounts for the per-incident retry budget.
func (d *Decider) DecideWithRetries(occurrenceCount, retriesUsed int, elapsed time.Duration, st stage.Stage) Verdict {
	if retriesUsed >= d.MaxAutoRetries {
		return Escalate
	}
	return d.Decide(occurrenceCount, elapsed, st)
}

// Confidence reports the engine's score for a retry, or the fixed default.
func (d *Decider) Confidence(category string, occurrenceCount int) float64 {
	if d.confidence == nil {
		return defaultConfidence
	}
	return d.confidence.ConfidenceFor(category, occurrenceCount)
}

// Package stage models the fixed seven-step task lifecycle and its router.
package stage

import (
	"errors"
	"fmt"
)

// Stage is one step of the task lifecycle, in fixed order.
type Stage int

const (
	Think Stage = iota
	Research
	Reflect
	Decide
	Execute
	Validate
	Solidify
)

var stageNames = [...]string{"think", "research", "reflect", "decide", "execute", "validate", "solidify"}

// String returns the lowercase stage name.
func (s Stage) String() string {
	if s < Think || s > Solidify {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Outcome is the result a stage reports when asking to advance.
type Outcome string

const (
	// OutcomeSuccess moves to the next stage in the chain.
	OutcomeSuccess Outcome = "success"
	// OutcomeValidationFailed is only legal from Validate and returns to Decide.
	OutcomeValidationFailed Outcome = "validation_failed"
)

// ErrInvalidTransition is returned for any transition outside the fixed chain.
var ErrInvalidTransition = errors.New("invalid stage transition")

// Advance returns the next stage for the given outcome.
// The chain moves strictly forward; the single permitted backward edge is
// Validate returning to Decide on a validation failure. Solidify is final.
func Advance(current Stage, outcome Outcome) (Stage, error) {
	switch outcome {
	case OutcomeValidationFailed:
		if current == Validate {
			return Decide, nil
		}
		return current, fmt.Errorf("%w: %s cannot report %s", ErrInvalidTransition, current, outcome)
	case OutcomeSuccess:
		if current == Solidify {
			return current, fmt.Errorf("%w: %s is the final stage", ErrInvalidTransition, current)
		}
		if current < Think || current > Solidify {
			return current, fmt.Errorf("%w: unknown stage %d", ErrInvalidTransition, int(current))
		}
		return current + 1, nil
	default:
		return current, fmt.Errorf("%w: unknown outcome %q", ErrInvalidTransition, outcome)
	}
}

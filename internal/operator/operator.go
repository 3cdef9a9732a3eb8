// Package operator renders intervention messages. Render is a pure function:
// no randomness, no external calls, identical inputs yield byte-identical
// output. Tone is selected by how often the same fingerprint has recurred.
package operator

import (
	"fmt"
	"strings"

	"github.com/ZeroSumQuant/cake/internal/bus"
	"github.com/ZeroSumQuant/cake/internal/recall"
	"github.com/ZeroSumQuant/cake/internal/stage"
)

// Styler optionally rewrites a canonical message into the product voice.
// It is an external collaborator; the operator works without one.
type Styler interface {
	Style(message string) (string, error)
}

// MessageValidator is an optional external style gate applied to styled
// output. A rejected message falls back to the canonical template verbatim;
// the operator never retries with variation, so determinism is preserved.
type MessageValidator interface {
	Validate(message string) bool
}

// Operator selects and fills intervention templates.
type Operator struct {
	styler    Styler
	validator MessageValidator
}

// New creates an operator. Both collaborators may be nil.
func New(styler Styler, validator MessageValidator) *Operator {
	return &Operator{styler: styler, validator: validator}
}

// Render produces the intervention text for an error and its recall history.
func (o *Operator) Render(ev *bus.ErrorEvent, rec recall.Record, st stage.Stage) bus.InterventionMessage {
	canonical := renderCanonical(ev, rec, st)
	content := canonical

	if o.styler != nil {
		if styled, err := o.styler.Style(canonical); err == nil {
			if o.validator == nil || o.validator.Validate(styled) {
				content = styled
			}
			// Rejected or unvalidatable styling falls back to canonical.
		}
	}

	return bus.InterventionMessage{
		Category: ev.Category,
		Content:  content,
	}
}

func renderCanonical(ev *bus.ErrorEvent, rec recall.Record, st stage.Stage) string {
	tier := occurrenceTier(rec.OccurrenceCount)
	advice := adviceFor(ev.Category)
	raw := strings.TrimSpace(ev.RawText)

	var b strings.Builder
	switch tier {
	case 1:
		fmt.Fprintf(&b, "Operator (CAKE): Detected %s during %s.\n", ev.Category, st)
		fmt.Fprintf(&b, "Error: %s\n", raw)
		fmt.Fprintf(&b, "Fix: %s", advice)
	case 2:
		fmt.Fprintf(&b, "Operator (CAKE): %s again during %s. This is the second occurrence of the same failure.\n", ev.Category, st)
		fmt.Fprintf(&b, "Error: %s\n", raw)
		fmt.Fprintf(&b, "The previous fix did not hold. Stop, re-read the error, and %s", strings.ToLower(advice[:1])+advice[1:])
	default:
		fmt.Fprintf(&b, "Operator (CAKE): %s has now recurred %d times during %s.\n", ev.Category, rec.OccurrenceCount, st)
		fmt.Fprintf(&b, "Error: %s\n", raw)
		b.WriteString("Do not retry the same approach. Change strategy or this incident will be escalated.")
	}
	return b.String()
}

// occurrenceTier maps a repeat count onto a message tier: first occurrence,
// second occurrence, or repeated-enough-to-consider-escalation.
func occurrenceTier(count int) int {
	switch {
	case count <= 1:
		return 1
	case count == 2:
		return 2
	default:
		return 3
	}
}

// adviceFor returns the category-specific corrective instruction.
func adviceFor(category string) string {
	if advice, ok := categoryAdvice[category]; ok {
		return advice
	}
	return "Read the full error output, identify the root cause, and address it before retrying."
}

var categoryAdvice = map[string]string{
	"module_missing":    "Install the missing module or correct the import path before rerunning.",
	"syntax_error":      "Open the named file at the reported location and fix the syntax before rerunning.",
	"type_error":        "Check the types at the reported call site; the arguments do not match what the code expects.",
	"test_failure":      "Run the failing test in isolation, read its assertion, and fix the code it exercises.",
	"build_failure":     "Fix the compile errors in the order reported; later errors are often cascades of the first.",
	"panic_crash":       "Read the stack trace from the top; fix the frame where your code first appears.",
	"permission_denied": "Check file ownership and mode on the path involved; do not escalate privileges to bypass it.",
	"network_failure":   "Verify the target host and port are reachable and retry once connectivity is confirmed.",
	"out_of_memory":     "Reduce the working set or batch the operation; do not simply rerun it.",
	"generic_error":     "Read the full error output, identify the root cause, and address it before retrying.",
}

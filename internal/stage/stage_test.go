package stage

import (
	"errors"
	"testing"
)

func TestForwardChain(t *testing.T) {
	want := []Stage{Research, Reflect, Decide, Execute, Validate, Solidify}
	current := Think
	for _, next := range want {
		got, err := Advance(current, OutcomeSuccess)
		if err != nil {
			t.Fatalf("advance from %s: %v", current, err)
		}
		if got != next {
			t.Fatalf("advance from %s = %s, want %s", current, got, next)
		}
		current = got
	}
}

func TestValidateFailureReturnsToDecide(t *testing.T) {
	got, err := Advance(Validate, OutcomeValidationFailed)
	if err != nil {
		t.Fatal(err)
	}
	if got != Decide {
		t.Fatalf("got %s, want %s", got, Decide)
	}
}

func TestValidationFailedIllegalElsewhere(t *testing.T) {
	for _, s := range []Stage{Think, Research, Reflect, Decide, Execute, Solidify} {
		got, err := Advance(s, OutcomeValidationFailed)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s reporting validation_failed: err = %v, want ErrInvalidTransition", s, err)
		}
		if got != s {
			t.Fatalf("%s moved to %s on a rejected transition", s, got)
		}
	}
}

func TestSolidifyIsFinal(t *testing.T) {
	got, err := Advance(Solidify, OutcomeSuccess)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if got != Solidify {
		t.Fatalf("final stage moved to %s", got)
	}
}

func TestUnknownOutcomeRejected(t *testing.T) {
	if _, err := Advance(Execute, Outcome("sideways")); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestStageString(t *testing.T) {
	if Think.String() != "think" || Solidify.String() != "solidify" {
		t.Fatal("unexpected stage names")
	}
	if Stage(99).String() != "stage(99)" {
		t.Fatalf("out-of-range stage name: %s", Stage(99))
	}
}

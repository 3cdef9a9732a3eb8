package operator

import (
	"errors"
	"strings"
	"testing"

	"github.com/ZeroSumQuant/cake/internal/bus"
	"github.com/ZeroSumQuant/cake/internal/recall"
	"github.com/ZeroSumQuant/cake/internal/rules"
	"github.com/ZeroSumQuant/cake/internal/stage"
)

func testEvent() *bus.ErrorEvent {
	return &bus.ErrorEvent{
		Fingerprint: "abc123",
		Category:    rules.CategoryModuleMissing,
		Severity:    rules.SeverityMedium,
		RawText:     "ModuleNotFoundError: No module named 'requests'",
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	op := New(nil, nil)
	ev := testEvent()
	rec := recall.Record{Fingerprint: "abc123", OccurrenceCount: 1}

	first := op.Render(ev, rec, stage.Execute)
	for i := 0; i < 10; i++ {
		again := op.Render(ev, rec, stage.Execute)
		if again.Content != first.Content {
			t.Fatalf("render %d differed:\n%s\nvs\n%s", i, again.Content, first.Content)
		}
	}
}

func TestRenderTiers(t *testing.T) {
	op := New(nil, nil)
	ev := testEvent()

	one := op.Render(ev, recall.Record{OccurrenceCount: 1}, stage.Execute).Content
	two := op.Render(ev, recall.Record{OccurrenceCount: 2}, stage.Execute).Content
	five := op.Render(ev, recall.Record{OccurrenceCount: 5}, stage.Execute).Content

	if one == two || two == five || one == five {
		t.Fatal("occurrence tiers rendered identical messages")
	}
	if !strings.Contains(two, "second occurrence") {
		t.Fatalf("tier 2 message missing repeat wording:\n%s", two)
	}
	if !strings.Contains(five, "recurred 5 times") {
		t.Fatalf("tier 3 message missing recurrence count:\n%s", five)
	}
	if !strings.Contains(five, "escalated") {
		t.Fatalf("tier 3 message missing escalation warning:\n%s", five)
	}
}

func TestRenderIncludesStageAndCategory(t *testing.T) {
	op := New(nil, nil)
	msg := op.Render(testEvent(), recall.Record{OccurrenceCount: 1}, stage.Validate)
	if !strings.Contains(msg.Content, "module_missing") {
		t.Fatalf("message missing category:\n%s", msg.Content)
	}
	if !strings.Contains(msg.Content, "validate") {
		t.Fatalf("message missing stage:\n%s", msg.Content)
	}
	if msg.Category != rules.CategoryModuleMissing {
		t.Fatalf("message category = %s", msg.Category)
	}
}

type upperStyler struct{}

func (upperStyler) Style(m string) (string, error) { return strings.ToUpper(m), nil }

type failingStyler struct{}

func (failingStyler) Style(string) (string, error) { return "", errors.New("style service down") }

type rejectAll struct{}

func (rejectAll) Validate(string) bool { return false }

type acceptAll struct{}

func (acceptAll) Validate(string) bool { return true }

func TestStyledOutputUsedWhenValidated(t *testing.T) {
	op := New(upperStyler{}, acceptAll{})
	msg := op.Render(testEvent(), recall.Record{OccurrenceCount: 1}, stage.Execute)
	if msg.Content != strings.ToUpper(msg.Content) {
		t.Fatalf("expected styled output:\n%s", msg.Content)
	}
}

func TestRejectedStyleFallsBackToCanonical(t *testing.T) {
	canonical := New(nil, nil).Render(testEvent(), recall.Record{OccurrenceCount: 1}, stage.Execute)
	styled := New(upperStyler{}, rejectAll{}).Render(testEvent(), recall.Record{OccurrenceCount: 1}, stage.Execute)
	if styled.Content != canonical.Content {
		t.Fatalf("rejected style did not fall back:\n%s\nvs\n%s", styled.Content, canonical.Content)
	}
}

func TestStylerErrorFallsBackToCanonical(t *testing.T) {
	canonical := New(nil, nil).Render(testEvent(), recall.Record{OccurrenceCount: 1}, stage.Execute)
	styled := New(failingStyler{}, nil).Render(testEvent(), recall.Record{OccurrenceCount: 1}, stage.Execute)
	if styled.Content != canonical.Content {
		t.Fatal("styler error did not fall back to canonical")
	}
}

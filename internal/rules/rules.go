// Package rules provides the precompiled dangerous-command and error-signature
// rule sets. Rules are configuration, not learned state: they are compiled once
// at startup and read-only afterwards.
package rules

import (
	"fmt"
	"regexp"
)

// Severity ranks how bad a match is.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	}
	return "unknown"
}

// Action is what a matching rule asks the caller to do.
type Action string

const (
	ActionAllow Action = "allow"
	ActionDeny  Action = "deny"
	ActionFlag  Action = "flag"
)

// PatternRule pairs a regex signature with its classification.
type PatternRule struct {
	ID        string
	Signature string
	Category  string
	Severity  Severity
	Action    Action
}

// Match is the result of classifying a piece of text against a rule set.
type Match struct {
	Rule     PatternRule
	Category string
	Severity Severity
	Action   Action
}

// compiledRule is a PatternRule with its regex ready to run.
type compiledRule struct {
	rule PatternRule
	re   *regexp.Regexp
}

// Set is an ordered, precompiled rule set. Evaluation is first-match-wins,
// which keeps classification O(rule count) with no backtracking surprises.
type Set struct {
	rules []compiledRule
}

// Compile builds a Set from the given rules. A rule whose signature fails to
// compile is an error: a silently dropped deny rule is a hole in the fence.
func Compile(rules []PatternRule) (*Set, error) {
	s := &Set{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		re, err := regexp.Compile(r.Signature)
		if err != nil {
			return nil, fmt.Errorf("compile rule %s (%q): %w", r.ID, r.Signature, err)
		}
		s.rules = append(s.rules, compiledRule{rule: r, re: re})
	}
	return s, nil
}

// MustCompile is Compile for the bundled rule sets, which are tested.
func MustCompile(rules []PatternRule) *Set {
	s, err := Compile(rules)
	if err != nil {
		panic(err)
	}
	return s
}

// Match returns the first rule matching text, or nil when nothing matches.
func (s *Set) Match(text string) *Match {
	for _, cr := range s.rules {
		if cr.re.MatchString(text) {
			return &Match{
				Rule:     cr.rule,
				Category: cr.rule.Category,
				Severity: cr.rule.Severity,
				Action:   cr.rule.Action,
			}
		}
	}
	return nil
}

// Len returns the number of rules in the set.
func (s *Set) Len() int { return len(s.rules) }

// FromSignatures builds deny rules out of bare signature strings, as supplied
// by the dangerousCommandPatterns config option. Ordering is preserved.
func FromSignatures(signatures []string, category string, severity Severity) []PatternRule {
	out := make([]PatternRule, 0, len(signatures))
	for i, sig := range signatures {
		out = append(out, PatternRule{
			ID:        fmt.Sprintf("%s_%d", category, i),
			Signature: sig,
			Category:  category,
			Severity:  severity,
			Action:    ActionDeny,
		})
	}
	return out
}

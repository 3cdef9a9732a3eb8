package controller

import (
	"context"

	"github.com/ZeroSumQuant/cake/internal/rules"
)

// Classification is the refined view of an error an external classifier gives.
type Classification struct {
	Category  string
	Severity  rules.Severity
	Signature string
}

// Classifier is the optional external (NLP/ML) error classifier. The core
// treats it as a black box: when it errors or is absent, the rule-derived
// category on the event stands.
type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

// SnapshotManager lets the controller checkpoint before recovering from a
// higher-severity incident so partially-applied changes can be reversed.
type SnapshotManager interface {
	Snapshot(ctx context.Context) error
	Rollback(ctx context.Context) error
}

package cli

import (
	"fmt"

	"github.com/ZeroSumQuant/cake/internal/config"
	"github.com/ZeroSumQuant/cake/internal/recall"
	"github.com/ZeroSumQuant/cake/internal/rules"
)

// commandRuleSet compiles the bundled dangerous-command rules plus any
// configured patterns. Configured patterns are evaluated first so operators
// can tighten the gate without rebuilding.
func commandRuleSet(cfg *config.Config) (*rules.Set, error) {
	combined := rules.FromSignatures(cfg.Shim.DangerousCommandPatterns, "configured", rules.SeverityHigh)
	combined = append(combined, rules.DefaultCommandRules()...)
	set, err := rules.Compile(combined)
	if err != nil {
		return nil, fmt.Errorf("compile command rules: %w", err)
	}
	return set, nil
}

// errorRuleSet compiles the bundled error signatures plus any configured ones.
func errorRuleSet(cfg *config.Config) (*rules.Set, error) {
	combined := rules.FromSignatures(cfg.Watchdog.ErrorSignatures, "configured_error", rules.SeverityMedium)
	for i := range combined {
		combined[i].Action = rules.ActionFlag
	}
	combined = append(combined, rules.DefaultErrorRules()...)
	set, err := rules.Compile(combined)
	if err != nil {
		return nil, fmt.Errorf("compile error rules: %w", err)
	}
	return set, nil
}

// openStore opens the RecallDB configured under the data dir.
func openStore(cfg *config.Config) (*recall.Store, error) {
	dbPath, err := cfg.DBPath()
	if err != nil {
		return nil, err
	}
	store, err := recall.NewStore(dbPath)
	if err != nil {
		return nil, err
	}
	store.WriteRetries = cfg.Recall.WriteRetries
	return store, nil
}

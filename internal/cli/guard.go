package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ZeroSumQuant/cake/internal/config"
	"github.com/ZeroSumQuant/cake/internal/ptyshim"
)

// errCommandDenied makes Execute return non-zero while deferred cleanup
// (the store handle in particular) still runs.
var errCommandDenied = errors.New("command denied")

var guardCmd = &cobra.Command{
	Use:   "guard -- <command...>",
	Short: "Gate a command before execution",
	Long: `Evaluates a command against the dangerous-command rules and the recall
history, exactly as the inline shim would. Exit code 0 means allow, 1 means
deny. Wire this as the checkpoint in front of your agent's process spawn:

  cake guard -- rm -rf /tmp/scratch && rm -rf /tmp/scratch`,
	Args:          cobra.MinimumNArgs(1),
	RunE:          runGuard,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(guardCmd)
}

func runGuard(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open recall db: %w", err)
	}
	defer store.Close()

	cmdRules, err := commandRuleSet(cfg)
	if err != nil {
		return err
	}

	shim := ptyshim.New(cmdRules, store, nil, cfg.Shim.ValidationBudget())
	shim.RepeatDenyThreshold = cfg.Shim.RepeatDenyThreshold
	shim.RepeatWindow = cfg.Recall.TTL()

	raw := strings.Join(args, " ")
	d := shim.Evaluate(ptyshim.CommandRequest{RawCommand: raw})

	if d.Allow {
		fmt.Printf("%s %s (%s)\n", color.GreenString("ALLOW"), raw, d.ReasonCode)
		return nil
	}
	fmt.Printf("%s %s (%s)\n", color.RedString("DENY"), raw, d.ReasonCode)
	if d.Classification.Category != "" {
		fmt.Printf("  category: %s, severity: %s\n", d.Classification.Category, d.Classification.Severity)
	}
	return errCommandDenied
}

package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ZeroSumQuant/cake/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and recall state",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	printHeader("Status")

	path, _ := config.ConfigPath()
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  Config:     %s\n", path)
	} else {
		fmt.Printf("  Config:     %s %s\n", path, color.YellowString("(defaults, run `cake onboard`)"))
	}

	fmt.Printf("  Budgets:    detection %v, validation %v\n",
		cfg.Watchdog.DetectionBudget(), cfg.Shim.ValidationBudget())
	fmt.Printf("  Recall TTL: %v (purge every %v)\n", cfg.Recall.TTL(), cfg.Recall.PurgeInterval)
	fmt.Printf("  Escalation: after %d repeats or %d retries, stall %v\n",
		cfg.Escalation.RepeatThreshold, cfg.Escalation.MaxAutoRetries, cfg.Escalation.StallAfter)

	source := "stdin"
	switch {
	case cfg.Sources.Kafka.Enabled:
		source = fmt.Sprintf("kafka %s topic=%s", cfg.Sources.Kafka.Brokers, cfg.Sources.Kafka.Topic)
	case cfg.Sources.File.Enabled:
		source = fmt.Sprintf("file %s", cfg.Sources.File.Path)
	}
	fmt.Printf("  Source:     %s\n", source)

	notify := "log only"
	if cfg.Notify.Slack.Enabled {
		notify = fmt.Sprintf("slack %s", cfg.Notify.Slack.Channel)
	}
	fmt.Printf("  Notify:     %s\n", notify)

	store, err := openStore(cfg)
	if err != nil {
		fmt.Printf("  Recall DB:  %s\n", color.RedString("unavailable: %v", err))
		return nil
	}
	defer store.Close()

	st, err := store.CollectStats()
	if err != nil {
		fmt.Printf("  Recall DB:  %s\n", color.RedString("stats failed: %v", err))
		return nil
	}
	fmt.Printf("  Recall DB:  %d active, %d expired, %d decisions, %d pending notices\n",
		st.ActiveFingerprints, st.ExpiredRecords, st.CommandDecisions, st.PendingNotices)
	return nil
}

package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ZeroSumQuant/cake/internal/config"
	"github.com/ZeroSumQuant/cake/internal/recall"
)

var recallCmd = &cobra.Command{
	Use:   "recall",
	Short: "Inspect and maintain the recall database",
}

var recallStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show recall database counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		st, err := store.CollectStats()
		if err != nil {
			return fmt.Errorf("collect stats: %w", err)
		}
		printHeader("Recall")
		fmt.Printf("  Active fingerprints: %d\n", st.ActiveFingerprints)
		fmt.Printf("  Expired (unpurged):  %d\n", st.ExpiredRecords)
		fmt.Printf("  Command decisions:   %d\n", st.CommandDecisions)
		fmt.Printf("  Pending notices:     %d\n", st.PendingNotices)
		return nil
	},
}

var recallPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove expired fingerprint records",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.PurgeExpired()
		if err != nil {
			return err
		}
		fmt.Printf("Purged %d expired record(s)\n", n)
		return nil
	},
}

var (
	historyLimit  int
	historyPrefix string
)

var recallHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent command decisions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		var records []recall.CommandRecord
		var err2 error
		if historyPrefix != "" {
			records, err2 = store.CommandsByPrefix(historyPrefix, historyLimit)
		} else {
			records, err2 = store.RecentCommands(historyLimit)
		}
		if err2 != nil {
			return err2
		}
		if len(records) == 0 {
			fmt.Println("No command history")
			return nil
		}
		for _, r := range records {
			verdict := color.GreenString("allow")
			if r.Decision == "deny" {
				verdict = color.RedString("deny ")
			}
			fmt.Printf("%s  %s  %-20s  %s\n",
				r.Timestamp.Format("2006-01-02 15:04:05"), verdict, r.ReasonCode, r.RawCommand)
		}
		return nil
	},
}

func init() {
	recallHistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of decisions to show")
	recallHistoryCmd.Flags().StringVar(&historyPrefix, "prefix", "", "only show commands starting with this prefix")
	recallCmd.AddCommand(recallStatsCmd)
	recallCmd.AddCommand(recallPurgeCmd)
	recallCmd.AddCommand(recallHistoryCmd)
	rootCmd.AddCommand(recallCmd)
}

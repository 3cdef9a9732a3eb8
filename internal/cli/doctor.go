package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ZeroSumQuant/cake/internal/config"
	"github.com/ZeroSumQuant/cake/internal/source"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, database and source connectivity",
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func check(name string, err error) bool {
	if err != nil {
		fmt.Printf("  %s %s: %v\n", color.RedString("✗"), name, err)
		return false
	}
	fmt.Printf("  %s %s\n", color.GreenString("✓"), name)
	return true
}

func runDoctor(cmd *cobra.Command, args []string) error {
	printHeader("Doctor")
	healthy := true

	cfg, err := config.Load()
	if !check("config", err) {
		return fmt.Errorf("cannot continue without config")
	}

	path, _ := config.ConfigPath()
	if _, statErr := os.Stat(path); statErr != nil {
		fmt.Printf("  %s config file missing, using defaults (run `cake onboard`)\n", color.YellowString("!"))
	}

	_, err = commandRuleSet(cfg)
	healthy = check("command rules compile", err) && healthy

	_, err = errorRuleSet(cfg)
	healthy = check("error rules compile", err) && healthy

	store, err := openStore(cfg)
	if check("recall database", err) {
		_, statsErr := store.CollectStats()
		healthy = check("recall queries", statsErr) && healthy
		store.Close()
	} else {
		healthy = false
	}

	if cfg.Sources.File.Enabled {
		_, statErr := os.Stat(cfg.Sources.File.Path)
		healthy = check(fmt.Sprintf("transcript file %s", cfg.Sources.File.Path), statErr) && healthy
	}

	if cfg.Sources.Kafka.Enabled {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		pingErr := source.Ping(ctx, cfg.Sources.Kafka.Brokers)
		cancel()
		healthy = check(fmt.Sprintf("kafka brokers %s", cfg.Sources.Kafka.Brokers), pingErr) && healthy
	}

	if cfg.Notify.Slack.Enabled && cfg.Notify.Slack.Token == "" {
		fmt.Printf("  %s slack enabled but no token configured\n", color.RedString("✗"))
		healthy = false
	}

	fmt.Println()
	if !healthy {
		fmt.Println(color.RedString("Some checks failed"))
		os.Exit(1)
	}
	fmt.Println(color.GreenString("All checks passed"))
	return nil
}

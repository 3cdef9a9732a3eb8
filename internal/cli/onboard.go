package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ZeroSumQuant/cake/internal/config"
)

var onboardForce bool

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Write a default configuration file",
	RunE:  runOnboard,
}

func init() {
	onboardCmd.Flags().BoolVar(&onboardForce, "force", false, "overwrite an existing config file")
	rootCmd.AddCommand(onboardCmd)
}

func runOnboard(cmd *cobra.Command, args []string) error {
	printHeader("Onboard")

	path, err := config.ConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil && !onboardForce {
		fmt.Printf("Config already exists at %s\n", path)
		fmt.Println("Use --force to overwrite it with defaults.")
		return nil
	}

	cfg := config.DefaultConfig()
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("%s Wrote default config to %s\n", color.GreenString("✓"), path)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  cake doctor            verify the setup")
	fmt.Println("  cake monitor           watch stdin for agent errors")
	fmt.Println("  cake monitor -f FILE   follow a transcript file")
	fmt.Println("  cake guard -- CMD      gate a command before running it")
	return nil
}

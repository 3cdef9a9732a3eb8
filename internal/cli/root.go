// Package cli implements the cake command line interface.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/ZeroSumQuant/cake/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"   ____    _    _  __ _____\n" +
		"  / ___|  / \\  | |/ /| ____|\n" +
		" | |     / _ \\ | ' / |  _|\n" +
		" | |___ / ___ \\| . \\ | |___\n" +
		"  \\____/_/   \\_\\_|\\_\\|_____|\n"
)

var rootCmd = &cobra.Command{
	Use:   "cake",
	Short: "CAKE - autonomous agent supervisor",
	Long: color.CyanString(logo) +
		"\nA deterministic supervisor that watches an agent's output stream,\ngates its commands, remembers prior failures, and intervenes before\nanyone has to.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the cake version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("cake %s\n", version)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

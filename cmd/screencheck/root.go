package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/goodtune/screencheck/internal/config"
)

var (
	version    = "dev"
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "screencheck",
	Short: "ScreenCheck - screen time watchdog",
	Long: `ScreenCheck accumulates how long this machine has been in use and, once a
configured allowance or time of day is reached, locks the display and runs an
enforcement command such as a shutdown.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to server command when no subcommand is provided
		return runServer(cmd, args)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to configuration file")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

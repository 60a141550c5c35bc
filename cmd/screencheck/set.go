package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/goodtune/screencheck/internal/usage"
)

var setForce bool

var setCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Write a setting to the store",
	Long: `Write a single setting to the settings store. The daemon picks it up on
its next cycle. Values are validated before they are written.`,
	Example: `  screencheck set allowed_min 90
  screencheck set action_mode time
  screencheck set action_time 21:30
  screencheck set session "oldTime:0;lastModified:0"`,
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

func init() {
	setCmd.Flags().BoolVar(&setForce, "force", false, "Write keys the daemon does not read")
	rootCmd.AddCommand(setCmd)
}

func runSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	if !usage.IsKnownKey(key) {
		if !setForce {
			return fmt.Errorf("unknown setting %q (use --force to write it anyway)", key)
		}
	} else if err := usage.ValidateSetting(key, value); err != nil {
		return err
	}

	_, store, _, err := cliContext()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := store.Settings().Set(ctx, key, value); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	green := color.New(color.FgGreen, color.Bold)
	green.Fprintf(os.Stdout, "✅ %s = %s\n", key, value)
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/goodtune/screencheck/internal/usage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored session and what the next cycle would decide",
	Long: `Read the settings store and preview the next monitoring cycle at the
current time. Nothing is written.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	_, store, seed, err := cliContext()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	values, err := store.Settings().All(ctx)
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}

	settings, parseErr := usage.ParseSettings(values, seed)

	state := usage.InitialState()
	var stateErr error
	if raw, ok := values[usage.KeySession]; ok {
		state, stateErr = usage.DecodeState(raw)
	}

	now := time.Now().Truncate(time.Millisecond)
	next, accrual := usage.Accrue(state, now, settings.CycleMinutes, settings.IdleResetMinutes())
	shouldAct := settings.Policy().ShouldAct(next, settings.AllowedMinutes, now)

	printStatus(os.Stdout, settings, state, next, accrual, shouldAct, now)

	red := color.New(color.FgRed, color.Bold)
	for _, se := range usage.SettingErrors(parseErr) {
		red.Printf("⚠️  %s: %v (using %s)\n", se.Key, se.Err, seed.Values()[se.Key])
	}
	if stateErr != nil {
		red.Printf("⚠️  session: %v\n", stateErr)
	}

	return nil
}

// printStatus prints the status report with colors
func printStatus(w io.Writer, s usage.Settings, stored, next usage.SessionState, accrual usage.Accrual, shouldAct bool, now time.Time) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	fmt.Fprintln(w)
	cyan.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Fprintln(w, "SCREEN CHECK STATUS")
	cyan.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Machine time:     %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Last checkpoint:  %s\n", stored.LastCheckpoint.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Accumulated:      %d of %d minutes\n", stored.AccumulatedMinutes, s.AllowedMinutes)
	fmt.Fprintf(w, "Cycle length:     %d minutes\n", s.CycleMinutes)
	fmt.Fprintf(w, "Idle reset after: %d hours\n", s.IdleResetHours)

	switch s.Mode {
	case usage.ModeTimeOfDay:
		fmt.Fprintf(w, "Trigger:          at %s (%s compare)\n", s.TriggerTime, s.Compare)
	default:
		fmt.Fprintf(w, "Trigger:          after %d minutes\n", s.AllowedMinutes)
	}
	if s.CommandPath != "" {
		fmt.Fprintf(w, "Command:          %s\n", s.CommandPath)
	} else {
		fmt.Fprintf(w, "Command:          (not configured)\n")
	}
	fmt.Fprintln(w)

	cyan.Fprint(w, "Next cycle:       ")
	switch {
	case accrual.Reset:
		yellow.Fprintln(w, "RESET")
		fmt.Fprintf(w, "                  → %d minute gap, accumulator returns to 0\n", accrual.GapMinutes)
	case accrual.Counted:
		green.Fprintf(w, "+%d minutes\n", accrual.GapMinutes)
	default:
		yellow.Fprintln(w, "GAP DISCARDED")
		fmt.Fprintf(w, "                  → %d minute gap exceeds the %d minute cycle\n", accrual.GapMinutes, s.CycleMinutes)
	}

	cyan.Fprint(w, "Decision:         ")
	if shouldAct {
		red.Fprintln(w, "ACT")
		fmt.Fprintln(w, "                  → Display will be locked")
		fmt.Fprintln(w, "                  → Command will be launched")
	} else {
		green.Fprintln(w, "WAIT")
		fmt.Fprintf(w, "                  → Estimated at %s\n", usage.EstimatedActionTime(s, next).Format("2006-01-02 15:04"))
	}

	fmt.Fprintln(w)
	cyan.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintln(w)
}

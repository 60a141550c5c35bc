package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/goodtune/screencheck/internal/storage"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent monitoring cycles",
	Example: `  screencheck history
  screencheck history --limit 100 --json`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of cycles to show")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print records as JSON lines")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	_, store, _, err := cliContext()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	records, err := store.Cycles().Recent(ctx, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	if historyJSON {
		return printHistoryJSON(os.Stdout, records)
	}
	printHistory(os.Stdout, records)
	return nil
}

func printHistoryJSON(w io.Writer, records []storage.CycleRecord) error {
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

// printHistory prints records newest first with flagged cycles highlighted
func printHistory(w io.Writer, records []storage.CycleRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No cycles recorded")
		return
	}

	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tMODE\tGAP\tUSED\tLIMIT\tFLAGS")
	for _, rec := range records {
		gap := fmt.Sprintf("%d", rec.GapMinutes)
		if !rec.GapCounted {
			gap += " (discarded)"
		}

		flags := ""
		switch {
		case rec.ShouldAct:
			flags = red.Sprint("ACT")
		case rec.Reset:
			flags = yellow.Sprint("RESET")
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			rec.ObservedAt.Local().Format("2006-01-02 15:04:05"),
			rec.Mode,
			gap,
			rec.AccumulatedMinutes,
			rec.AllowedMinutes,
			flags,
		)
	}
	_ = tw.Flush()
}

package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/zatekoja/docenricher/internal/domain/entities"
)

var runsFlags struct {
	limit int
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent batch passes from the ledger",
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVar(&runsFlags.limit, "limit", 20, "Number of runs to show")
}

func runRuns(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if !a.cfg.Database.Enabled {
		return errors.New("batch run ledger is disabled (set LEDGER_ENABLED=true)")
	}
	ledger, err := a.ledger(ctx)
	if err != nil {
		return err
	}

	runs, err := ledger.ListRecent(ctx, runsFlags.limit)
	if err != nil {
		return err
	}
	printRuns(cmd.OutOrStdout(), runs)
	return nil
}

func printRuns(out io.Writer, runs []*entities.BatchRun) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No batch runs recorded.")
		return
	}
	for _, run := range runs {
		duration := "running"
		if run.FinishedAt != nil {
			duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(out, "%s  %-18s  %-9s  %s  total=%d completed=%d deferred=%d skipped=%d failed=%d\n",
			run.StartedAt.Format(time.RFC3339), run.Action, run.Status, duration,
			run.Total, run.Completed, run.Deferred, run.Skipped, run.Failed)
		if run.LastError != "" {
			fmt.Fprintf(out, "    last error: %s\n", run.LastError)
		}
	}
}

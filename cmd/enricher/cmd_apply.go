package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zatekoja/docenricher/internal/application/services"
	"github.com/zatekoja/docenricher/internal/domain/repositories"
	"github.com/zatekoja/docenricher/pkg/config"
)

var applyFlags struct {
	action   string
	query    string
	node     string
	interval time.Duration
	workers  int
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Run one action over every matching document",
	Long: "apply searches the repository and runs one action on each result.\n" +
		"Documents whose rendition is not ready are deferred; the next pass picks\n" +
		"them up. With --interval the pass repeats until interrupted.",
	RunE: runApply,
}

func init() {
	f := applyCmd.Flags()
	f.StringVar(&applyFlags.action, "action", "", "Action kind (default APPLIER_ACTION)")
	f.StringVar(&applyFlags.query, "query", "", "AFTS query overriding the default selection")
	f.StringVar(&applyFlags.node, "node", "", "Process a single node id and exit")
	f.DurationVar(&applyFlags.interval, "interval", 0, "Repeat the pass at this interval (default APPLIER_INTERVAL)")
	f.IntVar(&applyFlags.workers, "workers", 0, "Concurrent documents (default APPLIER_WORKERS)")
}

// mergeApplyFlags lets explicit flags win over the environment.
func mergeApplyFlags(cmd *cobra.Command, cfg *config.ApplierConfig) error {
	flags := cmd.Flags()
	if flags.Changed("action") {
		cfg.Action = applyFlags.action
	}
	if flags.Changed("query") {
		cfg.Query = applyFlags.query
	}
	if flags.Changed("interval") {
		cfg.Interval = applyFlags.interval
	}
	if flags.Changed("workers") {
		if applyFlags.workers <= 0 {
			return fmt.Errorf("--workers must be positive, got %d", applyFlags.workers)
		}
		cfg.Workers = applyFlags.workers
	}
	if cfg.Interval < 0 {
		return errors.New("--interval must not be negative")
	}
	return nil
}

func resolveQuery(cfg config.ApplierConfig, action *services.Action) string {
	if q := strings.TrimSpace(cfg.Query); q != "" {
		return q
	}
	return services.BuildDefaultQuery(cfg.RootFolderID, action)
}

func runApply(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := mergeApplyFlags(cmd, &a.cfg.Applier); err != nil {
		return err
	}

	dispatcher, err := a.dispatcher(a.cfg.Applier.ClassifyTermList, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build actions")
	}
	actions, err := dispatcher.ValidateKinds(a.cfg.Applier.Action)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid action")
	}
	action := actions[0]

	var runs repositories.RunRepository
	if a.cfg.Database.Enabled {
		ledger, err := a.ledger(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("batch run ledger unavailable, continuing without it")
		} else {
			runs = ledger
		}
	}

	criteria := repositories.SearchCriteria{
		Query:    resolveQuery(a.cfg.Applier, action),
		PageSize: a.cfg.Applier.PageSize,
	}
	svc := services.NewBatchService(a.repo, action, runs, criteria, a.cfg.Applier.Workers)

	if applyFlags.node != "" {
		outcome, err := svc.RunOnce(ctx, applyFlags.node)
		if err != nil {
			return fmt.Errorf("%s failed on %s: %w", action.Kind(), applyFlags.node, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", action.Kind(), applyFlags.node, outcome)
		return nil
	}

	effective := svc.Criteria()
	log.Info().
		Str("action", string(action.Kind())).
		Str("query", effective.Query).
		Int("page_size", effective.PageSize).
		Int("workers", a.cfg.Applier.Workers).
		Dur("interval", a.cfg.Applier.Interval).
		Msg("starting batch")

	if a.cfg.Applier.Interval > 0 {
		if err := a.startAdmin(nil, runs); err != nil {
			return fmt.Errorf("failed to start admin endpoint: %w", err)
		}
		return svc.RunEvery(ctx, a.cfg.Applier.Interval)
	}

	start := time.Now()
	summary, err := svc.Run(ctx)
	if summary != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s pass finished in %s: %s\n", action.Kind(), time.Since(start).Round(time.Millisecond), summary)
	}
	if err != nil {
		return fmt.Errorf("batch pass ended early: %w", err)
	}
	return nil
}

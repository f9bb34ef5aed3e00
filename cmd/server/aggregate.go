package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jengzang/safety-backend-go/internal/analysis"
	"github.com/jengzang/safety-backend-go/internal/analysis/risk"
	"github.com/jengzang/safety-backend-go/internal/database"
	"github.com/jengzang/safety-backend-go/internal/repository"
	"github.com/jengzang/safety-backend-go/internal/service"
)

var (
	aggregateWorkers int
	aggregateJob     string
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Recompute risk scores for every cell with incident data",
	RunE:  runAggregate,
}

func init() {
	aggregateCmd.Flags().IntVar(&aggregateWorkers, "workers", 0, "Cells scored concurrently (default from config)")
	aggregateCmd.Flags().StringVar(&aggregateJob, "job", risk.JobName, "Registered batch job to run")
	rootCmd.AddCommand(aggregateCmd)
}

func runAggregate(cmd *cobra.Command, args []string) error {
	if names := analysis.Names(); !slices.Contains(names, aggregateJob) {
		return fmt.Errorf("unknown job %q (available: %s)", aggregateJob, strings.Join(names, ", "))
	}

	cfg, db, err := setup()
	if err != nil {
		return err
	}
	defer database.Close()

	workers := cfg.AggregationWorkers
	if aggregateWorkers > 0 {
		workers = aggregateWorkers
	}

	ctx, stop := signalContext()
	defer stop()

	svc := service.NewAggregationService(db, repository.NewJobRunRepository(db), aggregateJob, workers)
	summary, err := svc.Run(ctx)
	if err != nil {
		return fmt.Errorf("%s failed: %w", aggregateJob, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Updated %d cells, %d failed in %s\n",
		summary.ItemsUpdated, summary.ItemsFailed, summary.Duration)
	return nil
}

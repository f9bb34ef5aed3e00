package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jengzang/safety-backend-go/internal/database"
	"github.com/jengzang/safety-backend-go/internal/ingest"
	"github.com/jengzang/safety-backend-go/internal/repository"
)

var (
	ingestRegistry string
	ingestSlug     string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load records from the sources in the registry",
	Long:  "Runs every enabled source of the registry, or only --slug. Each source run is recorded as job ingest:<slug>.",
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestRegistry, "registry", "", "Path to the source registry (default from config)")
	ingestCmd.Flags().StringVar(&ingestSlug, "slug", "", "Run only this source, even when disabled")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}
	defer database.Close()

	path := cfg.SourceRegistry
	if ingestRegistry != "" {
		path = ingestRegistry
	}
	sources, err := ingest.LoadSources(path)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	deps := ingest.Deps{
		Incidents: repository.NewIncidentRepository(db),
		Signals:   repository.NewSignalRepository(db),
		Alerts:    repository.NewAlertRepository(db),
	}
	stored, err := ingest.RunSources(ctx, sources, ingestSlug, deps, repository.NewJobRunRepository(db))
	fmt.Fprintf(cmd.OutOrStdout(), "Stored %d records\n", stored)
	return err
}

package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	// Import job packages to register them
	_ "github.com/jengzang/safety-backend-go/internal/analysis/risk"

	"github.com/jengzang/safety-backend-go/internal/config"
	"github.com/jengzang/safety-backend-go/internal/database"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "safety-server",
	Short:         "Safety score and safer route backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ./config.yaml if present)")
}

// setup loads configuration and opens the database
func setup() (*config.Config, *database.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	if err := database.Init(database.Config{Driver: cfg.DBDriver, Path: cfg.DBPath}); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Printf("[Database] Opened %s store at %s", cfg.DBDriver, cfg.DBPath)
	return cfg, database.GetDB(), nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

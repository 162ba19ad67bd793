// Command clinicctl is the operator CLI for the clinic registry.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/dental-verify/internal/config"
	"github.com/jwalitptl/dental-verify/internal/datasource"
	"github.com/jwalitptl/dental-verify/internal/repository"
	"github.com/jwalitptl/dental-verify/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "clinicctl",
		Short:         "Dental clinic license registry administration",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to the configuration file")

	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(recomputeCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(qrCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(hashPasswordCmd())
	return rootCmd
}

// env is what a command needs to talk to the registry.
type env struct {
	cfg   *config.Config
	log   *logger.Logger
	store repository.Store
}

func loadConfig(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     cmd.ErrOrStderr(),
		Console:    true,
	})
	return cfg, log, nil
}

// openEnv loads configuration and opens the configured data source. The
// caller closes the store.
func openEnv(ctx context.Context, cmd *cobra.Command) (*env, error) {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	selector, store, err := datasource.Bootstrap(ctx, cfg.DataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to open data source: %w", err)
	}
	log.Debug("data source ready", "backend", string(selector.Describe().Kind))
	return &env{cfg: cfg, log: log, store: store}, nil
}

// Package cmd wires the veritium commands.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/veritium/crawler/internal/config"
	"github.com/veritium/crawler/internal/logging"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "veritium",
		Short: "Fact-check ingestion and search service.",
		Long: `veritium crawls the archives of configured fact-checking sites,
extracts claims and verdicts, and commits them to a relational store of
record plus a vector index for semantic search.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (falls back to VERITIUM_* environment variables)")

	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

// bootstrap loads configuration and installs the global logger.
func bootstrap() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, err
	}
	zap.ReplaceGlobals(logger)
	return cfg, logger, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/veritium/crawler/internal/embed"
	"github.com/veritium/crawler/internal/fetch"
	"github.com/veritium/crawler/internal/ingest"
	"github.com/veritium/crawler/internal/source"
	"github.com/veritium/crawler/internal/store/postgres"
	"github.com/veritium/crawler/internal/store/qdrant"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Run one crawl over all configured sources and exit.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sources := source.Registry(cfg.Crawler.Sources)
			if len(sources) == 0 {
				return fmt.Errorf("no known sources configured: %v", cfg.Crawler.Sources)
			}

			store, err := postgres.NewClaimStore(ctx, postgres.ClaimStoreConfig{
				DSN:      cfg.DB.DSN,
				Table:    cfg.DB.Table,
				MaxConns: cfg.DB.MaxConns,
			})
			if err != nil {
				return fmt.Errorf("relational store unavailable: %w", err)
			}
			defer store.Close()
			if err := store.EnsureSchema(ctx); err != nil {
				return err
			}

			index, err := qdrant.New(qdrant.Config{
				Host:       cfg.Vector.Host,
				Port:       cfg.Vector.Port,
				APIKey:     cfg.Vector.APIKey,
				UseTLS:     cfg.Vector.UseTLS,
				Collection: cfg.Vector.Collection,
				Dimensions: cfg.Vector.Dimensions,
				Logger:     logger,
			})
			if err != nil {
				return fmt.Errorf("vector index unavailable: %w", err)
			}
			defer func() { _ = index.Close() }()
			if err := index.EnsureCollection(ctx); err != nil {
				return err
			}

			embedder := embed.NewOpenAIEmbedder(embed.OpenAIConfig{
				APIKey:     cfg.Embedding.APIKey,
				BaseURL:    cfg.Embedding.BaseURL,
				Model:      cfg.Embedding.Model,
				Dimensions: cfg.Embedding.Dimensions,
				Logger:     logger,
			})

			fetcher := fetch.New(fetch.Config{
				Timeout:    cfg.RequestTimeout(),
				UserAgent:  cfg.Crawler.UserAgent,
				MaxRetries: cfg.HTTP.MaxRetries,
				Logger:     logger,
			})

			committer := ingest.NewCommitter(store, index, embedder, logger)
			pipeline := ingest.NewPipeline(fetcher, committer, sources, ingest.Options{
				StartPage:       cfg.Crawler.StartPage,
				MaxPages:        cfg.Crawler.MaxPages,
				PolitenessDelay: cfg.PolitenessDelay(),
			}, logger)

			counters, err := pipeline.Run(ctx)
			if err != nil {
				return err
			}
			logger.Info("ingest complete",
				zap.Int("inserted", counters.Inserted),
				zap.Int("duplicates", counters.Duplicates),
				zap.Int("failed", counters.Failed))
			return nil
		},
	}
}

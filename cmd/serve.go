package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/veritium/crawler/internal/api"
	"github.com/veritium/crawler/internal/embed"
	"github.com/veritium/crawler/internal/store/postgres"
	"github.com/veritium/crawler/internal/store/qdrant"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the claim search API.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := postgres.NewClaimStore(ctx, postgres.ClaimStoreConfig{
				DSN:      cfg.DB.DSN,
				Table:    cfg.DB.Table,
				MaxConns: cfg.DB.MaxConns,
			})
			if err != nil {
				return fmt.Errorf("relational store unavailable: %w", err)
			}
			defer store.Close()

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

			embedder := embed.NewOpenAIEmbedder(embed.OpenAIConfig{
				APIKey:     cfg.Embedding.APIKey,
				BaseURL:    cfg.Embedding.BaseURL,
				Model:      cfg.Embedding.Model,
				Dimensions: cfg.Embedding.Dimensions,
				Logger:     logger,
			})

			server := api.NewServer(embedder, index, store, logger)
			httpServer := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:           server.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("api server listening", zap.Int("port", cfg.Server.Port))
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down api server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}
}

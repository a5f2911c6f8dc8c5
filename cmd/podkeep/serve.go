// ABOUTME: Serve command running the HTTP API, feed refresher, and import worker
// ABOUTME: Wires the full service together and shuts down cleanly on SIGINT/SIGTERM

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harper/podkeep/internal/directory"
	"github.com/harper/podkeep/internal/fetch"
	"github.com/harper/podkeep/internal/importer"
	"github.com/harper/podkeep/internal/notify"
	"github.com/harper/podkeep/internal/refresh"
	"github.com/harper/podkeep/internal/server"
	"github.com/harper/podkeep/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the podkeep API server",
	Long: `Run the HTTP API server together with the background feed
refresher (hourly by default) and the bulk-import worker.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		slog.SetDefault(logger)

		st := store.New(dbConn)
		sender := notify.NewSender(cfg.EmailProviderFactory(), logger)

		orch := importer.New(dbConn, st, fetch.FetchPodcast, logger)
		orch.SetBatchSize(cfg.ImportBatchSize)

		refresher := refresh.New(dbConn, fetch.FetchPodcast, sender, logger)

		srv := server.New(dbConn, st, orch, directory.NewClient(), fetch.FetchPodcast, logger)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		go orch.RunWorker(ctx)
		go refresher.Run(ctx, time.Duration(cfg.GetRefreshIntervalMinutes())*time.Minute)

		httpServer := &http.Server{
			Addr:              cfg.GetListenAddr(),
			Handler:           srv,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("server starting", "addr", cfg.GetListenAddr())
			errCh <- httpServer.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown failed: %w", err)
			}
			return nil
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

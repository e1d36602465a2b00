// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/docxml/internal/api"
	"github.com/pdiddy/docxml/internal/jobs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the asynchronous conversion service",
	Long: `Serve starts the HTTP API and a pool of conversion workers. Uploads are
staged on disk, recorded as pending jobs, and converted in the background.
Clients poll the job and download the XML once it completes.

The service shuts down gracefully on SIGINT or SIGTERM, draining queued jobs.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	err := bindFlags(cmd, map[string]string{
		"addr":        "server.addr",
		"workers":     "queue.workers",
		"staging-dir": "submission.staging_dir",
		"backend":     "extraction.backend",
	})
	if err != nil {
		return err
	}
	cfg := loadConfig()
	logger, flush, err := newLogger()
	if err != nil {
		return err
	}
	defer flush()

	store, err := jobs.NewSQLiteStore(cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	pipeline, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	svc, err := jobs.NewService(store, pipeline, cfg.Submission, logger)
	if err != nil {
		return err
	}
	queue := jobs.NewQueue(svc, logger,
		jobs.WithWorkers(cfg.Queue.Workers),
		jobs.WithQueueSize(cfg.Queue.Size),
		jobs.WithRunTimeout(cfg.Queue.RunTimeout),
	)
	svc.SetDispatcher(queue)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewServer(svc, logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Server.Addr,
			"backend", cfg.Extraction.Backend, "workers", cfg.Queue.Workers)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return errors.Join(srv.Shutdown(shutdownCtx), queue.Shutdown(shutdownCtx))
	})
	return g.Wait()
}

func init() {
	serveCmd.Flags().String("addr", ":5000", "listen address")
	serveCmd.Flags().Int("workers", 4, "concurrent conversions")
	serveCmd.Flags().String("staging-dir", "data/uploads", "directory for uploads awaiting conversion")
	serveCmd.Flags().String("backend", "native", "PDF extractor: native, tika, or container")

	rootCmd.AddCommand(serveCmd)
}

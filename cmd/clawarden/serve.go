package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/clawarden/clawarden-go/internal/audit"
	"github.com/clawarden/clawarden-go/internal/deliveries"
	"github.com/clawarden/clawarden-go/internal/dlq"
	"github.com/clawarden/clawarden-go/internal/intake"
	"github.com/clawarden/clawarden-go/internal/queue"
	"github.com/clawarden/clawarden-go/internal/reconcile"
	"github.com/clawarden/clawarden-go/internal/report"
	"github.com/clawarden/clawarden-go/internal/server"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server, worker pool, and reconciliation scheduler",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	auditLog, err := audit.Open(audit.Config{
		File:       cfg.Audit.File,
		MaxSize:    cfg.Audit.MaxSize,
		MaxBackups: cfg.Audit.MaxBackups,
	})
	if err != nil {
		return err
	}
	defer auditLog.Close()

	dedup, err := deliveries.Open(cfg.Deliveries.Path)
	if err != nil {
		return err
	}
	defer dedup.Close()

	checker, closeChecker, err := newChecker()
	if err != nil {
		return err
	}
	defer closeChecker()

	forgeClient, err := newForgeClient()
	if err != nil {
		return err
	}

	// Failure records share the postgres instance with the signature store;
	// sqlite deployments run without them.
	var failures intake.FailureRecorder
	if cfg.Signatures.Type == "postgres" {
		pool, err := pgxpool.New(ctx, cfg.Signatures.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()

		q := dlq.NewQueue(pool)
		if err := q.EnsureSchema(ctx); err != nil {
			return err
		}
		failures = q
	}

	reporter := report.New(forgeClient, cfg.Agreements.SigningURL, logger)
	handler := intake.NewHandler(forgeClient, checker, reporter, auditLog, failures, logger)

	jobs := queue.NewMemory(cfg.Pipeline.QueueSize)
	pool := intake.NewPool(jobs, handler, cfg.Pipeline.Workers, cfg.Pipeline.Enabled, logger)
	scheduler := reconcile.New(forgeClient, handler, cfg.Reconcile.Interval, cfg.Pipeline.Enabled, cfg.Forge.Repositories, logger)
	srv := server.New(cfg.Server.WebhookSecret, jobs, dedup, auditLog, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pool.Run(ctx) })
	g.Go(func() error { return scheduler.Run(ctx) })
	g.Go(func() error { return srv.Listen(cfg.Server.Addr) })
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		jobs.Close()
		return srv.Shutdown(shutdownCtx)
	})
	// Old delivery GUIDs are pruned on a slow cadence.
	g.Go(func() error {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n, err := dedup.Prune(); err == nil && n > 0 {
					logger.WithField("count", n).Debug("pruned delivery records")
				}
			}
		}
	})

	logger.WithField("addr", cfg.Server.Addr).Info("clawarden serving")
	return g.Wait()
}

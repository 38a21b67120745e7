package main

import (
	"context"

	"github.com/clawarden/clawarden-go/internal/intake"
	"github.com/clawarden/clawarden-go/internal/reconcile"
	"github.com/clawarden/clawarden-go/internal/report"
	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Re-evaluate every open pull request on the watched repositories once",
	Long: `Runs a single reconciliation pass: list open pull requests per watched
repository, re-evaluate each against the signature store, and update commit
statuses. This corrects drift from missed or failed webhook deliveries.`,
	RunE: runReconcile,
}

func runReconcile(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()

	checker, closeChecker, err := newChecker()
	if err != nil {
		return err
	}
	defer closeChecker()

	forgeClient, err := newForgeClient()
	if err != nil {
		return err
	}

	reporter := report.New(forgeClient, cfg.Agreements.SigningURL, logger)
	handler := intake.NewHandler(forgeClient, checker, reporter, nil, nil, logger)
	scheduler := reconcile.New(forgeClient, handler, cfg.Reconcile.Interval, true, cfg.Forge.Repositories, logger)

	return scheduler.Tick(ctx)
}

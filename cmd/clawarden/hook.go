package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/clawarden/clawarden-go/internal/deliveries"
	"github.com/spf13/cobra"
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Manage compliance webhooks on watched repositories",
}

var hookInstallCmd = &cobra.Command{
	Use:   "install [owner/repo]...",
	Short: "Register (or update) the compliance webhook on repositories",
	Long: `Registers the webhook that delivers push and pull_request events to this
service. Registration is idempotent: an existing hook pointing at the same
URL is updated in place, never duplicated.

With no arguments, installs on every configured watched repository.`,
	RunE: runHookInstall,
}

func init() {
	hookCmd.AddCommand(hookInstallCmd)
}

func runHookInstall(cmd *cobra.Command, args []string) error {
	if cfg.Server.PublicURL == "" {
		return fmt.Errorf("server.public_url must be set to register webhooks")
	}

	repos := args
	if len(repos) == 0 {
		repos = cfg.Forge.Repositories
	}
	if len(repos) == 0 {
		return fmt.Errorf("no repositories given and none configured under forge.repositories")
	}

	ctx := context.Background()
	forgeClient, err := newForgeClient()
	if err != nil {
		return err
	}

	dedup, err := deliveries.Open(cfg.Deliveries.Path)
	if err != nil {
		return err
	}
	defer dedup.Close()

	hookURL := strings.TrimRight(cfg.Server.PublicURL, "/") + "/webhook"
	for _, full := range repos {
		owner, repo, ok := strings.Cut(full, "/")
		if !ok || owner == "" || repo == "" {
			return fmt.Errorf("invalid repository %q, want owner/name", full)
		}

		handle, err := forgeClient.EnsureStatusHook(ctx, owner, repo, hookURL, cfg.Server.WebhookSecret)
		if err != nil {
			return fmt.Errorf("install hook on %s: %w", full, err)
		}
		if err := dedup.SetHookID(owner, repo, handle.ID); err != nil {
			logger.WithError(err).Warn("could not cache hook id")
		}

		fmt.Printf("✓ %s: hook %d -> %s\n", full, handle.ID, hookURL)
	}
	return nil
}

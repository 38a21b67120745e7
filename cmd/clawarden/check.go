package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/clawarden/clawarden-go/internal/evaluate"
	"github.com/clawarden/clawarden-go/internal/models"
	"github.com/clawarden/clawarden-go/internal/normalize"
	"github.com/clawarden/clawarden-go/internal/report"
	"github.com/spf13/cobra"
)

var checkPost bool

var checkCmd = &cobra.Command{
	Use:   "check owner/repo pr-number",
	Short: "Evaluate one pull request from the command line",
	Long: `Fetches the pull request's commits, checks every contributing identity
against the signature store, and prints the result. With --post the verdict
is also written to the forge's commit statuses, exactly as the pipeline
would.`,
	Args: cobra.ExactArgs(2),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkPost, "post", false, "post the verdict to the forge commit statuses")
}

func runCheck(cmd *cobra.Command, args []string) error {
	owner, repo, ok := strings.Cut(args[0], "/")
	if !ok || owner == "" || repo == "" {
		return fmt.Errorf("invalid repository %q, want owner/name", args[0])
	}
	var number int
	if _, err := fmt.Sscanf(args[1], "%d", &number); err != nil || number <= 0 {
		return fmt.Errorf("invalid pull request number %q", args[1])
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

	group, err := normalize.FromPullRequest(ctx, forgeClient, owner, repo, number)
	if err != nil {
		return err
	}

	result, err := evaluate.Evaluate(ctx, group, checker)
	if err != nil {
		return err
	}

	fmt.Printf("%s/%s#%d: %d commit(s), %d identit(ies)\n", owner, repo, number, len(group.Commits), len(result.Identities))
	for login, state := range result.Identities {
		marker := "✓"
		if state == models.StateUnsigned {
			marker = "✗"
		} else if state == models.StateUnknown {
			marker = "?"
		}
		fmt.Printf("  %s %s (%s)\n", marker, login, state)
	}
	fmt.Printf("Verdict: %s\n", result.Verdict)

	if checkPost {
		reporter := report.New(forgeClient, cfg.Agreements.SigningURL, logger)
		if err := reporter.Report(ctx, group, result); err != nil {
			return err
		}
		fmt.Printf("Status posted to %d commit(s)\n", len(group.Commits))
	}
	return nil
}

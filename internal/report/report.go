// Package report pushes an aggregate compliance verdict to the forge's
// commit-status API, one post per SHA in the group.
package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/clawarden/clawarden-go/internal/models"
	"github.com/sirupsen/logrus"
)

// StatusPoster is the slice of the forge client the reporter needs.
type StatusPoster interface {
	PostCommitStatus(ctx context.Context, owner, repo, sha string, verdict models.Verdict, description string) error
}

// Reporter posts verdicts. Posting is idempotent on the forge side
// (last-write-wins per SHA), so a failed group is safe to retry in full with
// no partial-failure bookkeeping.
type Reporter struct {
	poster StatusPoster
	logger *logrus.Logger
	// signingURL, when set, is appended to failure descriptions so
	// contributors know where to sign.
	signingURL string
}

// New creates a reporter.
func New(poster StatusPoster, signingURL string, logger *logrus.Logger) *Reporter {
	return &Reporter{poster: poster, signingURL: signingURL, logger: logger}
}

// Report posts the group's aggregate verdict against every SHA in the
// group. An empty group posts nothing. The first post error aborts and is
// returned; the whole evaluation is re-run by reconciliation.
func (r *Reporter) Report(ctx context.Context, group models.CommitGroup, result models.ComplianceResult) error {
	if len(group.Commits) == 0 {
		r.logger.WithFields(logrus.Fields{
			"owner": group.Owner,
			"repo":  group.Repo,
		}).Debug("empty commit group, nothing to report")
		return nil
	}

	description := r.describe(result)
	for _, c := range group.Commits {
		if err := r.poster.PostCommitStatus(ctx, group.Owner, group.Repo, c.SHA, result.Verdict, description); err != nil {
			return fmt.Errorf("post status for %s: %w", c.SHA, err)
		}
	}

	r.logger.WithFields(logrus.Fields{
		"owner":   group.Owner,
		"repo":    group.Repo,
		"verdict": result.Verdict,
		"commits": len(group.Commits),
	}).Info("compliance status reported")
	return nil
}

// describe renders the human-readable status line shown in the forge UI.
func (r *Reporter) describe(result models.ComplianceResult) string {
	switch result.Verdict {
	case models.VerdictFailure:
		msg := fmt.Sprintf("CLA not signed by %s", joinCapped(result.Unsigned, 3))
		if r.signingURL != "" {
			msg += " - sign at " + r.signingURL
		}
		return msg
	case models.VerdictPending:
		return fmt.Sprintf("CLA check pending, could not verify %s", joinCapped(result.Unknown, 3))
	default:
		return "All contributors have signed the CLA"
	}
}

// joinCapped renders up to max logins, then "and N more".
func joinCapped(logins []string, max int) string {
	if len(logins) <= max {
		return strings.Join(logins, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(logins[:max], ", "), len(logins)-max)
}

// Package normalize converts raw event data into canonical commit groups.
// Both ingestion paths (self-contained push payloads and fetched PR commit
// lists) produce the same shape, so downstream evaluation is source-blind.
package normalize

import (
	"context"

	"github.com/clawarden/clawarden-go/internal/errors"
	"github.com/clawarden/clawarden-go/internal/models"
)

// PullLister is the slice of the forge client needed for the
// pull-request-origin path.
type PullLister interface {
	ListPullCommits(ctx context.Context, owner, repo string, number int) ([]models.CommitSummary, error)
}

// FromPush builds a commit group from a push payload. No forge call is
// needed; the payload carries the full commit list. Commits are deduplicated
// by SHA, first occurrence wins; commits without any resolvable account are
// kept with both identity fields absent.
func FromPush(ev *models.PushEvent) models.CommitGroup {
	owner := ev.Repository.Owner.Resolved()
	repo := ev.Repository.Name

	group := models.CommitGroup{Owner: owner, Repo: repo}
	seen := make(map[string]bool, len(ev.Commits))

	for _, c := range ev.Commits {
		if seen[c.SHA] {
			continue
		}
		seen[c.SHA] = true

		ref := models.CommitRef{Owner: owner, Repo: repo, SHA: c.SHA}
		if c.Author.Username != "" {
			ref.Author = &models.Identity{Login: c.Author.Username}
		}
		if c.Committer.Username != "" {
			ref.Committer = &models.Identity{Login: c.Committer.Username}
		}
		group.Commits = append(group.Commits, ref)
	}
	return group
}

// FromPullRequest builds a commit group by fetching the pull request's
// commit list from the forge. A PR with zero commits yields an empty group,
// not an error. A pagination failure aborts the whole group; a partially
// fetched list must never be evaluated.
func FromPullRequest(ctx context.Context, lister PullLister, owner, repo string, number int) (models.CommitGroup, error) {
	commits, err := lister.ListPullCommits(ctx, owner, repo, number)
	if err != nil {
		return models.CommitGroup{}, errors.Wrapf(err, errors.KindOf(err), "fetch commits for %s/%s#%d", owner, repo, number)
	}

	group := models.CommitGroup{Owner: owner, Repo: repo}
	seen := make(map[string]bool, len(commits))

	for _, c := range commits {
		if seen[c.SHA] {
			continue
		}
		seen[c.SHA] = true

		ref := models.CommitRef{Owner: owner, Repo: repo, SHA: c.SHA}
		if c.AuthorLogin != "" {
			ref.Author = &models.Identity{Login: c.AuthorLogin, ID: c.AuthorID}
		}
		if c.CommitterLogin != "" {
			ref.Committer = &models.Identity{Login: c.CommitterLogin, ID: c.CommitterID}
		}
		group.Commits = append(group.Commits, ref)
	}
	return group, nil
}

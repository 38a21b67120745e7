// Package forge wraps the GitHub REST API behind the narrow surface the
// compliance pipeline needs: repository listing, open-PR and PR-commit
// listing, webhook registration, and commit-status posting. It owns
// pagination, client-side rate limiting, and error normalization.
package forge

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/clawarden/clawarden-go/internal/errors"
	"github.com/clawarden/clawarden-go/internal/models"
	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	// repoPageSize keeps typical account listings to a single round trip.
	repoPageSize = 1000
	// listPageSize for pull and commit pagination.
	listPageSize = 100
	// StatusContext is the status-check name shown in the forge UI.
	StatusContext = "license/cla"
)

// Client wraps the GitHub API client with rate limiting and backoff.
type Client struct {
	gh      *github.Client
	limiter *rate.Limiter
	logger  *logrus.Logger
	backoff backoffPolicy
}

// NewClient creates a forge client authenticated with the given token.
// rateLimit is the client-side requests-per-second cap.
func NewClient(token string, rateLimit int, logger *logrus.Logger) *Client {
	return newClient(github.NewClient(nil).WithAuthToken(token), rateLimit, logger)
}

// NewClientWithHTTP creates a client on top of a caller-supplied HTTP
// client; tests point it at a local server via WithEnterpriseURLs.
func NewClientWithHTTP(httpClient *http.Client, baseURL string, rateLimit int, logger *logrus.Logger) (*Client, error) {
	gh, err := github.NewClient(httpClient).WithEnterpriseURLs(baseURL, baseURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "configure forge base URL")
	}
	return newClient(gh, rateLimit, logger), nil
}

func newClient(gh *github.Client, rateLimit int, logger *logrus.Logger) *Client {
	if rateLimit <= 0 {
		rateLimit = 10
	}
	return &Client{
		gh:      gh,
		limiter: rate.NewLimiter(rate.Limit(rateLimit), 1),
		logger:  logger,
		backoff: defaultBackoff,
	}
}

// ListRepositories lists repositories visible to the credential, sorted by
// full name independent of the forge's native ordering.
func (c *Client) ListRepositories(ctx context.Context) ([]models.RepoSummary, error) {
	opts := &github.RepositoryListOptions{
		ListOptions: github.ListOptions{PerPage: repoPageSize},
	}

	var all []models.RepoSummary
	for {
		var (
			repos []*github.Repository
			resp  *github.Response
		)
		err := c.call(ctx, "list repositories", func() error {
			var err error
			repos, resp, err = c.gh.Repositories.List(ctx, "", opts)
			return err
		})
		if err != nil {
			return nil, err
		}

		for _, r := range repos {
			all = append(all, models.RepoSummary{
				Owner:    r.GetOwner().GetLogin(),
				Name:     r.GetName(),
				FullName: r.GetFullName(),
				Private:  r.GetPrivate(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	sort.Slice(all, func(i, j int) bool {
		return strings.ToLower(all[i].FullName) < strings.ToLower(all[j].FullName)
	})
	return all, nil
}

// ListOpenPulls lists the open pull requests of a repository, paginating
// until exhausted.
func (c *Client) ListOpenPulls(ctx context.Context, owner, repo string) ([]models.PullSummary, error) {
	opts := &github.PullRequestListOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: listPageSize},
	}

	var all []models.PullSummary
	for {
		var (
			prs  []*github.PullRequest
			resp *github.Response
		)
		err := c.call(ctx, "list open pulls", func() error {
			var err error
			prs, resp, err = c.gh.PullRequests.List(ctx, owner, repo, opts)
			return err
		})
		if err != nil {
			return nil, err
		}

		for _, pr := range prs {
			all = append(all, models.PullSummary{
				Number:  pr.GetNumber(),
				Title:   pr.GetTitle(),
				HeadSHA: pr.GetHead().GetSHA(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// ListPullCommits lists the commits of a pull request, paginating until
// exhausted. A pull request with zero commits yields an empty slice.
func (c *Client) ListPullCommits(ctx context.Context, owner, repo string, number int) ([]models.CommitSummary, error) {
	opts := &github.ListOptions{PerPage: listPageSize}

	var all []models.CommitSummary
	for {
		var (
			commits []*github.RepositoryCommit
			resp    *github.Response
		)
		err := c.call(ctx, "list pull commits", func() error {
			var err error
			commits, resp, err = c.gh.PullRequests.ListCommits(ctx, owner, repo, number, opts)
			return err
		})
		if err != nil {
			return nil, err
		}

		for _, commit := range commits {
			all = append(all, models.CommitSummary{
				SHA:            commit.GetSHA(),
				AuthorLogin:    commit.GetAuthor().GetLogin(),
				AuthorID:       commit.GetAuthor().GetID(),
				CommitterLogin: commit.GetCommitter().GetLogin(),
				CommitterID:    commit.GetCommitter().GetID(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// EnsureStatusHook registers the compliance webhook on a repository. If a
// hook already points at hookURL it is updated in place, so re-registration
// never produces a second delivery for the same event.
func (c *Client) EnsureStatusHook(ctx context.Context, owner, repo, hookURL, secret string) (models.HookHandle, error) {
	opts := &github.ListOptions{PerPage: listPageSize}

	var existing *github.Hook
	for {
		var (
			hooks []*github.Hook
			resp  *github.Response
		)
		err := c.call(ctx, "list hooks", func() error {
			var err error
			hooks, resp, err = c.gh.Repositories.ListHooks(ctx, owner, repo, opts)
			return err
		})
		if err != nil {
			return models.HookHandle{}, err
		}

		for _, h := range hooks {
			if url, _ := h.Config["url"].(string); url == hookURL {
				existing = h
				break
			}
		}
		if existing != nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	hook := &github.Hook{
		Events: []string{"push", "pull_request"},
		Active: github.Bool(true),
		Config: map[string]interface{}{
			"url":          hookURL,
			"content_type": "json",
			"secret":       secret,
		},
	}

	if existing != nil {
		var updated *github.Hook
		err := c.call(ctx, "update hook", func() error {
			var err error
			updated, _, err = c.gh.Repositories.EditHook(ctx, owner, repo, existing.GetID(), hook)
			return err
		})
		if err != nil {
			return models.HookHandle{}, err
		}
		c.logger.WithFields(logrus.Fields{
			"owner":   owner,
			"repo":    repo,
			"hook_id": updated.GetID(),
		}).Info("webhook updated")
		return models.HookHandle{ID: updated.GetID(), URL: hookURL}, nil
	}

	var created *github.Hook
	err := c.call(ctx, "create hook", func() error {
		var err error
		created, _, err = c.gh.Repositories.CreateHook(ctx, owner, repo, hook)
		return err
	})
	if err != nil {
		return models.HookHandle{}, err
	}
	c.logger.WithFields(logrus.Fields{
		"owner":   owner,
		"repo":    repo,
		"hook_id": created.GetID(),
	}).Info("webhook registered")
	return models.HookHandle{ID: created.GetID(), URL: hookURL}, nil
}

// PostCommitStatus sets the commit status for a SHA. The forge applies
// last-write-wins semantics, so re-posting the same verdict is safe.
func (c *Client) PostCommitStatus(ctx context.Context, owner, repo, sha string, verdict models.Verdict, description string) error {
	status := &github.RepoStatus{
		State:       github.String(string(verdict)),
		Description: github.String(truncateDescription(description)),
		Context:     github.String(StatusContext),
	}

	return c.call(ctx, "post commit status", func() error {
		_, _, err := c.gh.Repositories.CreateStatus(ctx, owner, repo, sha, status)
		return err
	})
}

// GitHub caps status descriptions at 140 characters. Truncation happens on
// rune boundaries so multi-byte logins and URLs are never split mid-rune.
func truncateDescription(s string) string {
	const max = 140
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}

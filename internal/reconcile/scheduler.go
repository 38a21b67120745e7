// Package reconcile periodically re-evaluates every open pull request of
// every watched repository. It is the correction mechanism for webhooks that
// were never delivered, were dropped mid-flight, or raced a just-completed
// signing: the forge status converges on the next tick without bespoke
// retry bookkeeping.
package reconcile

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/clawarden/clawarden-go/internal/intake"
	"github.com/clawarden/clawarden-go/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Forge is the slice of the forge client reconciliation needs.
type Forge interface {
	ListRepositories(ctx context.Context) ([]models.RepoSummary, error)
	ListOpenPulls(ctx context.Context, owner, repo string) ([]models.PullSummary, error)
}

// Scheduler drives reconciliation ticks.
type Scheduler struct {
	forge    Forge
	handler  *intake.Handler
	interval time.Duration
	enabled  bool
	// watched restricts reconciliation to these "owner/name" repositories;
	// empty means everything the credential can see.
	watched []string
	logger  *logrus.Logger

	mu       sync.Mutex
	inflight map[string]bool
}

// New creates a scheduler. enabled comes from configuration, passed in
// explicitly rather than read from process-global state.
func New(forge Forge, handler *intake.Handler, interval time.Duration, enabled bool, watched []string, logger *logrus.Logger) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Scheduler{
		forge:    forge,
		handler:  handler,
		interval: interval,
		enabled:  enabled,
		watched:  watched,
		logger:   logger,
		inflight: make(map[string]bool),
	}
}

// Run ticks until the context is canceled. The first tick fires after one
// full interval; `clawarden reconcile` exists for an immediate pass.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.enabled {
		s.logger.Warn("reconciliation disabled by configuration")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.WithError(err).Error("reconciliation tick failed")
			}
		}
	}
}

// Tick reconciles all watched repositories once. Repositories run
// concurrently; two ticks never overlap on the same repository.
func (s *Scheduler) Tick(ctx context.Context) error {
	repos, err := s.repositories(ctx)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, r := range repos {
		r := r
		if !s.begin(r.FullName) {
			s.logger.WithField("repo", r.FullName).Debug("reconciliation already in flight, skipping")
			continue
		}
		g.Go(func() error {
			defer s.end(r.FullName)
			s.reconcileRepo(ctx, r.Owner, r.Name)
			return nil
		})
	}
	return g.Wait()
}

// reconcileRepo re-evaluates each open PR independently; one failing PR
// never blocks the others.
func (s *Scheduler) reconcileRepo(ctx context.Context, owner, repo string) {
	pulls, err := s.forge.ListOpenPulls(ctx, owner, repo)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"owner": owner,
			"repo":  repo,
		}).Error("could not list open pulls")
		return
	}

	for _, pr := range pulls {
		if err := s.handler.ReevaluatePull(ctx, owner, repo, pr.Number); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"owner":  owner,
				"repo":   repo,
				"number": pr.Number,
			}).Error("pull reconciliation failed")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"owner": owner,
		"repo":  repo,
		"pulls": len(pulls),
	}).Info("repository reconciled")
}

// repositories resolves the watch list, either from configuration or by
// listing everything visible to the credential.
func (s *Scheduler) repositories(ctx context.Context) ([]models.RepoSummary, error) {
	if len(s.watched) > 0 {
		out := make([]models.RepoSummary, 0, len(s.watched))
		for _, full := range s.watched {
			owner, name, ok := strings.Cut(full, "/")
			if !ok || owner == "" || name == "" {
				s.logger.WithField("repo", full).Warn("ignoring malformed watched repository")
				continue
			}
			out = append(out, models.RepoSummary{Owner: owner, Name: name, FullName: full})
		}
		return out, nil
	}
	return s.forge.ListRepositories(ctx)
}

// begin claims the per-repository in-flight flag.
func (s *Scheduler) begin(fullName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[fullName] {
		return false
	}
	s.inflight[fullName] = true
	return true
}

func (s *Scheduler) end(fullName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, fullName)
}

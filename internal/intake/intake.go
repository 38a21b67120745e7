// Package intake drives one unit of work through the pipeline:
// Received -> Normalized -> Reported, or Failed. A unit is a single webhook
// delivery; reconciliation runs the same normalize/evaluate/report path for
// open pull requests. Failed units are not retried in-process; the next
// reconciliation tick re-evaluates the same pull request.
package intake

import (
	"context"
	"fmt"

	"github.com/clawarden/clawarden-go/internal/audit"
	"github.com/clawarden/clawarden-go/internal/errors"
	"github.com/clawarden/clawarden-go/internal/evaluate"
	"github.com/clawarden/clawarden-go/internal/models"
	"github.com/clawarden/clawarden-go/internal/normalize"
	"github.com/clawarden/clawarden-go/internal/queue"
	"github.com/clawarden/clawarden-go/internal/report"
	"github.com/clawarden/clawarden-go/internal/signatures"
	"github.com/sirupsen/logrus"
)

// FailureRecorder persists terminal failures for operator review. Optional.
type FailureRecorder interface {
	Record(ctx context.Context, unitID, owner, repo string, prNumber int, kind models.EventKind, cause error) error
	MarkResolved(ctx context.Context, owner, repo string, prNumber int) error
}

// Handler evaluates one event payload end to end.
type Handler struct {
	forge    normalize.PullLister
	checker  signatures.Checker
	reporter *report.Reporter
	audit    *audit.Log
	failures FailureRecorder
	logger   *logrus.Logger
}

// NewHandler wires the pipeline components. audit and failures may be nil.
func NewHandler(forge normalize.PullLister, checker signatures.Checker, reporter *report.Reporter,
	auditLog *audit.Log, failures FailureRecorder, logger *logrus.Logger) *Handler {
	return &Handler{
		forge:    forge,
		checker:  checker,
		reporter: reporter,
		audit:    auditLog,
		failures: failures,
		logger:   logger,
	}
}

// prActions are the pull_request actions that change the commit set or
// (re)open the PR. Everything else is a terminal no-op.
var prActions = map[string]bool{
	"opened":      true,
	"reopened":    true,
	"synchronize": true,
}

// Handle runs one unit of work. A nil return means the unit reached a
// terminal success state (reported, or legitimately ignored); any error is
// the Failed terminal state.
func (h *Handler) Handle(ctx context.Context, job queue.Job) error {
	ev, err := models.ParseEvent(job.Kind, job.Payload)
	if err != nil {
		if h.audit != nil {
			h.audit.MalformedPayload(job.DeliveryID, string(job.Kind), err.Error())
		}
		return errors.Malformed(err, "parse event")
	}

	var (
		group    models.CommitGroup
		prNumber int
	)

	switch ev.Kind {
	case models.EventPush:
		group = normalize.FromPush(ev.Push)

	case models.EventPullRequest:
		pr := ev.PullRequest
		if !prActions[pr.Action] {
			h.logger.WithFields(logrus.Fields{
				"action": pr.Action,
				"number": pr.Number,
			}).Debug("pull_request action ignored")
			return nil
		}
		prNumber = pr.Number
		group, err = normalize.FromPullRequest(ctx, h.forge,
			pr.Repository.Owner.Resolved(), pr.Repository.Name, pr.Number)
		if err != nil {
			return h.failed(ctx, job, pr.Repository.Owner.Resolved(), pr.Repository.Name, prNumber, err)
		}
	}

	if err := h.EvaluateGroup(ctx, group); err != nil {
		return h.failed(ctx, job, group.Owner, group.Repo, prNumber, err)
	}

	if h.failures != nil && prNumber > 0 {
		if err := h.failures.MarkResolved(ctx, group.Owner, group.Repo, prNumber); err != nil {
			h.logger.WithError(err).Warn("could not clear failure record")
		}
	}
	return nil
}

// EvaluateGroup runs the evaluator and reporter for an already-normalized
// group. Shared by webhook handling and reconciliation.
func (h *Handler) EvaluateGroup(ctx context.Context, group models.CommitGroup) error {
	if h.audit != nil {
		for _, c := range group.Commits {
			if !c.HasIdentity() {
				h.audit.AbsentIdentityCommit(c.Owner, c.Repo, c.SHA)
			}
		}
	}

	result, err := evaluate.Evaluate(ctx, group, h.checker)
	if err != nil {
		return fmt.Errorf("evaluate %s/%s: %w", group.Owner, group.Repo, err)
	}

	return h.reporter.Report(ctx, group, result)
}

// ReevaluatePull runs the pull-request-origin path for one open PR. This is
// the reconciliation entry point; it behaves exactly like a pull_request
// webhook for that PR, including failure bookkeeping.
func (h *Handler) ReevaluatePull(ctx context.Context, owner, repo string, number int) error {
	job := queue.NewJob("", models.EventPullRequest, nil)

	group, err := normalize.FromPullRequest(ctx, h.forge, owner, repo, number)
	if err != nil {
		return h.failed(ctx, job, owner, repo, number, err)
	}
	if err := h.EvaluateGroup(ctx, group); err != nil {
		return h.failed(ctx, job, owner, repo, number, err)
	}

	if h.failures != nil {
		if err := h.failures.MarkResolved(ctx, owner, repo, number); err != nil {
			h.logger.WithError(err).Warn("could not clear failure record")
		}
	}
	return nil
}

// failed records the terminal Failed state and returns the cause.
func (h *Handler) failed(ctx context.Context, job queue.Job, owner, repo string, prNumber int, cause error) error {
	if h.audit != nil {
		h.audit.UnitFailed(job.ID, owner, repo, prNumber, cause.Error())
	}
	if h.failures != nil {
		if err := h.failures.Record(ctx, job.ID, owner, repo, prNumber, job.Kind, cause); err != nil {
			h.logger.WithError(err).Warn("could not record failure")
		}
	}
	return cause
}

// Package dlq keeps a record of units of work that terminated in the failed
// state. There is no in-process retry loop: reconciliation re-evaluates open
// pull requests anyway, and it marks entries resolved when a later pass of
// the same pull request succeeds. The table exists so an operator can see
// what failed and why.
package dlq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clawarden/clawarden-go/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one recorded failure.
type Entry struct {
	ID           int64
	UnitID       string
	Owner        string
	Repo         string
	PRNumber     int
	EventKind    models.EventKind
	ErrorMessage string
	SeenCount    int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Queue records failed units of work in PostgreSQL.
type Queue struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewQueue creates the failure record store.
func NewQueue(pool *pgxpool.Pool) *Queue {
	return &Queue{
		pool:   pool,
		logger: slog.Default().With("component", "dlq"),
	}
}

// Record stores a failed unit. A repeated failure for the same repository
// and PR increments seen_count instead of inserting a new row.
func (q *Queue) Record(ctx context.Context, unitID, owner, repo string, prNumber int, kind models.EventKind, cause error) error {
	_, err := q.pool.Exec(ctx, `
		INSERT INTO failed_evaluations (unit_id, owner, repo, pr_number, event_kind, error_message, seen_count)
		VALUES ($1, $2, $3, $4, $5, $6, 1)
		ON CONFLICT (owner, repo, pr_number, event_kind) DO UPDATE
		SET seen_count = failed_evaluations.seen_count + 1,
		    unit_id = $1,
		    error_message = $6,
		    updated_at = NOW()
	`, unitID, owner, repo, prNumber, string(kind), cause.Error())
	if err != nil {
		return fmt.Errorf("record failed evaluation: %w", err)
	}

	q.logger.Warn("unit of work recorded as failed",
		"unit_id", unitID,
		"owner", owner,
		"repo", repo,
		"pr_number", prNumber,
		"error", cause.Error(),
	)
	return nil
}

// MarkResolved removes the failure record for a pull request after a later
// evaluation succeeded.
func (q *Queue) MarkResolved(ctx context.Context, owner, repo string, prNumber int) error {
	tag, err := q.pool.Exec(ctx, `
		DELETE FROM failed_evaluations
		WHERE owner = $1 AND repo = $2 AND pr_number = $3
	`, owner, repo, prNumber)
	if err != nil {
		return fmt.Errorf("resolve failed evaluation: %w", err)
	}

	if tag.RowsAffected() > 0 {
		q.logger.Info("failed evaluation resolved",
			"owner", owner,
			"repo", repo,
			"pr_number", prNumber,
		)
	}
	return nil
}

// Recent returns the most recently updated failures for review.
func (q *Queue) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT id, unit_id, owner, repo, pr_number, event_kind, error_message, seen_count, created_at, updated_at
		FROM failed_evaluations
		ORDER BY updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent failures: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var kind string
		if err := rows.Scan(&e.ID, &e.UnitID, &e.Owner, &e.Repo, &e.PRNumber, &kind,
			&e.ErrorMessage, &e.SeenCount, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan failure entry: %w", err)
		}
		e.EventKind = models.EventKind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PurgeOld removes failure records older than the given duration.
func (q *Queue) PurgeOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	tag, err := q.pool.Exec(ctx, `
		DELETE FROM failed_evaluations WHERE created_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old failures: %w", err)
	}

	if n := tag.RowsAffected(); n > 0 {
		q.logger.Info("purged old failure records", "count", n, "older_than", olderThan)
		return n, nil
	}
	return 0, nil
}

// EnsureSchema creates the failure table when it does not exist.
func (q *Queue) EnsureSchema(ctx context.Context) error {
	_, err := q.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS failed_evaluations (
			id BIGSERIAL PRIMARY KEY,
			unit_id TEXT NOT NULL,
			owner TEXT NOT NULL,
			repo TEXT NOT NULL,
			pr_number INT NOT NULL DEFAULT 0,
			event_kind TEXT NOT NULL,
			error_message TEXT NOT NULL,
			seen_count INT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (owner, repo, pr_number, event_kind)
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure failed_evaluations schema: %w", err)
	}
	return nil
}

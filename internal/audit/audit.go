// Package audit records pipeline events that matter after the fact:
// malformed or duplicated webhook deliveries, commits with no resolvable
// account, and units of work that terminated in failure. Entries go to a
// JSON log file with size-based rotation.
package audit

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Config holds audit log configuration.
type Config struct {
	File       string // empty = stderr only
	MaxSize    int64  // bytes before rotation (default 10MB)
	MaxBackups int    // rotated files to keep (default 3)
}

// Log is an append-only audit trail.
type Log struct {
	slog   *slog.Logger
	config Config
	file   *os.File
	mu     sync.Mutex
}

// Open creates the audit log, rotating the existing file if it is over the
// size limit.
func Open(config Config) (*Log, error) {
	if config.MaxSize == 0 {
		config.MaxSize = 10 * 1024 * 1024
	}
	if config.MaxBackups == 0 {
		config.MaxBackups = 3
	}

	l := &Log{config: config}

	var w io.Writer = os.Stderr
	if config.File != "" {
		if err := os.MkdirAll(filepath.Dir(config.File), 0755); err != nil {
			return nil, fmt.Errorf("create audit log directory: %w", err)
		}
		if err := l.rotateIfNeeded(); err != nil {
			return nil, fmt.Errorf("rotate audit log: %w", err)
		}
		file, err := os.OpenFile(config.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open audit log %s: %w", config.File, err)
		}
		l.file = file
		w = file
	}

	l.slog = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	return l, nil
}

// rotateIfNeeded shifts audit.log -> audit.log.1 -> ... when over the limit.
func (l *Log) rotateIfNeeded() error {
	info, err := os.Stat(l.config.File)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat audit log: %w", err)
	}
	if info.Size() < l.config.MaxSize {
		return nil
	}

	for i := l.config.MaxBackups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", l.config.File, i)
		newPath := fmt.Sprintf("%s.%d", l.config.File, i+1)
		if _, err := os.Stat(oldPath); err == nil {
			os.Rename(oldPath, newPath)
		}
	}
	return os.Rename(l.config.File, fmt.Sprintf("%s.1", l.config.File))
}

// MalformedPayload records a dropped webhook delivery.
func (l *Log) MalformedPayload(deliveryID, kind, reason string) {
	l.slog.Warn("malformed payload dropped",
		"delivery_id", deliveryID,
		"event_kind", kind,
		"reason", reason,
	)
}

// DuplicateDelivery records a webhook delivery skipped as already seen.
func (l *Log) DuplicateDelivery(deliveryID, kind string) {
	l.slog.Info("duplicate delivery skipped",
		"delivery_id", deliveryID,
		"event_kind", kind,
	)
}

// RejectedDelivery records a delivery that failed signature validation.
func (l *Log) RejectedDelivery(deliveryID, reason string) {
	l.slog.Warn("delivery rejected",
		"delivery_id", deliveryID,
		"reason", reason,
	)
}

// AbsentIdentityCommit records a commit that carries no resolvable account.
// Such commits stay in the group (vacuously compliant) but are logged so an
// operator can see them.
func (l *Log) AbsentIdentityCommit(owner, repo, sha string) {
	l.slog.Info("commit without resolvable identity",
		"owner", owner,
		"repo", repo,
		"sha", sha,
	)
}

// UnitFailed records a unit of work that terminated in the failed state.
func (l *Log) UnitFailed(unitID, owner, repo string, prNumber int, reason string) {
	l.slog.Error("unit of work failed",
		"unit_id", unitID,
		"owner", owner,
		"repo", repo,
		"pr_number", prNumber,
		"reason", reason,
	)
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

package signatures

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/clawarden/clawarden-go/internal/errors"
	"github.com/clawarden/clawarden-go/internal/models"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// SQLiteChecker reads agreements and signatures from a local SQLite file.
// Used in local and development deployments.
type SQLiteChecker struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewSQLiteChecker opens (and if needed initializes) the local database.
func NewSQLiteChecker(path string, logger *logrus.Logger) (*SQLiteChecker, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	c := &SQLiteChecker{db: db, logger: logger}
	if err := c.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return c, nil
}

func (c *SQLiteChecker) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agreements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		version TEXT NOT NULL DEFAULT '1.0',
		owner_login TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS agreement_repositories (
		agreement_id INTEGER NOT NULL REFERENCES agreements(id),
		owner TEXT NOT NULL,
		name TEXT NOT NULL,
		PRIMARY KEY (agreement_id, owner, name)
	);

	CREATE TABLE IF NOT EXISTS signatures (
		agreement_id INTEGER NOT NULL REFERENCES agreements(id),
		login TEXT NOT NULL,
		email TEXT,
		signed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		cla_version TEXT,
		PRIMARY KEY (agreement_id, login)
	);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Close closes the database.
func (c *SQLiteChecker) Close() error {
	return c.db.Close()
}

// IsSigned mirrors PostgresChecker.IsSigned against the local database.
func (c *SQLiteChecker) IsSigned(ctx context.Context, identity models.Identity, owner, repo string) (bool, error) {
	var agreementIDs []int64
	err := c.db.SelectContext(ctx, &agreementIDs, `
		SELECT a.id
		FROM agreements a
		JOIN agreement_repositories ar ON ar.agreement_id = a.id
		WHERE ar.owner = ? AND ar.name = ?
	`, owner, repo)
	if err != nil {
		return false, errors.LookupUnavailable(err, "resolve agreement")
	}

	switch {
	case len(agreementIDs) == 0:
		return true, nil
	case len(agreementIDs) > 1:
		return false, errors.Ambiguous(fmt.Sprintf("%d agreements cover %s/%s", len(agreementIDs), owner, repo))
	}

	var signed bool
	err = c.db.GetContext(ctx, &signed, `
		SELECT EXISTS (
			SELECT 1 FROM signatures
			WHERE agreement_id = ? AND login = ?
		)
	`, agreementIDs[0], identity.Login)
	if err != nil {
		return false, errors.LookupUnavailable(err, "check signature")
	}

	return signed, nil
}

// CreateAgreement inserts an agreement covering the given repositories.
// Exposed for local seeding and tests.
func (c *SQLiteChecker) CreateAgreement(ctx context.Context, name, version, ownerLogin string, repos []string) (int64, error) {
	res, err := c.db.ExecContext(ctx, `
		INSERT INTO agreements (name, version, owner_login) VALUES (?, ?, ?)
	`, name, version, ownerLogin)
	if err != nil {
		return 0, fmt.Errorf("insert agreement: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("agreement id: %w", err)
	}

	for _, full := range repos {
		owner, repo, ok := strings.Cut(full, "/")
		if !ok || owner == "" || repo == "" {
			return 0, fmt.Errorf("invalid repository %q, want owner/name", full)
		}
		if _, err := c.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO agreement_repositories (agreement_id, owner, name) VALUES (?, ?, ?)
		`, id, owner, repo); err != nil {
			return 0, fmt.Errorf("cover repository %s: %w", full, err)
		}
	}
	return id, nil
}

// RecordSignature stores a signature for an agreement. Re-signing updates
// the timestamp.
func (c *SQLiteChecker) RecordSignature(ctx context.Context, agreementID int64, login, email, claVersion string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO signatures (agreement_id, login, email, signed_at, cla_version)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (agreement_id, login) DO UPDATE SET signed_at = excluded.signed_at
	`, agreementID, login, email, time.Now().UTC(), claVersion)
	if err != nil {
		return fmt.Errorf("record signature: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"agreement_id": agreementID,
		"login":        login,
	}).Info("signature recorded")
	return nil
}

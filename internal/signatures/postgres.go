package signatures

import (
	"context"
	"fmt"
	"time"

	"github.com/clawarden/clawarden-go/internal/errors"
	"github.com/clawarden/clawarden-go/internal/models"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// PostgresChecker reads agreements and signatures from PostgreSQL.
type PostgresChecker struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPostgresChecker connects to the agreement database.
func NewPostgresChecker(dsn string, logger *logrus.Logger) (*PostgresChecker, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresChecker{db: db, logger: logger}, nil
}

// Close closes the database connection.
func (c *PostgresChecker) Close() error {
	return c.db.Close()
}

// IsSigned resolves the applicable agreement for the repository and checks
// for a signature by the identity's login. A repository covered by no
// agreement imposes no obligation, so every identity passes. More than one
// covering agreement is a configuration error, never tie-broken.
func (c *PostgresChecker) IsSigned(ctx context.Context, identity models.Identity, owner, repo string) (bool, error) {
	var agreementIDs []int64
	err := c.db.SelectContext(ctx, &agreementIDs, `
		SELECT a.id
		FROM agreements a
		JOIN agreement_repositories ar ON ar.agreement_id = a.id
		WHERE ar.owner = $1 AND ar.name = $2
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
			WHERE agreement_id = $1 AND login = $2
		)
	`, agreementIDs[0], identity.Login)
	if err != nil {
		return false, errors.LookupUnavailable(err, "check signature")
	}

	return signed, nil
}

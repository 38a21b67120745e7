// Package signatures answers the single compliance predicate: has this
// identity signed the agreement applicable to this repository. Agreement and
// signature records are owned elsewhere; this package only reads them.
package signatures

import (
	"context"
	"time"

	"github.com/clawarden/clawarden-go/internal/models"
)

// Checker is the signature-lookup collaborator used by the evaluator.
// Implementations resolve the applicable agreement for the repository
// internally and must return an AmbiguousAgreement error when more than one
// agreement covers it; transient store failures must surface as
// LookupUnavailable so the evaluator can map them to a pending verdict.
type Checker interface {
	IsSigned(ctx context.Context, identity models.Identity, owner, repo string) (bool, error)
}

// Agreement is one CLA covering a set of repositories.
type Agreement struct {
	ID      int64  `db:"id"`
	Name    string `db:"name"`
	Version string `db:"version"`
	Owner   string `db:"owner_login"`
}

// Signature records that an identity signed an agreement.
type Signature struct {
	AgreementID int64     `db:"agreement_id"`
	Login       string    `db:"login"`
	Email       string    `db:"email"`
	SignedAt    time.Time `db:"signed_at"`
	CLAVersion  string    `db:"cla_version"`
}

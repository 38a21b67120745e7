// Package evaluate classifies every contributing identity of a commit group
// as signed, unsigned, or unknown and derives the aggregate verdict. The
// evaluation is pure with respect to its inputs: the same group and the same
// signature snapshot always produce the same result, which is what makes
// re-reporting idempotent.
package evaluate

import (
	"context"
	"sort"

	"github.com/clawarden/clawarden-go/internal/errors"
	"github.com/clawarden/clawarden-go/internal/models"
	"github.com/clawarden/clawarden-go/internal/signatures"
)

// Evaluate runs the signature lookup for each distinct identity of the group
// and aggregates:
//
//	failure  - at least one identity is unsigned
//	pending  - nobody is unsigned but at least one lookup failed transiently
//	success  - every identity is signed; an empty group is trivially compliant
//
// Author and committer are independent obligations: when both are present on
// a commit, both must be signed. An AmbiguousAgreement error from the
// checker is a configuration fault and aborts the evaluation.
func Evaluate(ctx context.Context, group models.CommitGroup, checker signatures.Checker) (models.ComplianceResult, error) {
	result := models.ComplianceResult{
		Identities: make(map[string]models.SignatureState),
	}

	ids := group.Identities()
	sort.Slice(ids, func(i, j int) bool { return ids[i].Login < ids[j].Login })

	for _, id := range ids {
		signed, err := checker.IsSigned(ctx, id, group.Owner, group.Repo)
		switch {
		case err == nil && signed:
			result.Identities[id.Login] = models.StateSigned
		case err == nil:
			result.Identities[id.Login] = models.StateUnsigned
			result.Unsigned = append(result.Unsigned, id.Login)
		case errors.KindOf(err) == errors.KindLookupUnavailable:
			// A failed lookup is never treated as unsigned.
			result.Identities[id.Login] = models.StateUnknown
			result.Unknown = append(result.Unknown, id.Login)
		default:
			return models.ComplianceResult{}, err
		}
	}

	switch {
	case len(result.Unsigned) > 0:
		result.Verdict = models.VerdictFailure
	case len(result.Unknown) > 0:
		result.Verdict = models.VerdictPending
	default:
		result.Verdict = models.VerdictSuccess
	}
	return result, nil
}

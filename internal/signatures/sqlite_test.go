package signatures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/clawarden/clawarden-go/internal/errors"
	"github.com/clawarden/clawarden-go/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestChecker(t *testing.T) *SQLiteChecker {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	c, err := NewSQLiteChecker(filepath.Join(t.TempDir(), "signatures.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestIsSignedSignedAndUnsigned(t *testing.T) {
	c := openTestChecker(t)
	ctx := context.Background()

	id, err := c.CreateAgreement(ctx, "Acme CLA", "1.0", "acme", []string{"acme/widget"})
	require.NoError(t, err)
	require.NoError(t, c.RecordSignature(ctx, id, "alice", "alice@example.com", "1.0"))

	signed, err := c.IsSigned(ctx, models.Identity{Login: "alice"}, "acme", "widget")
	require.NoError(t, err)
	assert.True(t, signed)

	signed, err = c.IsSigned(ctx, models.Identity{Login: "bob"}, "acme", "widget")
	require.NoError(t, err)
	assert.False(t, signed)
}

func TestIsSignedNoCoveringAgreement(t *testing.T) {
	c := openTestChecker(t)
	ctx := context.Background()

	// A repository no agreement covers imposes no obligation.
	signed, err := c.IsSigned(ctx, models.Identity{Login: "alice"}, "acme", "uncovered")
	require.NoError(t, err)
	assert.True(t, signed)
}

func TestIsSignedAmbiguousAgreements(t *testing.T) {
	c := openTestChecker(t)
	ctx := context.Background()

	_, err := c.CreateAgreement(ctx, "CLA v1", "1.0", "acme", []string{"acme/widget"})
	require.NoError(t, err)
	_, err = c.CreateAgreement(ctx, "CLA v2", "2.0", "acme", []string{"acme/widget"})
	require.NoError(t, err)

	_, err = c.IsSigned(ctx, models.Identity{Login: "alice"}, "acme", "widget")
	require.Error(t, err)
	assert.Equal(t, errors.KindAmbiguousAgreement, errors.KindOf(err),
		"overlapping agreements are a configuration error, never tie-broken")
	assert.False(t, errors.Retryable(err))
}

func TestSignatureScopedToAgreement(t *testing.T) {
	c := openTestChecker(t)
	ctx := context.Background()

	widget, err := c.CreateAgreement(ctx, "Widget CLA", "1.0", "acme", []string{"acme/widget"})
	require.NoError(t, err)
	_, err = c.CreateAgreement(ctx, "Gadget CLA", "1.0", "acme", []string{"acme/gadget"})
	require.NoError(t, err)

	require.NoError(t, c.RecordSignature(ctx, widget, "alice", "", "1.0"))

	signed, err := c.IsSigned(ctx, models.Identity{Login: "alice"}, "acme", "widget")
	require.NoError(t, err)
	assert.True(t, signed)

	signed, err = c.IsSigned(ctx, models.Identity{Login: "alice"}, "acme", "gadget")
	require.NoError(t, err)
	assert.False(t, signed, "signing one agreement does not cover another")
}

func TestRecordSignatureIsUpsert(t *testing.T) {
	c := openTestChecker(t)
	ctx := context.Background()

	id, err := c.CreateAgreement(ctx, "Acme CLA", "1.0", "acme", []string{"acme/widget"})
	require.NoError(t, err)

	require.NoError(t, c.RecordSignature(ctx, id, "alice", "alice@example.com", "1.0"))
	require.NoError(t, c.RecordSignature(ctx, id, "alice", "alice@example.com", "1.0"))

	var count int
	require.NoError(t, c.db.Get(&count, "SELECT COUNT(*) FROM signatures WHERE login = ?", "alice"))
	assert.Equal(t, 1, count, "re-signing must not duplicate rows")
}

func TestCreateAgreementRejectsBadRepoName(t *testing.T) {
	c := openTestChecker(t)

	for _, bad := range []string{"not-a-full-name", "/widget", "acme/"} {
		_, err := c.CreateAgreement(context.Background(), "Acme CLA", "1.0", "acme", []string{bad})
		require.Error(t, err, "repository %q must be rejected", bad)
		assert.Contains(t, err.Error(), "owner/name")
	}
}

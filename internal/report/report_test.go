package report

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/clawarden/clawarden-go/internal/models"
	"github.com/sirupsen/logrus"
)

// fakePoster records statuses keyed by SHA, mimicking the forge's
// last-write-wins semantics.
type fakePoster struct {
	statuses map[string]models.Verdict
	descs    map[string]string
	posts    int
	failSHA  string
}

func newFakePoster() *fakePoster {
	return &fakePoster{
		statuses: make(map[string]models.Verdict),
		descs:    make(map[string]string),
	}
}

func (f *fakePoster) PostCommitStatus(_ context.Context, _, _, sha string, verdict models.Verdict, desc string) error {
	if sha == f.failSHA {
		return fmt.Errorf("simulated post failure for %s", sha)
	}
	f.posts++
	f.statuses[sha] = verdict
	f.descs[sha] = desc
	return nil
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func testGroup(shas ...string) models.CommitGroup {
	g := models.CommitGroup{Owner: "acme", Repo: "widget"}
	for _, sha := range shas {
		g.Commits = append(g.Commits, models.CommitRef{Owner: "acme", Repo: "widget", SHA: sha})
	}
	return g
}

func TestReport_PostsVerdictPerSHA(t *testing.T) {
	poster := newFakePoster()
	r := New(poster, "", testLogger())

	result := models.ComplianceResult{
		Verdict:  models.VerdictFailure,
		Unsigned: []string{"bob"},
	}
	if err := r.Report(context.Background(), testGroup("a1", "a2"), result); err != nil {
		t.Fatalf("Report() error: %v", err)
	}

	for _, sha := range []string{"a1", "a2"} {
		if poster.statuses[sha] != models.VerdictFailure {
			t.Errorf("status[%s] = %v, want failure", sha, poster.statuses[sha])
		}
		if !strings.Contains(poster.descs[sha], "bob") {
			t.Errorf("description for %s should name the unsigned identity, got %q", sha, poster.descs[sha])
		}
	}
}

func TestReport_Idempotent(t *testing.T) {
	poster := newFakePoster()
	r := New(poster, "", testLogger())

	group := testGroup("a1")
	result := models.ComplianceResult{Verdict: models.VerdictSuccess}

	if err := r.Report(context.Background(), group, result); err != nil {
		t.Fatalf("first Report() error: %v", err)
	}
	first := poster.statuses["a1"]

	if err := r.Report(context.Background(), group, result); err != nil {
		t.Fatalf("second Report() error: %v", err)
	}

	if poster.statuses["a1"] != first {
		t.Errorf("re-reporting changed the forge-visible status: %v -> %v", first, poster.statuses["a1"])
	}
}

func TestReport_EmptyGroupPostsNothing(t *testing.T) {
	poster := newFakePoster()
	r := New(poster, "", testLogger())

	if err := r.Report(context.Background(), testGroup(), models.ComplianceResult{Verdict: models.VerdictSuccess}); err != nil {
		t.Fatalf("Report() error: %v", err)
	}
	if poster.posts != 0 {
		t.Errorf("posts = %d, want 0 for an empty group", poster.posts)
	}
}

func TestReport_PartialFailureIsRetryableInFull(t *testing.T) {
	poster := newFakePoster()
	poster.failSHA = "a2"
	r := New(poster, "", testLogger())

	group := testGroup("a1", "a2", "a3")
	result := models.ComplianceResult{Verdict: models.VerdictSuccess}

	if err := r.Report(context.Background(), group, result); err == nil {
		t.Fatal("Report() should surface the post failure")
	}

	// Retrying the whole group after the fault clears converges.
	poster.failSHA = ""
	if err := r.Report(context.Background(), group, result); err != nil {
		t.Fatalf("retry Report() error: %v", err)
	}
	for _, sha := range []string{"a1", "a2", "a3"} {
		if poster.statuses[sha] != models.VerdictSuccess {
			t.Errorf("status[%s] = %v, want success after retry", sha, poster.statuses[sha])
		}
	}
}

func TestDescribe_SigningURLIncluded(t *testing.T) {
	r := New(newFakePoster(), "https://cla.acme.dev/sign", testLogger())
	desc := r.describe(models.ComplianceResult{
		Verdict:  models.VerdictFailure,
		Unsigned: []string{"bob"},
	})
	if !strings.Contains(desc, "https://cla.acme.dev/sign") {
		t.Errorf("describe() = %q, want signing URL included", desc)
	}
}

func TestJoinCapped(t *testing.T) {
	tests := []struct {
		name   string
		logins []string
		want   string
	}{
		{"under cap", []string{"a", "b"}, "a, b"},
		{"at cap", []string{"a", "b", "c"}, "a, b, c"},
		{"over cap", []string{"a", "b", "c", "d", "e"}, "a, b, c and 2 more"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := joinCapped(tt.logins, 3); got != tt.want {
				t.Errorf("joinCapped() = %q, want %q", got, tt.want)
			}
		})
	}
}

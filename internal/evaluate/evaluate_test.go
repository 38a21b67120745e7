package evaluate

import (
	"context"
	"reflect"
	"testing"

	"github.com/clawarden/clawarden-go/internal/errors"
	"github.com/clawarden/clawarden-go/internal/models"
)

// fakeChecker answers lookups from a fixed signed set, with optional
// per-login failures.
type fakeChecker struct {
	signed map[string]bool
	fail   map[string]error
	calls  int
}

func (f *fakeChecker) IsSigned(_ context.Context, id models.Identity, _, _ string) (bool, error) {
	f.calls++
	if err, ok := f.fail[id.Login]; ok {
		return false, err
	}
	return f.signed[id.Login], nil
}

func ident(login string) *models.Identity {
	return &models.Identity{Login: login}
}

func group(commits ...models.CommitRef) models.CommitGroup {
	return models.CommitGroup{Owner: "acme", Repo: "widget", Commits: commits}
}

func TestEvaluate_Verdicts(t *testing.T) {
	tests := []struct {
		name    string
		group   models.CommitGroup
		signed  map[string]bool
		fail    map[string]error
		want    models.Verdict
		wantErr bool
	}{
		{
			name: "all signed",
			group: group(
				models.CommitRef{SHA: "a1", Author: ident("alice"), Committer: ident("alice")},
				models.CommitRef{SHA: "a2", Author: ident("bob"), Committer: ident("alice")},
			),
			signed: map[string]bool{"alice": true, "bob": true},
			want:   models.VerdictSuccess,
		},
		{
			name: "one unsigned fails the group",
			group: group(
				models.CommitRef{SHA: "a1", Author: ident("alice")},
				models.CommitRef{SHA: "a2", Committer: ident("bob")},
			),
			signed: map[string]bool{"alice": true},
			want:   models.VerdictFailure,
		},
		{
			name: "author and committer are both obligations",
			group: group(
				models.CommitRef{SHA: "a1", Author: ident("mallory"), Committer: ident("alice")},
			),
			signed: map[string]bool{"alice": true},
			want:   models.VerdictFailure,
		},
		{
			name:   "empty group is trivially compliant",
			group:  group(),
			signed: map[string]bool{},
			want:   models.VerdictSuccess,
		},
		{
			name: "absent identities do not change the verdict",
			group: group(
				models.CommitRef{SHA: "a1"},
				models.CommitRef{SHA: "a2", Author: ident("alice")},
			),
			signed: map[string]bool{"alice": true},
			want:   models.VerdictSuccess,
		},
		{
			name: "transient lookup failure is pending, not unsigned",
			group: group(
				models.CommitRef{SHA: "a1", Author: ident("alice"), Committer: ident("carol")},
			),
			signed: map[string]bool{"alice": true},
			fail:   map[string]error{"carol": errors.LookupUnavailable(errors.New(errors.KindInternal, "db down"), "lookup")},
			want:   models.VerdictPending,
		},
		{
			name: "unsigned wins over unknown",
			group: group(
				models.CommitRef{SHA: "a1", Author: ident("bob"), Committer: ident("carol")},
			),
			signed: map[string]bool{},
			fail:   map[string]error{"carol": errors.LookupUnavailable(errors.New(errors.KindInternal, "db down"), "lookup")},
			want:   models.VerdictFailure,
		},
		{
			name: "ambiguous agreement aborts the evaluation",
			group: group(
				models.CommitRef{SHA: "a1", Author: ident("alice")},
			),
			fail:    map[string]error{"alice": errors.Ambiguous("2 agreements cover acme/widget")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &fakeChecker{signed: tt.signed, fail: tt.fail}
			result, err := Evaluate(context.Background(), tt.group, checker)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Evaluate() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Evaluate() unexpected error: %v", err)
			}
			if result.Verdict != tt.want {
				t.Errorf("Evaluate() verdict = %v, want %v", result.Verdict, tt.want)
			}
		})
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	g := group(
		models.CommitRef{SHA: "a1", Author: ident("zoe"), Committer: ident("alice")},
		models.CommitRef{SHA: "a2", Author: ident("bob")},
	)
	checker := &fakeChecker{signed: map[string]bool{"alice": true, "zoe": true}}

	first, err := Evaluate(context.Background(), g, checker)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	second, err := Evaluate(context.Background(), g, checker)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Evaluate() not deterministic:\nfirst:  %+v\nsecond: %+v", first, second)
	}
	if !reflect.DeepEqual(first.Unsigned, []string{"bob"}) {
		t.Errorf("Unsigned = %v, want [bob]", first.Unsigned)
	}
}

func TestEvaluate_DistinctIdentitiesQueriedOnce(t *testing.T) {
	g := group(
		models.CommitRef{SHA: "a1", Author: ident("alice"), Committer: ident("alice")},
		models.CommitRef{SHA: "a2", Author: ident("alice")},
	)
	checker := &fakeChecker{signed: map[string]bool{"alice": true}}

	if _, err := Evaluate(context.Background(), g, checker); err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if checker.calls != 1 {
		t.Errorf("checker called %d times, want 1", checker.calls)
	}
}

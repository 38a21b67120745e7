package models

// Identity is a forge account reference. Two identities with the same login
// are the same entity; email and display name are never used for matching.
type Identity struct {
	Login string `json:"login"`
	ID    int64  `json:"id,omitempty"`
}

// CommitRef is one commit attributed to its resolvable forge accounts.
// Author or Committer is nil when the raw data carries no linked account
// (bot pushes, rebases with unlinked committers).
type CommitRef struct {
	Owner     string    `json:"owner"`
	Repo      string    `json:"repo"`
	SHA       string    `json:"sha"`
	Author    *Identity `json:"author,omitempty"`
	Committer *Identity `json:"committer,omitempty"`
}

// HasIdentity reports whether the commit has at least one resolvable account.
func (c CommitRef) HasIdentity() bool {
	return c.Author != nil || c.Committer != nil
}

// CommitGroup is the unit of evaluation: the commits introduced by one push,
// or the commits of one pull request at fetch time. Built fresh per
// evaluation and discarded after the status is reported.
type CommitGroup struct {
	Owner   string      `json:"owner"`
	Repo    string      `json:"repo"`
	Commits []CommitRef `json:"commits"`
}

// Identities returns the distinct contributing identities across all commits,
// deduplicated by login, in first-seen order. Absent fields are excluded.
func (g CommitGroup) Identities() []Identity {
	seen := make(map[string]bool, len(g.Commits)*2)
	var out []Identity
	add := func(id *Identity) {
		if id == nil || id.Login == "" || seen[id.Login] {
			return
		}
		seen[id.Login] = true
		out = append(out, *id)
	}
	for _, c := range g.Commits {
		add(c.Author)
		add(c.Committer)
	}
	return out
}

// Verdict is the aggregate compliance outcome reported to the forge.
type Verdict string

const (
	VerdictSuccess Verdict = "success"
	VerdictPending Verdict = "pending"
	VerdictFailure Verdict = "failure"
)

// SignatureState is the per-identity outcome of a signature lookup.
type SignatureState string

const (
	StateSigned   SignatureState = "signed"
	StateUnsigned SignatureState = "unsigned"
	// StateUnknown means the lookup itself failed transiently. It maps to a
	// pending verdict, never to unsigned.
	StateUnknown SignatureState = "unknown"
)

// ComplianceResult is the per-group evaluation outcome. Ephemeral; produced
// and consumed within one evaluation cycle.
type ComplianceResult struct {
	Identities map[string]SignatureState `json:"identities"`
	Unsigned   []string                  `json:"unsigned,omitempty"`
	Unknown    []string                  `json:"unknown,omitempty"`
	Verdict    Verdict                   `json:"verdict"`
}

// RepoSummary is a normalized repository listing entry.
type RepoSummary struct {
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Private  bool   `json:"private"`
}

// PullSummary is a normalized open pull request listing entry.
type PullSummary struct {
	Number  int    `json:"number"`
	Title   string `json:"title,omitempty"`
	HeadSHA string `json:"head_sha,omitempty"`
}

// CommitSummary is a normalized pull-request commit listing entry. Empty
// logins mean the forge could not resolve an account for that role.
type CommitSummary struct {
	SHA            string `json:"sha"`
	AuthorLogin    string `json:"author_login,omitempty"`
	AuthorID       int64  `json:"author_id,omitempty"`
	CommitterLogin string `json:"committer_login,omitempty"`
	CommitterID    int64  `json:"committer_id,omitempty"`
}

// HookHandle identifies a registered webhook on the forge.
type HookHandle struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

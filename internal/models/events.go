package models

import (
	"encoding/json"
	"fmt"
)

// EventKind identifies an inbound webhook event type.
type EventKind string

const (
	EventPush        EventKind = "push"
	EventPullRequest EventKind = "pull_request"
)

// PushEvent is the self-contained push payload: the repository plus the
// ordered commit list the push introduced. No forge call is needed to
// evaluate it.
type PushEvent struct {
	Repository EventRepository `json:"repository"`
	Commits    []PushCommit    `json:"commits"`
}

// PushCommit is one commit entry of a push payload. Username is empty when
// the payload has no linked forge account for that role.
type PushCommit struct {
	SHA       string       `json:"id"`
	Author    EventAccount `json:"author"`
	Committer EventAccount `json:"committer"`
}

// EventAccount is the author/committer block of a push commit entry.
type EventAccount struct {
	Username string `json:"username"`
}

// PullRequestEvent carries the PR number and action; the commit list must be
// fetched from the forge.
type PullRequestEvent struct {
	Action     string          `json:"action"`
	Number     int             `json:"number"`
	Repository EventRepository `json:"repository"`
}

// EventRepository is the repository block shared by both payload kinds.
type EventRepository struct {
	Name  string     `json:"name"`
	Owner EventOwner `json:"owner"`
}

// EventOwner tolerates both webhook owner encodings: push payloads use
// "name", pull_request payloads use "login".
type EventOwner struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}

// Resolved returns whichever owner field the payload populated.
func (o EventOwner) Resolved() string {
	if o.Login != "" {
		return o.Login
	}
	return o.Name
}

// Event is the closed tagged union of payload shapes this pipeline accepts.
// Exactly one of Push and PullRequest is non-nil.
type Event struct {
	Kind        EventKind
	Push        *PushEvent
	PullRequest *PullRequestEvent
}

// ParseEvent validates a raw webhook body against the closed union. Unknown
// kinds and structurally invalid bodies are rejected; the caller maps the
// error to a malformed-payload terminal state.
func ParseEvent(kind EventKind, payload []byte) (*Event, error) {
	switch kind {
	case EventPush:
		var ev PushEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("decode push payload: %w", err)
		}
		if ev.Repository.Name == "" || ev.Repository.Owner.Resolved() == "" {
			return nil, fmt.Errorf("push payload missing repository reference")
		}
		for i, c := range ev.Commits {
			if c.SHA == "" {
				return nil, fmt.Errorf("push payload commit %d missing sha", i)
			}
		}
		return &Event{Kind: EventPush, Push: &ev}, nil

	case EventPullRequest:
		var ev PullRequestEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("decode pull_request payload: %w", err)
		}
		if ev.Repository.Name == "" || ev.Repository.Owner.Resolved() == "" {
			return nil, fmt.Errorf("pull_request payload missing repository reference")
		}
		if ev.Number <= 0 {
			return nil, fmt.Errorf("pull_request payload missing number")
		}
		return &Event{Kind: EventPullRequest, PullRequest: &ev}, nil

	default:
		return nil, fmt.Errorf("unsupported event kind %q", kind)
	}
}

package activity

import (
	"fmt"
	"strconv"
	"time"
)

// Commit is the payload of a push/commit record.
type Commit struct {
	SHA         string `json:"sha"`
	Message     string `json:"message"`
	AuthorEmail string `json:"author_email,omitempty"`
	URL         string `json:"url,omitempty"`
	Additions   int    `json:"additions,omitempty"`
	Deletions   int    `json:"deletions,omitempty"`
}

// PullRequestInfo is the payload of a pull request or review record.
type PullRequestInfo struct {
	Number   int        `json:"number"`
	Title    string     `json:"title,omitempty"`
	State    string     `json:"state,omitempty"`
	Merged   bool       `json:"merged,omitempty"`
	MergedAt *time.Time `json:"merged_at,omitempty"`
	URL      string     `json:"url,omitempty"`
}

// IssueInfo is the payload of an issue record.
type IssueInfo struct {
	Number   int      `json:"number"`
	Title    string   `json:"title,omitempty"`
	State    string   `json:"state,omitempty"`
	Labels   []string `json:"labels,omitempty"`
	Comments int      `json:"comments,omitempty"`
	URL      string   `json:"url,omitempty"`
}

// Record is one activity event attributed to the subject. Records are
// immutable once produced by an adapter; the aggregator builds merged
// copies rather than mutating in place.
type Record struct {
	Kind   Kind      `json:"kind"`
	Time   time.Time `json:"time"` // always UTC
	Actor  string    `json:"actor"`
	Repo   string    `json:"repo"`
	Source Source    `json:"source"`

	// EventID is the Events API id; feed-only metadata.
	EventID string `json:"event_id,omitempty"`

	// At most one payload is set, matching Kind.
	Commit      *Commit          `json:"commit,omitempty"`
	PullRequest *PullRequestInfo `json:"pull_request,omitempty"`
	Issue       *IssueInfo       `json:"issue,omitempty"`
}

// NaturalKey returns the source-specific key identifying the
// underlying event: commit SHA, PR number, or issue number.
// Empty when the record carries no payload with a natural key.
func (r Record) NaturalKey() string {
	switch {
	case r.Commit != nil && r.Commit.SHA != "":
		return r.Commit.SHA
	case r.PullRequest != nil && r.PullRequest.Number > 0:
		return strconv.Itoa(r.PullRequest.Number)
	case r.Issue != nil && r.Issue.Number > 0:
		return strconv.Itoa(r.Issue.Number)
	default:
		return ""
	}
}

// IdentityKey derives the deduplication key: two records denote the
// same logical event iff their identity keys are equal, regardless of
// reporting source. Falls back to the timestamp truncated to the
// minute when no natural key exists.
func (r Record) IdentityKey() string {
	nat := r.NaturalKey()
	if nat == "" {
		nat = r.Time.UTC().Truncate(time.Minute).Format(time.RFC3339)
	}
	return fmt.Sprintf("%s|%s|%s|%s", r.Kind, r.Repo, r.Actor, nat)
}

// Merge combines a duplicate pair with the receiver as the
// authoritative record. Authoritative fields win; fields the
// authoritative record lacks are filled from other (the feed's
// event id, commit email, issue labels and similar metadata).
func (r Record) Merge(other Record) Record {
	merged := r

	if merged.EventID == "" {
		merged.EventID = other.EventID
	}
	if merged.Actor == "" {
		merged.Actor = other.Actor
	}
	if merged.Time.IsZero() {
		merged.Time = other.Time
	}

	switch {
	case merged.Commit != nil && other.Commit != nil:
		c := *merged.Commit
		if c.Message == "" {
			c.Message = other.Commit.Message
		}
		if c.AuthorEmail == "" {
			c.AuthorEmail = other.Commit.AuthorEmail
		}
		if c.URL == "" {
			c.URL = other.Commit.URL
		}
		merged.Commit = &c
	case merged.PullRequest != nil && other.PullRequest != nil:
		pr := *merged.PullRequest
		if pr.Title == "" {
			pr.Title = other.PullRequest.Title
		}
		if pr.State == "" {
			pr.State = other.PullRequest.State
		}
		if pr.URL == "" {
			pr.URL = other.PullRequest.URL
		}
		merged.PullRequest = &pr
	case merged.Issue != nil && other.Issue != nil:
		is := *merged.Issue
		if is.Title == "" {
			is.Title = other.Issue.Title
		}
		if is.State == "" {
			is.State = other.Issue.State
		}
		if len(is.Labels) == 0 {
			is.Labels = other.Issue.Labels
		}
		if is.URL == "" {
			is.URL = other.Issue.URL
		}
		merged.Issue = &is
	case merged.Commit == nil && merged.PullRequest == nil && merged.Issue == nil:
		merged.Commit = other.Commit
		merged.PullRequest = other.PullRequest
		merged.Issue = other.Issue
	}

	return merged
}

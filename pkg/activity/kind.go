// Package activity defines the data model for collected GitHub user
// activity: typed records with identity keys, profile and repository
// metadata, contribution statistics, and the sealed collection result.
package activity

// Kind is the closed set of activity variants. The open-ended event
// type strings from the Events API are folded into this enumeration at
// parse time; anything unrecognized becomes KindOther.
type Kind string

const (
	KindPush        Kind = "push"
	KindPullRequest Kind = "pull_request"
	KindIssue       Kind = "issue"
	KindReview      Kind = "review"
	KindComment     Kind = "comment"
	KindCreate      Kind = "create"
	KindDelete      Kind = "delete"
	KindFork        Kind = "fork"
	KindWatch       Kind = "watch"
	KindRelease     Kind = "release"
	KindOther       Kind = "other"
)

// Category partitions the merged timeline.
type Category string

const (
	CategoryCommits      Category = "commits"
	CategoryPullRequests Category = "pull_requests"
	CategoryIssues       Category = "issues"
	CategoryReviews      Category = "reviews"
	CategoryComments     Category = "comments"
	CategoryOther        Category = "other"
)

// Categories lists all timeline categories in presentation order.
var Categories = []Category{
	CategoryCommits,
	CategoryPullRequests,
	CategoryIssues,
	CategoryReviews,
	CategoryComments,
	CategoryOther,
}

// Category returns the timeline partition for the kind.
func (k Kind) Category() Category {
	switch k {
	case KindPush:
		return CategoryCommits
	case KindPullRequest:
		return CategoryPullRequests
	case KindIssue:
		return CategoryIssues
	case KindReview:
		return CategoryReviews
	case KindComment:
		return CategoryComments
	default:
		return CategoryOther
	}
}

// KindFromEventType maps an Events API type string to a Kind.
func KindFromEventType(eventType string) Kind {
	switch eventType {
	case "PushEvent":
		return KindPush
	case "PullRequestEvent":
		return KindPullRequest
	case "IssuesEvent":
		return KindIssue
	case "PullRequestReviewEvent":
		return KindReview
	case "IssueCommentEvent", "PullRequestReviewCommentEvent", "CommitCommentEvent":
		return KindComment
	case "CreateEvent":
		return KindCreate
	case "DeleteEvent":
		return KindDelete
	case "ForkEvent":
		return KindFork
	case "WatchEvent":
		return KindWatch
	case "ReleaseEvent":
		return KindRelease
	default:
		return KindOther
	}
}

// Source identifies which API pool reported a record.
type Source string

const (
	SourceFeed   Source = "feed"
	SourceSearch Source = "search"
	SourceGraph  Source = "graph"
)

// Priority orders sources for duplicate merging: search and graph are
// authoritative over the feed.
func (s Source) Priority() int {
	switch s {
	case SourceSearch, SourceGraph:
		return 2
	case SourceFeed:
		return 1
	default:
		return 0
	}
}

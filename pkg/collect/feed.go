package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/codetrail/ghactivity/pkg/activity"
	"github.com/codetrail/ghactivity/pkg/ghapi"
	"github.com/codetrail/ghactivity/pkg/paginate"
	"github.com/codetrail/ghactivity/pkg/ratelimit"
)

// The Events API serves at most 300 events and nothing older than 90
// days, whichever bound hits first. FeedMaxPages follows from the
// 100-per-page request size.
const (
	FeedMaxEvents = 300
	FeedMaxPages  = 3

	// QuickFeedPages bounds quick-mode runs to the first page.
	QuickFeedPages = 1
)

// feedAdapter turns the subject's public event feed into records.
// Push events fan out into one record per carried commit.
type feedAdapter struct {
	d      *dispatcher
	logger zerolog.Logger
}

// feedEvent is the raw Events API item shape.
type feedEvent struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Actor struct {
		Login string `json:"login"`
	} `json:"actor"`
	Repo struct {
		Name string `json:"name"`
	} `json:"repo"`
	CreatedAt time.Time `json:"created_at"`
	Payload   struct {
		Action  string `json:"action"`
		Ref     string `json:"ref"`
		RefType string `json:"ref_type"`
		Commits []struct {
			SHA     string `json:"sha"`
			Message string `json:"message"`
			Author  struct {
				Name  string `json:"name"`
				Email string `json:"email"`
			} `json:"author"`
		} `json:"commits"`
		PullRequest *struct {
			Number  int    `json:"number"`
			Title   string `json:"title"`
			State   string `json:"state"`
			Merged  bool   `json:"merged"`
			HTMLURL string `json:"html_url"`
		} `json:"pull_request"`
		Issue *struct {
			Number  int    `json:"number"`
			Title   string `json:"title"`
			State   string `json:"state"`
			HTMLURL string `json:"html_url"`
		} `json:"issue"`
	} `json:"payload"`
}

// fetch walks the event feed and emits records inside [since, until].
// It reports whether the feed was exhausted within the window: a
// truncated walk means older activity exists beyond the retention cap.
func (a *feedAdapter) fetch(ctx context.Context, subject string, since, until time.Time, maxPages int, emit func(activity.Record)) (complete bool, err error) {
	start := fmt.Sprintf("/users/%s/events/public?per_page=100", url.PathEscape(subject))

	res, err := paginate.Walk(ctx, func(ctx context.Context, cursor paginate.Cursor) (paginate.Page[feedEvent], error) {
		target := start
		if cursor != "" {
			target = string(cursor)
		}
		resp, err := a.d.get(ctx, ratelimit.PoolFeed, target)
		if err != nil {
			return paginate.Page[feedEvent]{}, err
		}

		var events []feedEvent
		if err := json.Unmarshal(resp.Body, &events); err != nil {
			return paginate.Page[feedEvent]{}, fmt.Errorf("decode event feed: %w", err)
		}
		return paginate.Page[feedEvent]{Items: events, Next: paginate.Cursor(resp.NextPage)}, nil
	}, paginate.Options{MaxPages: maxPages, MaxItems: FeedMaxEvents})
	if err != nil {
		return false, err
	}

	emitted := 0
	for _, ev := range res.Items {
		t := ev.CreatedAt.UTC()
		if t.Before(since) || t.After(until) {
			continue
		}
		for _, rec := range parseFeedEvent(ev) {
			emit(rec)
			emitted++
		}
	}

	a.logger.Debug().
		Int("events", len(res.Items)).
		Int("records", emitted).
		Int("pages", res.Pages).
		Bool("truncated", res.Truncated).
		Msg("event feed collected")

	return !res.Truncated, nil
}

// parseFeedEvent maps one raw event onto zero or more records. A push
// becomes one record per commit so commits can later merge with their
// search-sourced counterparts by SHA.
func parseFeedEvent(ev feedEvent) []activity.Record {
	base := activity.Record{
		Kind:    activity.KindFromEventType(ev.Type),
		Time:    ev.CreatedAt.UTC(),
		Actor:   ev.Actor.Login,
		Repo:    ev.Repo.Name,
		Source:  activity.SourceFeed,
		EventID: ev.ID,
	}

	switch base.Kind {
	case activity.KindPush:
		if len(ev.Payload.Commits) == 0 {
			return []activity.Record{base}
		}
		records := make([]activity.Record, 0, len(ev.Payload.Commits))
		for _, c := range ev.Payload.Commits {
			rec := base
			rec.Commit = &activity.Commit{
				SHA:         c.SHA,
				Message:     c.Message,
				AuthorEmail: c.Author.Email,
				URL:         fmt.Sprintf("https://github.com/%s/commit/%s", ev.Repo.Name, c.SHA),
			}
			records = append(records, rec)
		}
		return records

	case activity.KindPullRequest, activity.KindReview:
		if pr := ev.Payload.PullRequest; pr != nil {
			base.PullRequest = &activity.PullRequestInfo{
				Number: pr.Number,
				Title:  pr.Title,
				State:  pr.State,
				Merged: pr.Merged,
				URL:    pr.HTMLURL,
			}
		}

	case activity.KindIssue:
		if is := ev.Payload.Issue; is != nil {
			base.Issue = &activity.IssueInfo{
				Number: is.Number,
				Title:  is.Title,
				State:  is.State,
				URL:    is.HTMLURL,
			}
		}

	case activity.KindComment:
		// Comment events reference either an issue or a PR thread.
		if is := ev.Payload.Issue; is != nil {
			base.Issue = &activity.IssueInfo{
				Number: is.Number,
				Title:  is.Title,
				State:  is.State,
				URL:    is.HTMLURL,
			}
		} else if pr := ev.Payload.PullRequest; pr != nil {
			base.PullRequest = &activity.PullRequestInfo{
				Number: pr.Number,
				Title:  pr.Title,
				State:  pr.State,
				URL:    pr.HTMLURL,
			}
		}
	}

	return []activity.Record{base}
}

// repoCommit is the raw commit list item shape.
type repoCommit struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Name  string    `json:"name"`
			Email string    `json:"email"`
			Date  time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	Author *struct {
		Login string `json:"login"`
	} `json:"author"`
}

// listRepoCommits emits commit records for one repository, attributed
// to the subject. Deep mode runs this against the most recently pushed
// repositories to reach commits the retention-capped feed missed.
func (a *feedAdapter) listRepoCommits(ctx context.Context, subject, fullName string, since, until time.Time, emit func(activity.Record)) error {
	endpoint := fmt.Sprintf("/repos/%s/commits?author=%s&since=%s&until=%s&per_page=100",
		fullName,
		url.QueryEscape(subject),
		url.QueryEscape(since.Format(time.RFC3339)),
		url.QueryEscape(until.Format(time.RFC3339)))

	resp, err := a.d.get(ctx, ratelimit.PoolFeed, endpoint)
	if err != nil {
		// Empty repositories answer 409; treat as no commits.
		if resp != nil && resp.StatusCode == 409 {
			return nil
		}
		// A repo gone mid-run is not worth failing the stream over.
		if ghapi.ClassOf(err) == ghapi.ClassNotFound {
			return nil
		}
		return err
	}

	var commits []repoCommit
	if err := json.Unmarshal(resp.Body, &commits); err != nil {
		return fmt.Errorf("decode commit list for %s: %w", fullName, err)
	}

	for _, c := range commits {
		actor := subject
		if c.Author != nil && c.Author.Login != "" {
			actor = c.Author.Login
		}
		emit(activity.Record{
			Kind:   activity.KindPush,
			Time:   c.Commit.Author.Date.UTC(),
			Actor:  actor,
			Repo:   fullName,
			Source: activity.SourceFeed,
			Commit: &activity.Commit{
				SHA:         c.SHA,
				Message:     c.Commit.Message,
				AuthorEmail: c.Commit.Author.Email,
				URL:         c.HTMLURL,
			},
		})
	}
	return nil
}

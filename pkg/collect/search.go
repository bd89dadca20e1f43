package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/codetrail/ghactivity/pkg/activity"
	"github.com/codetrail/ghactivity/pkg/paginate"
	"github.com/codetrail/ghactivity/pkg/ratelimit"
)

// The Search API never serves results past the first thousand matches,
// regardless of pagination. Ranges that match more get bisected into
// sub-ranges until each fits, down to a one-day floor.
const (
	SearchResultCap = 1000
	searchPageSize  = 100
	searchDateDay   = "2006-01-02"
)

// searchQuery describes one search-pool collection stream.
type searchQuery struct {
	path      string // /search/issues or /search/commits
	qualifier string // query minus the date range, subject applied
	dateField string // created or author-date
	kind      activity.Kind
}

func queriesFor(subject string) []searchQuery {
	return []searchQuery{
		{path: "/search/issues", qualifier: "author:" + subject + " type:pr", dateField: "created", kind: activity.KindPullRequest},
		{path: "/search/issues", qualifier: "author:" + subject + " type:issue", dateField: "created", kind: activity.KindIssue},
		{path: "/search/issues", qualifier: "reviewed-by:" + subject + " type:pr", dateField: "created", kind: activity.KindReview},
		{path: "/search/commits", qualifier: "author:" + subject, dateField: "author-date", kind: activity.KindPush},
	}
}

// searchAdapter collects the subject's authored work through the
// Search API, which reaches past the event feed's retention window.
type searchAdapter struct {
	d      *dispatcher
	logger zerolog.Logger
}

// searchResult is the raw search response envelope. Items stay raw
// because issue search and commit search carry different item shapes.
type searchResult struct {
	TotalCount        int               `json:"total_count"`
	IncompleteResults bool              `json:"incomplete_results"`
	Items             []json.RawMessage `json:"items"`
}

// fetch runs every query stream and emits records. The returned map
// flags, per affected category, whether results are known complete;
// a capped one-day leaf marks its category incomplete.
func (a *searchAdapter) fetch(ctx context.Context, subject string, since, until time.Time, emit func(activity.Record)) (map[activity.Category]bool, error) {
	complete := make(map[activity.Category]bool)
	for _, q := range queriesFor(subject) {
		full, err := a.collectRange(ctx, q, since, until, emit)
		if err != nil {
			return complete, err
		}
		cat := q.kind.Category()
		if prev, ok := complete[cat]; ok {
			complete[cat] = prev && full
		} else {
			complete[cat] = full
		}
	}
	return complete, nil
}

// collectRange collects one query over [since, until]. When the range
// matches more than the result cap it splits at the midpoint and
// recurses on both halves; a range already at the one-day floor is
// walked as far as the cap allows and reported incomplete.
func (a *searchAdapter) collectRange(ctx context.Context, q searchQuery, since, until time.Time, emit func(activity.Record)) (complete bool, err error) {
	first, err := a.page(ctx, q, since, until, "")
	if err != nil {
		return false, err
	}

	if first.result.TotalCount > SearchResultCap {
		if until.Sub(since) > 24*time.Hour {
			mid := since.Add(until.Sub(since) / 2).Truncate(24 * time.Hour)
			searchBisectionsTotal.Inc()
			a.logger.Debug().
				Str("qualifier", q.qualifier).
				Int("total", first.result.TotalCount).
				Time("mid", mid).
				Msg("search range over result cap, bisecting")

			left, err := a.collectRange(ctx, q, since, mid, emit)
			if err != nil {
				return false, err
			}
			right, err := a.collectRange(ctx, q, mid.Add(24*time.Hour), until, emit)
			if err != nil {
				return left, err
			}
			return left && right, nil
		}

		// One day with over a thousand matches: take what the cap
		// yields and flag the gap.
		a.logger.Warn().
			Str("qualifier", q.qualifier).
			Int("total", first.result.TotalCount).
			Time("since", since).
			Msg("single day exceeds search result cap, results incomplete")
		complete = false
	} else {
		complete = true
	}

	if err := a.walk(ctx, q, since, until, first, emit); err != nil {
		return false, err
	}
	return complete, nil
}

// page fetches one search page. cursor is a Link continuation URL,
// empty for the first page.
func (a *searchAdapter) page(ctx context.Context, q searchQuery, since, until time.Time, cursor paginate.Cursor) (*searchPage, error) {
	target := string(cursor)
	if target == "" {
		query := fmt.Sprintf("%s %s:%s..%s",
			q.qualifier, q.dateField,
			since.UTC().Format(searchDateDay),
			until.UTC().Format(searchDateDay))
		v := url.Values{}
		v.Set("q", query)
		v.Set("per_page", fmt.Sprint(searchPageSize))
		v.Set("sort", q.dateField)
		v.Set("order", "desc")
		target = q.path + "?" + v.Encode()
	}

	resp, err := a.d.get(ctx, ratelimit.PoolSearch, target)
	if err != nil {
		return nil, err
	}

	var result searchResult
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &searchPage{result: result, next: paginate.Cursor(resp.NextPage)}, nil
}

type searchPage struct {
	result searchResult
	next   paginate.Cursor
}

// walk emits the already-fetched first page, then follows Link
// continuations up to the result cap.
func (a *searchAdapter) walk(ctx context.Context, q searchQuery, since, until time.Time, first *searchPage, emit func(activity.Record)) error {
	res, err := paginate.Walk(ctx, func(ctx context.Context, cursor paginate.Cursor) (paginate.Page[json.RawMessage], error) {
		page := first
		if cursor != "" {
			var err error
			page, err = a.page(ctx, q, since, until, cursor)
			if err != nil {
				return paginate.Page[json.RawMessage]{}, err
			}
		}
		return paginate.Page[json.RawMessage]{Items: page.result.Items, Next: page.next}, nil
	}, paginate.Options{MaxItems: SearchResultCap})
	if err != nil {
		return err
	}

	for _, raw := range res.Items {
		rec, ok := parseSearchItem(q, raw)
		if !ok {
			continue
		}
		emit(rec)
	}
	return nil
}

// issueSearchItem is the raw /search/issues item shape.
type issueSearchItem struct {
	Number        int       `json:"number"`
	Title         string    `json:"title"`
	State         string    `json:"state"`
	HTMLURL       string    `json:"html_url"`
	RepositoryURL string    `json:"repository_url"`
	Comments      int       `json:"comments"`
	CreatedAt     time.Time `json:"created_at"`
	User          struct {
		Login string `json:"login"`
	} `json:"user"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
	PullRequest *struct {
		MergedAt *time.Time `json:"merged_at"`
	} `json:"pull_request"`
}

// commitSearchItem is the raw /search/commits item shape.
type commitSearchItem struct {
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
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Author *struct {
		Login string `json:"login"`
	} `json:"author"`
}

func parseSearchItem(q searchQuery, raw json.RawMessage) (activity.Record, bool) {
	if q.path == "/search/commits" {
		var item commitSearchItem
		if err := json.Unmarshal(raw, &item); err != nil || item.SHA == "" {
			return activity.Record{}, false
		}
		actor := ""
		if item.Author != nil {
			actor = item.Author.Login
		}
		return activity.Record{
			Kind:   activity.KindPush,
			Time:   item.Commit.Author.Date.UTC(),
			Actor:  actor,
			Repo:   item.Repository.FullName,
			Source: activity.SourceSearch,
			Commit: &activity.Commit{
				SHA:         item.SHA,
				Message:     item.Commit.Message,
				AuthorEmail: item.Commit.Author.Email,
				URL:         item.HTMLURL,
			},
		}, true
	}

	var item issueSearchItem
	if err := json.Unmarshal(raw, &item); err != nil || item.Number == 0 {
		return activity.Record{}, false
	}

	rec := activity.Record{
		Kind:   q.kind,
		Time:   item.CreatedAt.UTC(),
		Actor:  item.User.Login,
		Repo:   repoFromAPIURL(item.RepositoryURL),
		Source: activity.SourceSearch,
	}

	switch q.kind {
	case activity.KindPullRequest, activity.KindReview:
		pr := &activity.PullRequestInfo{
			Number: item.Number,
			Title:  item.Title,
			State:  item.State,
			URL:    item.HTMLURL,
		}
		if item.PullRequest != nil && item.PullRequest.MergedAt != nil {
			pr.Merged = true
			pr.MergedAt = item.PullRequest.MergedAt
		}
		rec.PullRequest = pr
	default:
		is := &activity.IssueInfo{
			Number:   item.Number,
			Title:    item.Title,
			State:    item.State,
			Comments: item.Comments,
			URL:      item.HTMLURL,
		}
		for _, l := range item.Labels {
			is.Labels = append(is.Labels, l.Name)
		}
		rec.Issue = is
	}
	return rec, true
}

// repoFromAPIURL extracts "owner/name" from an API repository URL like
// https://api.github.com/repos/owner/name.
func repoFromAPIURL(apiURL string) string {
	const marker = "/repos/"
	i := strings.Index(apiURL, marker)
	if i < 0 {
		return ""
	}
	return apiURL[i+len(marker):]
}

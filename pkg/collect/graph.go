package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/codetrail/ghactivity/pkg/activity"
)

// contributionsQuery pulls the contribution calendar plus per-type
// totals. The collection spans at most one year per query, so longer
// windows are split per calendar year and summed.
const contributionsQuery = `query($login: String!, $from: DateTime!, $to: DateTime!) {
  user(login: $login) {
    contributionsCollection(from: $from, to: $to) {
      totalCommitContributions
      totalIssueContributions
      totalPullRequestContributions
      totalPullRequestReviewContributions
      restrictedContributionsCount
      contributionCalendar {
        totalContributions
        weeks {
          contributionDays {
            date
            contributionCount
            contributionLevel
          }
        }
      }
    }
  }
}`

// graphAdapter collects contribution statistics over the graph pool.
type graphAdapter struct {
	d      *dispatcher
	logger zerolog.Logger
}

type contributionsPayload struct {
	User *struct {
		ContributionsCollection struct {
			TotalCommitContributions            int `json:"totalCommitContributions"`
			TotalIssueContributions             int `json:"totalIssueContributions"`
			TotalPullRequestContributions       int `json:"totalPullRequestContributions"`
			TotalPullRequestReviewContributions int `json:"totalPullRequestReviewContributions"`
			RestrictedContributionsCount        int `json:"restrictedContributionsCount"`
			ContributionCalendar                struct {
				TotalContributions int `json:"totalContributions"`
				Weeks              []struct {
					ContributionDays []struct {
						Date              string `json:"date"`
						ContributionCount int    `json:"contributionCount"`
						ContributionLevel string `json:"contributionLevel"`
					} `json:"contributionDays"`
				} `json:"weeks"`
			} `json:"contributionCalendar"`
		} `json:"contributionsCollection"`
	} `json:"user"`
}

// fetch sums contribution stats over [since, until], one query per
// calendar-year slice.
func (a *graphAdapter) fetch(ctx context.Context, subject string, since, until time.Time) (*activity.ContributionStats, error) {
	stats := &activity.ContributionStats{}

	for from := since; from.Before(until); {
		to := time.Date(from.Year(), 12, 31, 23, 59, 59, 0, time.UTC)
		if to.After(until) {
			to = until
		}

		if err := a.fetchSlice(ctx, subject, from, to, stats); err != nil {
			return nil, err
		}

		from = time.Date(from.Year()+1, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	a.logger.Debug().
		Int("total", stats.Calendar.TotalContributions).
		Int("days", len(stats.Calendar.Days)).
		Msg("contribution stats collected")

	return stats, nil
}

func (a *graphAdapter) fetchSlice(ctx context.Context, subject string, from, to time.Time, stats *activity.ContributionStats) error {
	data, err := a.d.graphql(ctx, contributionsQuery, map[string]any{
		"login": subject,
		"from":  from.UTC().Format(time.RFC3339),
		"to":    to.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	var payload contributionsPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("decode contributions: %w", err)
	}
	if payload.User == nil {
		return fmt.Errorf("contributions for %s: user missing from response", subject)
	}

	cc := payload.User.ContributionsCollection
	stats.TotalCommits += cc.TotalCommitContributions
	stats.TotalIssues += cc.TotalIssueContributions
	stats.TotalPullRequests += cc.TotalPullRequestContributions
	stats.TotalReviews += cc.TotalPullRequestReviewContributions
	stats.Restricted += cc.RestrictedContributionsCount
	stats.Calendar.TotalContributions += cc.ContributionCalendar.TotalContributions

	for _, week := range cc.ContributionCalendar.Weeks {
		for _, day := range week.ContributionDays {
			date, err := time.Parse("2006-01-02", day.Date)
			if err != nil {
				continue
			}
			stats.Calendar.Days = append(stats.Calendar.Days, activity.ContributionDay{
				Date:  date,
				Count: day.ContributionCount,
				Level: day.ContributionLevel,
			})
		}
	}
	return nil
}

package activity

import "time"

// ContributionDay is one cell of the contribution calendar grid.
type ContributionDay struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
	Level string    `json:"level"` // NONE..FOURTH_QUARTILE per GraphQL
}

// ContributionCalendar is the per-day contribution grid.
type ContributionCalendar struct {
	TotalContributions int               `json:"total_contributions"`
	Days               []ContributionDay `json:"days"` // chronological
}

// BusiestDay returns the day with the most contributions, or nil for
// an empty calendar.
func (c *ContributionCalendar) BusiestDay() *ContributionDay {
	var busiest *ContributionDay
	for i := range c.Days {
		if busiest == nil || c.Days[i].Count > busiest.Count {
			busiest = &c.Days[i]
		}
	}
	return busiest
}

// CurrentStreak counts contribution days back from the end of the
// calendar until the first zero day.
func (c *ContributionCalendar) CurrentStreak() int {
	streak := 0
	for i := len(c.Days) - 1; i >= 0; i-- {
		if c.Days[i].Count == 0 {
			break
		}
		streak++
	}
	return streak
}

// LongestStreak returns the longest run of consecutive contribution
// days in the calendar.
func (c *ContributionCalendar) LongestStreak() int {
	longest, current := 0, 0
	for _, d := range c.Days {
		if d.Count > 0 {
			current++
			if current > longest {
				longest = current
			}
		} else {
			current = 0
		}
	}
	return longest
}

// ContributionStats aggregates graph-pool contribution data.
//
// Restricted is the count of private contributions a subject has opted
// into showing. It is exposed raw and never folded into the public
// category totals; the caller decides how to present it.
type ContributionStats struct {
	TotalCommits      int                  `json:"total_commits"`
	TotalIssues       int                  `json:"total_issues"`
	TotalPullRequests int                  `json:"total_pull_requests"`
	TotalReviews      int                  `json:"total_reviews"`
	Restricted        int                  `json:"restricted_contributions"`
	Calendar          ContributionCalendar `json:"calendar"`
}

package activity

import (
	"sort"
	"time"
)

// Warning records one recoverable failure that degraded the result.
type Warning struct {
	Source  Source `json:"source"`
	Code    string `json:"code"` // not_found, throttled, forbidden, invalid, transient
	Message string `json:"message"`
}

// RepoActivity is one entry of the most-active-repos ranking.
type RepoActivity struct {
	Repo  string `json:"repo"`
	Count int    `json:"count"`
}

// Summary holds roll-up counts over the merged timeline.
type Summary struct {
	Subject            string         `json:"subject"`
	PeriodStart        time.Time      `json:"period_start"`
	PeriodEnd          time.Time      `json:"period_end"`
	TotalRecords       int            `json:"total_records"`
	TotalCommits       int            `json:"total_commits"`
	PullRequestsOpened int            `json:"pull_requests_opened"`
	PullRequestsMerged int            `json:"pull_requests_merged"`
	IssuesOpened       int            `json:"issues_opened"`
	IssuesClosed       int            `json:"issues_closed"`
	TotalReviews       int            `json:"total_reviews"`
	TotalComments      int            `json:"total_comments"`
	ReposContributedTo []string       `json:"repos_contributed_to"`
	MostActiveRepos    []RepoActivity `json:"most_active_repos"`
}

// CollectionResult is the sealed output of one collection run.
type CollectionResult struct {
	RunID   string `json:"run_id"`
	Subject string `json:"subject"`

	Profile *Profile     `json:"profile,omitempty"`
	Repos   []Repository `json:"repos,omitempty"`

	// Timeline per category, newest first within each category.
	Timeline map[Category][]Record `json:"timeline"`

	// Complete marks categories whose sources are known exhaustive.
	// False when a capped search leaf was accepted as-is, or when the
	// category is bounded by the feed retention window.
	Complete map[Category]bool `json:"complete"`

	// Contributions is nil when the graph pool was unavailable.
	Contributions *ContributionStats `json:"contributions,omitempty"`

	Summary *Summary `json:"summary,omitempty"`

	// Partial is true when at least one source failed or was skipped.
	Partial  bool      `json:"partial"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// BuildSummary computes roll-up counts from the merged timeline.
func BuildSummary(subject string, timeline map[Category][]Record, start, end time.Time) *Summary {
	s := &Summary{
		Subject:     subject,
		PeriodStart: start.UTC(),
		PeriodEnd:   end.UTC(),
	}

	repoCounts := make(map[string]int)
	for _, records := range timeline {
		for _, r := range records {
			s.TotalRecords++
			if r.Repo != "" {
				repoCounts[r.Repo]++
			}

			switch r.Kind.Category() {
			case CategoryCommits:
				s.TotalCommits++
			case CategoryPullRequests:
				s.PullRequestsOpened++
				if r.PullRequest != nil && r.PullRequest.Merged {
					s.PullRequestsMerged++
				}
			case CategoryIssues:
				s.IssuesOpened++
				if r.Issue != nil && r.Issue.State == "closed" {
					s.IssuesClosed++
				}
			case CategoryReviews:
				s.TotalReviews++
			case CategoryComments:
				s.TotalComments++
			}
		}
	}

	for repo := range repoCounts {
		s.ReposContributedTo = append(s.ReposContributedTo, repo)
	}
	sort.Strings(s.ReposContributedTo)

	for repo, count := range repoCounts {
		s.MostActiveRepos = append(s.MostActiveRepos, RepoActivity{Repo: repo, Count: count})
	}
	sort.Slice(s.MostActiveRepos, func(i, j int) bool {
		if s.MostActiveRepos[i].Count != s.MostActiveRepos[j].Count {
			return s.MostActiveRepos[i].Count > s.MostActiveRepos[j].Count
		}
		return s.MostActiveRepos[i].Repo < s.MostActiveRepos[j].Repo
	})
	if len(s.MostActiveRepos) > 10 {
		s.MostActiveRepos = s.MostActiveRepos[:10]
	}

	return s
}

package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/codetrail/ghactivity/pkg/activity"
	"github.com/codetrail/ghactivity/pkg/ratelimit"
)

type profilePayload struct {
	Login       string     `json:"login"`
	Name        string     `json:"name"`
	AvatarURL   string     `json:"avatar_url"`
	Bio         string     `json:"bio"`
	Company     string     `json:"company"`
	Location    string     `json:"location"`
	Blog        string     `json:"blog"`
	PublicRepos int        `json:"public_repos"`
	PublicGists int        `json:"public_gists"`
	Followers   int        `json:"followers"`
	Following   int        `json:"following"`
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

type repoPayload struct {
	Name            string     `json:"name"`
	FullName        string     `json:"full_name"`
	Description     string     `json:"description"`
	HTMLURL         string     `json:"html_url"`
	Language        string     `json:"language"`
	StargazersCount int        `json:"stargazers_count"`
	ForksCount      int        `json:"forks_count"`
	OpenIssuesCount int        `json:"open_issues_count"`
	Topics          []string   `json:"topics"`
	Fork            bool       `json:"fork"`
	Archived        bool       `json:"archived"`
	PushedAt        *time.Time `json:"pushed_at"`
	UpdatedAt       *time.Time `json:"updated_at"`
}

func (d *dispatcher) fetchProfile(ctx context.Context, subject string) (*activity.Profile, error) {
	resp, err := d.get(ctx, ratelimit.PoolFeed, "/users/"+url.PathEscape(subject))
	if err != nil {
		return nil, err
	}

	var p profilePayload
	if err := json.Unmarshal(resp.Body, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &activity.Profile{
		Login:       p.Login,
		Name:        p.Name,
		AvatarURL:   p.AvatarURL,
		Bio:         p.Bio,
		Company:     p.Company,
		Location:    p.Location,
		Blog:        p.Blog,
		PublicRepos: p.PublicRepos,
		PublicGists: p.PublicGists,
		Followers:   p.Followers,
		Following:   p.Following,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}, nil
}

// fetchRepos lists the subject's repositories, most recently pushed
// first. One page is enough: deep mode only mines the top few.
func (d *dispatcher) fetchRepos(ctx context.Context, subject string) ([]activity.Repository, error) {
	endpoint := fmt.Sprintf("/users/%s/repos?sort=pushed&direction=desc&per_page=100", url.PathEscape(subject))
	resp, err := d.get(ctx, ratelimit.PoolFeed, endpoint)
	if err != nil {
		return nil, err
	}

	var payload []repoPayload
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("decode repository list: %w", err)
	}

	repos := make([]activity.Repository, 0, len(payload))
	for _, p := range payload {
		repos = append(repos, activity.Repository{
			Name:        p.Name,
			FullName:    p.FullName,
			Description: p.Description,
			URL:         p.HTMLURL,
			Language:    p.Language,
			Stars:       p.StargazersCount,
			Forks:       p.ForksCount,
			OpenIssues:  p.OpenIssuesCount,
			Topics:      p.Topics,
			IsFork:      p.Fork,
			IsArchived:  p.Archived,
			PushedAt:    p.PushedAt,
			UpdatedAt:   p.UpdatedAt,
		})
	}
	return repos, nil
}

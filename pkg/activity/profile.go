package activity

import "time"

// Profile holds the subject's public profile data.
type Profile struct {
	Login       string     `json:"login"`
	Name        string     `json:"name,omitempty"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	Bio         string     `json:"bio,omitempty"`
	Company     string     `json:"company,omitempty"`
	Location    string     `json:"location,omitempty"`
	Blog        string     `json:"blog,omitempty"`
	PublicRepos int        `json:"public_repos"`
	PublicGists int        `json:"public_gists"`
	Followers   int        `json:"followers"`
	Following   int        `json:"following"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Repository holds public repository metadata.
type Repository struct {
	Name        string     `json:"name"`
	FullName    string     `json:"full_name"`
	Description string     `json:"description,omitempty"`
	URL         string     `json:"url,omitempty"`
	Language    string     `json:"language,omitempty"`
	Stars       int        `json:"stars"`
	Forks       int        `json:"forks"`
	OpenIssues  int        `json:"open_issues"`
	Topics      []string   `json:"topics,omitempty"`
	IsFork      bool       `json:"is_fork"`
	IsArchived  bool       `json:"is_archived"`
	PushedAt    *time.Time `json:"pushed_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

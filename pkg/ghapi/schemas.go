// Package ghapi is a minimal GitHub REST client covering the lookups
// the bounty flows need: users, repositories, issues, pull requests
// and their commits.
package ghapi

import "time"

type User struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type Repository struct {
	ID            int64  `json:"id"`
	FullName      string `json:"full_name"`
	OwnerID       int64  `json:"-"`
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`

	Owner struct {
		ID int64 `json:"id"`
	} `json:"owner"`
}

type Issue struct {
	ID          int64  `json:"id"`
	Number      int    `json:"number"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	HTMLURL     string `json:"html_url"`
	State       string `json:"state"`
	StateReason string `json:"state_reason"`
}

// IssueIdentifier names an issue (or pull request) by repository and
// number, as they appear in the HTML URL.
type IssueIdentifier struct {
	RepoFullName string
	IssueNumber  int
}

type PullRequestBase struct {
	Ref  string     `json:"ref"`
	Repo Repository `json:"repo"`
}

type PullRequest struct {
	ID        int64           `json:"id"`
	Number    int             `json:"number"`
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	State     string          `json:"state"`
	UpdatedAt *time.Time      `json:"updated_at"`
	MergedAt  *time.Time      `json:"merged_at"`
	User      User            `json:"user"`
	Base      PullRequestBase `json:"base"`
}

type Commit struct {
	SHA     string
	Message string
	Author  User
}

// IsClosed reports whether the issue is closed on the GitHub side.
func (i Issue) IsClosed() bool {
	return i.State == "closed"
}

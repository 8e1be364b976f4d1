package ghapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	ErrUserFetch           = errors.New("ghapi: could not fetch user")
	ErrRepositoryFetch     = errors.New("ghapi: could not fetch repository")
	ErrIssueFetch          = errors.New("ghapi: could not fetch issue")
	ErrPullRequestNotFound = errors.New("ghapi: pull request not found")
	ErrPullRequestFetch    = errors.New("ghapi: could not fetch pull request")
)

type Config struct {
	// BaseURL defaults to the public GitHub API. Override for tests.
	BaseURL string
	Token   string
	Timeout time.Duration
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) get(ctx context.Context, path string, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if token == "" {
		token = c.token
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	return c.http.Do(req)
}

// AuthenticatedUser fetches the user the given OAuth token belongs to.
func (c *Client) AuthenticatedUser(ctx context.Context, token string) (User, error) {
	resp, err := c.get(ctx, "/user", token)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrUserFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return User{}, ErrUserFetch
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrUserFetch, err)
	}
	return user, nil
}

func (c *Client) FetchRepository(ctx context.Context, fullName string) (Repository, error) {
	resp, err := c.get(ctx, "/repos/"+fullName, "")
	if err != nil {
		return Repository{}, fmt.Errorf("%w: %v", ErrRepositoryFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Repository{}, ErrRepositoryFetch
	}

	var repo Repository
	if err := json.NewDecoder(resp.Body).Decode(&repo); err != nil {
		return Repository{}, fmt.Errorf("%w: %v", ErrRepositoryFetch, err)
	}
	repo.OwnerID = repo.Owner.ID
	return repo, nil
}

func (c *Client) FetchIssue(ctx context.Context, id IssueIdentifier) (Issue, error) {
	path := fmt.Sprintf("/repos/%s/issues/%d", id.RepoFullName, id.IssueNumber)
	resp, err := c.get(ctx, path, "")
	if err != nil {
		return Issue{}, fmt.Errorf("%w: %v", ErrIssueFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Issue{}, ErrIssueFetch
	}

	var issue Issue
	if err := json.NewDecoder(resp.Body).Decode(&issue); err != nil {
		return Issue{}, fmt.Errorf("%w: %v", ErrIssueFetch, err)
	}
	return issue, nil
}

func (c *Client) FetchPullRequest(ctx context.Context, id IssueIdentifier) (PullRequest, error) {
	path := fmt.Sprintf("/repos/%s/pulls/%d?state=closed", id.RepoFullName, id.IssueNumber)
	resp, err := c.get(ctx, path, "")
	if err != nil {
		return PullRequest{}, fmt.Errorf("%w: %v", ErrPullRequestFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return PullRequest{}, ErrPullRequestNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return PullRequest{}, ErrPullRequestFetch
	}

	var pr PullRequest
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return PullRequest{}, fmt.Errorf("%w: %v", ErrPullRequestFetch, err)
	}
	pr.Base.Repo.OwnerID = pr.Base.Repo.Owner.ID
	return pr, nil
}

func (c *Client) FetchPullRequestCommits(ctx context.Context, id IssueIdentifier) ([]Commit, error) {
	path := fmt.Sprintf("/repos/%s/pulls/%d/commits", id.RepoFullName, id.IssueNumber)
	resp, err := c.get(ctx, path, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPullRequestFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrPullRequestFetch
	}

	var raw []struct {
		SHA    string `json:"sha"`
		Commit struct {
			Message string `json:"message"`
		} `json:"commit"`
		Author User `json:"author"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPullRequestFetch, err)
	}

	commits := make([]Commit, 0, len(raw))
	for _, entry := range raw {
		commits = append(commits, Commit{
			SHA:     entry.SHA,
			Message: entry.Commit.Message,
			Author:  entry.Author,
		})
	}
	return commits, nil
}

// ParseIssueHTMLURL extracts the repository full name and issue number
// from a URL like https://github.com/owner/repo/issues/42. The same
// shape works for pull request URLs.
func ParseIssueHTMLURL(htmlURL string) (IssueIdentifier, error) {
	parts := strings.Split(htmlURL, "/")
	if len(parts) != 7 {
		return IssueIdentifier{}, fmt.Errorf("ghapi: invalid issue url %q", htmlURL)
	}

	number, err := strconv.Atoi(parts[6])
	if err != nil {
		return IssueIdentifier{}, fmt.Errorf("ghapi: invalid issue number in %q", htmlURL)
	}

	return IssueIdentifier{
		RepoFullName: parts[3] + "/" + parts[4],
		IssueNumber:  number,
	}, nil
}

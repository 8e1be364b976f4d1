package schemas

// Issue is the read model for a bounty issue.
type Issue struct {
	ID           string   `json:"id" doc:"Internal issue ID"`
	RepoFullName string   `json:"repo_full_name" doc:"owner/name of the repository"`
	IssueNumber  int      `json:"issue_number" doc:"Issue number in the repository"`
	Title        string   `json:"title" doc:"Issue title"`
	HTMLURL      string   `json:"html_url" doc:"GitHub issue URL"`
	IsClosed     bool     `json:"is_closed" doc:"True once settled; never reopens"`
	WinnerID     string   `json:"winner_id,omitempty" doc:"User the escrow was paid to"`
	ClaimedAt    string   `json:"claimed_at,omitempty" doc:"Settlement time (RFC 3339)"`
	PledgedSats  int64    `json:"pledged_sats" doc:"Sum of recorded pledges (display figure)"`
	Rewarders    []string `json:"rewarders" doc:"Last three distinct pledger IDs, most recent first"`
}

// Repository is the read model for a repository with bounty issues.
type Repository struct {
	ID         string `json:"id" doc:"Internal repository ID"`
	FullName   string `json:"full_name" doc:"owner/name"`
	HTMLURL    string `json:"html_url" doc:"GitHub repository URL"`
	OpenIssues int    `json:"open_issues" doc:"Issues still claimable in this repository"`
}

package ghapi

import (
	"regexp"
	"sort"
)

var issueRefPattern = regexp.MustCompile(`(?i)(close|closes|closed|fix|fixes|fixed|resolve|resolves|resolved)\s+#(\d+)`)

// findIssueNumbers collects issue numbers referenced with a closing
// keyword, e.g. "fixes #12".
func findIssueNumbers(text string, into map[int]struct{}) {
	for _, match := range issueRefPattern.FindAllStringSubmatch(text, -1) {
		n := 0
		for _, c := range match[2] {
			n = n*10 + int(c-'0')
		}
		into[n] = struct{}{}
	}
}

// ExtractIssueNumbers returns the issue numbers a pull request claims
// to close, from its body and every commit message, deduplicated and
// sorted.
func ExtractIssueNumbers(pr PullRequest, commits []Commit) []int {
	seen := make(map[int]struct{})
	findIssueNumbers(pr.Body, seen)
	for _, commit := range commits {
		findIssueNumbers(commit.Message, seen)
	}

	numbers := make([]int, 0, len(seen))
	for n := range seen {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}

// PullRequestIsValidForReward reports whether a pull request counts as
// a genuine resolution: merged, not updated after merge, and targeting
// the repository's default branch.
func PullRequestIsValidForReward(pr PullRequest) bool {
	if pr.MergedAt == nil {
		return false
	}
	if pr.UpdatedAt != nil && pr.MergedAt.Before(*pr.UpdatedAt) {
		return false
	}
	if pr.Base.Ref != pr.Base.Repo.DefaultBranch {
		return false
	}
	return true
}

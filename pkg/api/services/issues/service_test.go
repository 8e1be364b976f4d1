package issues

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lnbounty/bounty-api/pkg/db/dbtest"
	"github.com/lnbounty/bounty-api/pkg/db/models"
	"github.com/uptrace/bun"
)

func seedRepo(t *testing.T, db *bun.DB, fullName string, githubID int64) *models.Repository {
	t.Helper()
	repo := &models.Repository{
		GithubID:      githubID,
		FullName:      fullName,
		OwnerGithubID: 1,
		HTMLURL:       "https://github.com/" + fullName,
	}
	if _, err := db.NewInsert().Model(repo).Exec(context.Background()); err != nil {
		t.Fatalf("failed to insert repository: %v", err)
	}
	return repo
}

func seedIssue(t *testing.T, db *bun.DB, repo *models.Repository, number int, closed bool) *models.Issue {
	t.Helper()
	issue := &models.Issue{
		RepositoryID: repo.ID,
		GithubID:     repo.GithubID*1000 + int64(number),
		IssueNumber:  number,
		Title:        fmt.Sprintf("issue %d", number),
		IsClosed:     closed,
	}
	if _, err := db.NewInsert().Model(issue).Exec(context.Background()); err != nil {
		t.Fatalf("failed to insert issue: %v", err)
	}
	return issue
}

func seedReward(t *testing.T, db *bun.DB, issue *models.Issue, amount int64) {
	t.Helper()
	ctx := context.Background()
	user := &models.User{GithubID: time.Now().UnixNano(), Login: uuid.NewString()}
	if _, err := db.NewInsert().Model(user).Exec(ctx); err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}
	reward := &models.Reward{IssueID: issue.ID, RewarderID: user.ID, RewardSats: amount}
	if _, err := db.NewInsert().Model(reward).Exec(ctx); err != nil {
		t.Fatalf("failed to insert reward: %v", err)
	}
}

func TestListFiltersByRepoAndState(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	svc := NewService(db)

	repoA := seedRepo(t, db, "owner/alpha", 10)
	repoB := seedRepo(t, db, "owner/beta", 11)
	seedIssue(t, db, repoA, 1, false)
	seedIssue(t, db, repoA, 2, true)
	seedIssue(t, db, repoB, 3, false)

	all, count, err := svc.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 3 || count != 3 {
		t.Errorf("expected 3 issues, got len=%d count=%d", len(all), count)
	}
	for _, issue := range all {
		if issue.Repository == nil {
			t.Errorf("expected repository relation loaded for issue %d", issue.IssueNumber)
		}
	}

	alphaOnly, count, err := svc.List(ctx, ListFilter{RepoFullName: "owner/alpha"})
	if err != nil {
		t.Fatalf("filtered list failed: %v", err)
	}
	if len(alphaOnly) != 2 || count != 2 {
		t.Errorf("expected 2 issues for owner/alpha, got len=%d count=%d", len(alphaOnly), count)
	}

	openOnly, _, err := svc.List(ctx, ListFilter{RepoFullName: "owner/alpha", OnlyOpen: true})
	if err != nil {
		t.Fatalf("open-only list failed: %v", err)
	}
	if len(openOnly) != 1 || openOnly[0].IssueNumber != 1 {
		t.Errorf("expected only the open issue #1, got %d entries", len(openOnly))
	}
}

func TestGetReportsMissingIssue(t *testing.T) {
	svc := NewService(dbtest.New(t))
	if _, err := svc.Get(context.Background(), uuid.New()); !errors.Is(err, ErrIssueNotFound) {
		t.Fatalf("expected ErrIssueNotFound, got %v", err)
	}
}

func TestPledgedTotals(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	svc := NewService(db)

	repo := seedRepo(t, db, "owner/alpha", 10)
	funded := seedIssue(t, db, repo, 1, false)
	empty := seedIssue(t, db, repo, 2, false)
	seedReward(t, db, funded, 500)
	seedReward(t, db, funded, 300)

	total, err := svc.PledgedTotal(ctx, funded.ID)
	if err != nil {
		t.Fatalf("pledged total failed: %v", err)
	}
	if total != 800 {
		t.Errorf("expected 800 sats pledged, got %d", total)
	}

	zero, err := svc.PledgedTotal(ctx, empty.ID)
	if err != nil {
		t.Fatalf("pledged total failed: %v", err)
	}
	if zero != 0 {
		t.Errorf("expected 0 sats for issue without pledges, got %d", zero)
	}

	totals, err := svc.Totals(ctx, []uuid.UUID{funded.ID, empty.ID})
	if err != nil {
		t.Fatalf("batch totals failed: %v", err)
	}
	if totals[funded.ID] != 800 {
		t.Errorf("batch: expected 800 sats for funded issue, got %d", totals[funded.ID])
	}
	if _, ok := totals[empty.ID]; ok {
		t.Errorf("batch: expected no entry for issue without pledges")
	}

	none, err := svc.Totals(ctx, nil)
	if err != nil {
		t.Fatalf("empty batch failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected empty result for empty batch")
	}
}

func TestListRepositories(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	svc := NewService(db)

	repoBeta := seedRepo(t, db, "owner/beta", 11)
	repoAlpha := seedRepo(t, db, "owner/alpha", 10)
	seedIssue(t, db, repoAlpha, 1, false)
	seedIssue(t, db, repoAlpha, 2, false)
	seedIssue(t, db, repoAlpha, 3, true)

	repos, err := svc.ListRepositories(ctx, 0, 0)
	if err != nil {
		t.Fatalf("list repositories failed: %v", err)
	}
	if len(repos) != 2 {
		t.Fatalf("expected 2 repositories, got %d", len(repos))
	}
	if repos[0].FullName != "owner/alpha" || repos[1].FullName != "owner/beta" {
		t.Errorf("expected alphabetical order, got %s then %s", repos[0].FullName, repos[1].FullName)
	}

	counts, err := svc.OpenIssueCounts(ctx, []uuid.UUID{repoAlpha.ID, repoBeta.ID})
	if err != nil {
		t.Fatalf("open issue counts failed: %v", err)
	}
	if counts[repoAlpha.ID] != 2 {
		t.Errorf("expected 2 open issues for owner/alpha, got %d", counts[repoAlpha.ID])
	}
	if _, ok := counts[repoBeta.ID]; ok {
		t.Errorf("expected no entry for repository without open issues")
	}
}

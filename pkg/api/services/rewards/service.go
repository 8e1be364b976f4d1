// Package rewards is the settlement orchestrator: pledge creation,
// rewarder ring bookkeeping, and winner settlement, all serialized per
// issue through an exclusive row lock.
package rewards

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lnbounty/bounty-api/pkg/api/services/escrow"
	"github.com/lnbounty/bounty-api/pkg/api/services/users"
	"github.com/lnbounty/bounty-api/pkg/applog"
	"github.com/lnbounty/bounty-api/pkg/db/models"
	"github.com/lnbounty/bounty-api/pkg/ghapi"
	"github.com/lnbounty/bounty-api/pkg/kv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"golang.org/x/sync/errgroup"
)

const (
	kvPrefixSettlement = "settle:done:"
	kvPrefixInFlight   = "settle:lock:"

	settlementRecordTTL = 24 * time.Hour
	inFlightTTL         = 2 * time.Minute
)

type Service struct {
	db     *bun.DB
	bank   *escrow.Bank
	users  *users.Service
	github *ghapi.Client
	kv     kv.Store
	log    *applog.Logger
}

func NewService(db *bun.DB, bank *escrow.Bank, userSvc *users.Service, github *ghapi.Client, kvStore kv.Store, log *applog.Logger) *Service {
	return &Service{
		db:     db,
		bank:   bank,
		users:  userSvc,
		github: github,
		kv:     kvStore,
		log:    log,
	}
}

// Completion is the recorded outcome of a settlement. Replayed marks
// results served from the idempotency record instead of a new payout.
type Completion struct {
	IssueID  uuid.UUID `json:"issue_id"`
	WinnerID uuid.UUID `json:"winner_id"`
	PaidSats int64     `json:"paid_sats"`
	Replayed bool      `json:"replayed"`
}

// withLockedIssue runs fn inside a transaction holding an exclusive
// lock on the matched issue row. The lock is the single serialization
// point per issue: it is held across the nested wallet provider call
// and released only on commit or rollback. SQLite has no FOR UPDATE;
// there the single-writer transaction provides the same exclusion.
func (s *Service) withLockedIssue(ctx context.Context, match func(*bun.SelectQuery) *bun.SelectQuery, fn func(ctx context.Context, tx bun.Tx, issue *models.Issue) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		issue := new(models.Issue)
		q := match(tx.NewSelect().Model(issue))
		if s.db.Dialect().Name() == dialect.PG {
			q = q.For("UPDATE")
		}
		if err := q.Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrIssueDoesNotExist
			}
			return err
		}
		return fn(ctx, tx, issue)
	})
}

func byIssueID(id uuid.UUID) func(*bun.SelectQuery) *bun.SelectQuery {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("i.id = ?", id)
	}
}

func byRepoAndNumber(repositoryID uuid.UUID, number int) func(*bun.SelectQuery) *bun.SelectQuery {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("i.repository_id = ?", repositoryID).Where("i.issue_number = ?", number)
	}
}

// AddReward pledges sats to an existing issue. The reward row, the
// fund transfer and the ring update commit together under the issue
// lock; a closed issue rejects the pledge before any funds move.
func (s *Service) AddReward(ctx context.Context, rewarderID uuid.UUID, issueID uuid.UUID, amountSats int64) (*models.Reward, error) {
	if amountSats <= 0 {
		return nil, ErrInvalidAmount
	}

	var reward *models.Reward
	err := s.withLockedIssue(ctx, byIssueID(issueID), func(ctx context.Context, tx bun.Tx, issue *models.Issue) error {
		if issue.IsClosed {
			return ErrIssueIsClosed
		}

		reward = &models.Reward{
			IssueID:    issue.ID,
			RewarderID: rewarderID,
			RewardSats: amountSats,
		}
		if _, err := tx.NewInsert().Model(reward).Exec(ctx); err != nil {
			return err
		}

		if err := s.bank.Pledge(ctx, tx, rewarderID, issue.ID, amountSats); err != nil {
			return err
		}

		issue.SlideRewarderRing(rewarderID)
		_, err := tx.NewUpdate().Model(issue).WherePK().Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reward, nil
}

// CreateReward pledges to an issue identified by its GitHub HTML URL,
// upserting the repository and issue rows from live GitHub metadata
// first. Issues already closed upstream are rejected before any row is
// written.
func (s *Service) CreateReward(ctx context.Context, rewarderID uuid.UUID, issueURL string, amountSats int64) (*models.Reward, error) {
	if amountSats <= 0 {
		return nil, ErrInvalidAmount
	}

	identifier, err := ghapi.ParseIssueHTMLURL(issueURL)
	if err != nil {
		return nil, err
	}

	// The two lookups are independent, fetch them concurrently.
	var ghRepo ghapi.Repository
	var ghIssue ghapi.Issue
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		ghRepo, err = s.github.FetchRepository(groupCtx, identifier.RepoFullName)
		return err
	})
	group.Go(func() error {
		var err error
		ghIssue, err = s.github.FetchIssue(groupCtx, identifier)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	if ghIssue.IsClosed() {
		return nil, ErrIssueIsClosed
	}

	issue, err := s.upsertIssue(ctx, ghRepo, ghIssue)
	if err != nil {
		return nil, err
	}

	return s.AddReward(ctx, rewarderID, issue.ID, amountSats)
}

// upsertIssue writes repository and issue rows keyed by their GitHub
// IDs, refreshing mutable metadata in place.
func (s *Service) upsertIssue(ctx context.Context, ghRepo ghapi.Repository, ghIssue ghapi.Issue) (*models.Issue, error) {
	repo := &models.Repository{
		GithubID:      ghRepo.ID,
		FullName:      ghRepo.FullName,
		OwnerGithubID: ghRepo.OwnerID,
		HTMLURL:       ghRepo.HTMLURL,
	}
	if _, err := s.db.NewInsert().
		Model(repo).
		On("CONFLICT (github_id) DO UPDATE").
		Set("full_name = EXCLUDED.full_name").
		Set("owner_github_id = EXCLUDED.owner_github_id").
		Set("html_url = EXCLUDED.html_url").
		Exec(ctx); err != nil {
		return nil, err
	}
	if err := s.db.NewSelect().
		Model(repo).
		Where("repo.github_id = ?", ghRepo.ID).
		Scan(ctx); err != nil {
		return nil, err
	}

	issue := &models.Issue{
		RepositoryID: repo.ID,
		GithubID:     ghIssue.ID,
		IssueNumber:  ghIssue.Number,
		Title:        ghIssue.Title,
		Body:         ghIssue.Body,
		HTMLURL:      ghIssue.HTMLURL,
	}
	if _, err := s.db.NewInsert().
		Model(issue).
		On("CONFLICT (github_id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("body = EXCLUDED.body").
		Set("html_url = EXCLUDED.html_url").
		Exec(ctx); err != nil {
		return nil, err
	}
	if err := s.db.NewSelect().
		Model(issue).
		Where("i.github_id = ?", ghIssue.ID).
		Scan(ctx); err != nil {
		return nil, err
	}
	return issue, nil
}

// RewardContributor settles an issue: registers the contributor as the
// winner, closes the issue and pays out the escrow wallet's full
// balance. Closing happens before the transfer inside the same locked
// transaction, so a second attempt can never pay twice: it either sees
// the committed close or waits on the lock and then sees it. A transfer
// failure rolls the close back and the issue stays claimable.
func (s *Service) RewardContributor(ctx context.Context, contributor users.Identity, issueID ghapi.IssueIdentifier, idempotencyKey string) (*Completion, error) {
	if idempotencyKey != "" {
		if done, err := s.recordedCompletion(ctx, idempotencyKey); err != nil {
			return nil, err
		} else if done != nil {
			return done, nil
		}

		acquired, err := s.kv.SetNX(ctx, kvPrefixInFlight+idempotencyKey, []byte("1"), inFlightTTL)
		if err != nil {
			return nil, err
		}
		if !acquired {
			return nil, ErrSettlementInFlight
		}
		defer func() {
			if err := s.kv.Delete(context.WithoutCancel(ctx), kvPrefixInFlight+idempotencyKey); err != nil {
				s.log.Warn("failed to release settlement lock", "key", idempotencyKey, "error", err)
			}
		}()
	}

	var repo models.Repository
	err := s.db.NewSelect().
		Model(&repo).
		Where("repo.full_name = ?", issueID.RepoFullName).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNothingToRewardFor
		}
		return nil, err
	}

	completion := &Completion{}
	err = s.withLockedIssue(ctx, byRepoAndNumber(repo.ID, issueID.IssueNumber), func(ctx context.Context, tx bun.Tx, issue *models.Issue) error {
		completion.IssueID = issue.ID

		// Register the winner on the same transaction: a transfer
		// failure rolls back the user row along with the close.
		winner, err := s.users.GetOrCreateTx(ctx, tx, contributor)
		if err != nil {
			return err
		}
		completion.WinnerID = winner.ID

		now := time.Now()
		res, err := tx.NewUpdate().
			Model((*models.Issue)(nil)).
			Set("is_closed = ?", true).
			Set("winner_id = ?", winner.ID).
			Set("claimed_at = ?", now).
			Set("updated_at = ?", now).
			Where("id = ?", issue.ID).
			Where("is_closed = ?", false).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrIssueIsClosed
		}

		paid, err := s.bank.Settle(ctx, tx, issue.ID, winner.ID)
		if err != nil {
			return err
		}
		completion.PaidSats = paid

		settlement := &models.Settlement{
			IssueID:        issue.ID,
			WinnerID:       winner.ID,
			PaidSats:       paid,
			IdempotencyKey: idempotencyKey,
		}
		_, err = tx.NewInsert().Model(settlement).Exec(ctx)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrIssueDoesNotExist) {
			return nil, ErrNothingToRewardFor
		}
		return nil, err
	}

	if idempotencyKey != "" {
		s.storeCompletion(ctx, idempotencyKey, completion)
	}
	return completion, nil
}

// recordedCompletion looks for an earlier acknowledged settlement with
// the same key, first in the KV fast path, then in the durable
// settlements table.
func (s *Service) recordedCompletion(ctx context.Context, key string) (*Completion, error) {
	if data, err := s.kv.Get(ctx, kvPrefixSettlement+key); err == nil {
		var done Completion
		if err := json.Unmarshal(data, &done); err == nil {
			done.Replayed = true
			return &done, nil
		}
	} else if !errors.Is(err, kv.ErrNotFound) {
		return nil, err
	}

	var settlement models.Settlement
	err := s.db.NewSelect().
		Model(&settlement).
		Where("s.idempotency_key = ?", key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &Completion{
		IssueID:  settlement.IssueID,
		WinnerID: settlement.WinnerID,
		PaidSats: settlement.PaidSats,
		Replayed: true,
	}, nil
}

func (s *Service) storeCompletion(ctx context.Context, key string, done *Completion) {
	data, err := json.Marshal(done)
	if err != nil {
		return
	}
	if err := s.kv.Set(ctx, kvPrefixSettlement+key, data, settlementRecordTTL); err != nil {
		s.log.Warn("failed to record settlement completion", "key", key, "error", err)
	}
}

// IssueSettlement is the per-issue outcome of a pull-request-driven
// bulk settlement. Err is set when that issue's settlement failed.
type IssueSettlement struct {
	IssueNumber int
	Completion  *Completion
	Err         error
}

// CheckPull settles every issue a merged pull request claims to close,
// crediting the pull request author. Settlement is best effort per
// issue: one failure never aborts the others, but each failure is
// still reported in the result.
func (s *Service) CheckPull(ctx context.Context, repoFullName string, prNumber int) ([]IssueSettlement, error) {
	identifier := ghapi.IssueIdentifier{RepoFullName: repoFullName, IssueNumber: prNumber}

	pr, err := s.github.FetchPullRequest(ctx, identifier)
	if err != nil {
		if errors.Is(err, ghapi.ErrPullRequestNotFound) {
			return nil, ErrNothingToRewardFor
		}
		return nil, err
	}
	if !ghapi.PullRequestIsValidForReward(pr) {
		return nil, ErrPullRequestNotEligible
	}

	commits, err := s.github.FetchPullRequestCommits(ctx, identifier)
	if err != nil {
		return nil, err
	}

	numbers := ghapi.ExtractIssueNumbers(pr, commits)
	contributor := users.Identity{
		GithubID:  pr.User.ID,
		Login:     pr.User.Login,
		AvatarURL: pr.User.AvatarURL,
	}

	results := make([]IssueSettlement, 0, len(numbers))
	for _, number := range numbers {
		key := fmt.Sprintf("pr:%s#%d:issue:%d", repoFullName, prNumber, number)
		done, err := s.RewardContributor(ctx, contributor, ghapi.IssueIdentifier{
			RepoFullName: repoFullName,
			IssueNumber:  number,
		}, key)
		if err != nil {
			s.log.Warn("settlement failed for issue",
				"repo", repoFullName, "issue", number, "pr", prNumber, "error", err)
		}
		results = append(results, IssueSettlement{
			IssueNumber: number,
			Completion:  done,
			Err:         err,
		})
	}
	return results, nil
}

// TotalFilter narrows the reward aggregate. Zero values match all.
type TotalFilter struct {
	RepoFullName string
	IssueNumber  int
	RewarderID   uuid.UUID
}

// TotalReward sums pledge rows. This is a display aggregate and may
// diverge from live escrow balances.
func (s *Service) TotalReward(ctx context.Context, filter TotalFilter) (int64, error) {
	q := s.db.NewSelect().
		Model((*models.Reward)(nil)).
		ColumnExpr("COALESCE(SUM(r.reward_sats), 0)")

	if filter.RepoFullName != "" || filter.IssueNumber != 0 {
		q = q.Join("JOIN issues AS i ON i.id = r.issue_id")
	}
	if filter.RepoFullName != "" {
		q = q.Join("JOIN repositories AS repo ON repo.id = i.repository_id").
			Where("repo.full_name = ?", filter.RepoFullName)
	}
	if filter.IssueNumber != 0 {
		q = q.Where("i.issue_number = ?", filter.IssueNumber)
	}
	if filter.RewarderID != uuid.Nil {
		q = q.Where("r.rewarder_id = ?", filter.RewarderID)
	}

	var total int64
	if err := q.Scan(ctx, &total); err != nil {
		return 0, err
	}
	return total, nil
}

// ListFilter narrows the reward listing. Zero values match all.
type ListFilter struct {
	RepoFullName string
	IssueNumber  int
	RewarderID   uuid.UUID
	Offset       int
	Limit        int
}

// ListRewards returns matching pledges newest first, plus the number
// of matches before pagination.
func (s *Service) ListRewards(ctx context.Context, filter ListFilter) ([]*models.Reward, int, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var rewardsList []*models.Reward
	q := s.db.NewSelect().
		Model(&rewardsList).
		Relation("Rewarder").
		Order("r.created_at DESC").
		Offset(filter.Offset).
		Limit(limit)

	if filter.RepoFullName != "" || filter.IssueNumber != 0 {
		q = q.Join("JOIN issues AS i ON i.id = r.issue_id")
	}
	if filter.RepoFullName != "" {
		q = q.Join("JOIN repositories AS repo ON repo.id = i.repository_id").
			Where("repo.full_name = ?", filter.RepoFullName)
	}
	if filter.IssueNumber != 0 {
		q = q.Where("i.issue_number = ?", filter.IssueNumber)
	}
	if filter.RewarderID != uuid.Nil {
		q = q.Where("r.rewarder_id = ?", filter.RewarderID)
	}

	count, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return rewardsList, count, nil
}

func (s *Service) GetReward(ctx context.Context, id uuid.UUID) (*models.Reward, error) {
	var reward models.Reward
	err := s.db.NewSelect().
		Model(&reward).
		Relation("Rewarder").
		Where("r.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRewardNotFound
		}
		return nil, err
	}
	return &reward, nil
}

func (s *Service) ListRewardsForIssue(ctx context.Context, issueID uuid.UUID) ([]*models.Reward, error) {
	var rewardsList []*models.Reward
	err := s.db.NewSelect().
		Model(&rewardsList).
		Relation("Rewarder").
		Where("r.issue_id = ?", issueID).
		Order("r.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rewardsList, nil
}

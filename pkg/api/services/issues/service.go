// Package issues provides the read models over issues, repositories
// and their pledge totals.
package issues

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lnbounty/bounty-api/pkg/db/models"
	"github.com/uptrace/bun"
)

var ErrIssueNotFound = errors.New("issue not found")

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// ListFilter narrows the issue listing. Zero values match all.
type ListFilter struct {
	RepoFullName string
	OnlyOpen     bool
	Offset       int
	Limit        int
}

// List returns matching issues newest first, plus the number of
// matches before pagination.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*models.Issue, int, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var issueList []*models.Issue
	q := s.db.NewSelect().
		Model(&issueList).
		Relation("Repository").
		Order("i.created_at DESC").
		Offset(filter.Offset).
		Limit(limit)

	if filter.RepoFullName != "" {
		q = q.Where("repository.full_name = ?", filter.RepoFullName)
	}
	if filter.OnlyOpen {
		q = q.Where("i.is_closed = ?", false)
	}

	count, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return issueList, count, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	var issue models.Issue
	err := s.db.NewSelect().
		Model(&issue).
		Relation("Repository").
		Relation("Rewards").
		Where("i.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIssueNotFound
		}
		return nil, err
	}
	return &issue, nil
}

// PledgedTotal sums the recorded pledges for one issue. Display only:
// the escrow wallet's live balance is authoritative for payouts.
func (s *Service) PledgedTotal(ctx context.Context, issueID uuid.UUID) (int64, error) {
	var total int64
	err := s.db.NewSelect().
		Model((*models.Reward)(nil)).
		ColumnExpr("COALESCE(SUM(r.reward_sats), 0)").
		Where("r.issue_id = ?", issueID).
		Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// Totals returns the pledged sum per issue for a batch of issues, so
// listings avoid a query per row.
func (s *Service) Totals(ctx context.Context, issueIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	totals := make(map[uuid.UUID]int64, len(issueIDs))
	if len(issueIDs) == 0 {
		return totals, nil
	}

	var rows []struct {
		IssueID uuid.UUID `bun:"issue_id"`
		Total   int64     `bun:"total"`
	}
	err := s.db.NewSelect().
		Model((*models.Reward)(nil)).
		Column("r.issue_id").
		ColumnExpr("SUM(r.reward_sats) AS total").
		Where("r.issue_id IN (?)", bun.In(issueIDs)).
		Group("r.issue_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		totals[row.IssueID] = row.Total
	}
	return totals, nil
}

// OpenIssueCounts returns the number of still-claimable issues per
// repository for a batch of repositories.
func (s *Service) OpenIssueCounts(ctx context.Context, repoIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(repoIDs))
	if len(repoIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		RepositoryID uuid.UUID `bun:"repository_id"`
		Count        int       `bun:"count"`
	}
	err := s.db.NewSelect().
		Model((*models.Issue)(nil)).
		Column("i.repository_id").
		ColumnExpr("COUNT(*) AS count").
		Where("i.repository_id IN (?)", bun.In(repoIDs)).
		Where("i.is_closed = ?", false).
		Group("i.repository_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.RepositoryID] = row.Count
	}
	return counts, nil
}

func (s *Service) ListRepositories(ctx context.Context, offset, limit int) ([]*models.Repository, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var repoList []*models.Repository
	err := s.db.NewSelect().
		Model(&repoList).
		Order("repo.full_name ASC").
		Offset(offset).
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return repoList, nil
}

package routes

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/lnbounty/bounty-api/pkg/api/schemas"
	"github.com/lnbounty/bounty-api/pkg/api/services/issues"
	"github.com/lnbounty/bounty-api/pkg/db/models"
)

type ListIssuesInput struct {
	Repo   string `query:"repo" doc:"Filter by repository full name" required:"false"`
	Open   bool   `query:"open" doc:"Only issues still claimable" required:"false"`
	Offset int    `query:"offset" minimum:"0" doc:"Number of entries to skip" required:"false"`
	Limit  int    `query:"limit" minimum:"1" maximum:"100" default:"50" doc:"Page size" required:"false"`
}

type ListIssuesOutput struct {
	Body struct {
		Issues []schemas.Issue `json:"issues" doc:"Tracked bounty issues"`
		Count  int             `json:"count" doc:"Number of matching issues before pagination"`
	}
}

type GetIssueInput struct {
	IssueID string `path:"issueId" doc:"Internal issue ID"`
}

type GetIssueOutput struct {
	Body schemas.Issue
}

type ListReposInput struct {
	Offset int `query:"offset" minimum:"0" doc:"Number of entries to skip" required:"false"`
	Limit  int `query:"limit" minimum:"1" maximum:"100" default:"50" doc:"Page size" required:"false"`
}

type ListReposOutput struct {
	Body struct {
		Repositories []schemas.Repository `json:"repositories" doc:"Repositories with tracked issues"`
	}
}

func RegisterIssues(api huma.API, svc *issues.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "list-issues",
		Method:      http.MethodGet,
		Path:        "/api/issues",
		Summary:     "List issues",
		Description: "Lists tracked bounty issues with their pledge totals",
		Tags:        []string{TagIssues.String()},
	}, func(ctx context.Context, input *ListIssuesInput) (*ListIssuesOutput, error) {
		issueList, count, err := svc.List(ctx, issues.ListFilter{
			RepoFullName: input.Repo,
			OnlyOpen:     input.Open,
			Offset:       input.Offset,
			Limit:        input.Limit,
		})
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list issues")
		}

		ids := make([]uuid.UUID, len(issueList))
		for i, issue := range issueList {
			ids[i] = issue.ID
		}
		totals, err := svc.Totals(ctx, ids)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to compute pledge totals")
		}

		out := make([]schemas.Issue, len(issueList))
		for i, issue := range issueList {
			out[i] = issueToSchema(issue, totals[issue.ID])
		}

		resp := &ListIssuesOutput{}
		resp.Body.Issues = out
		resp.Body.Count = count
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-issue",
		Method:      http.MethodGet,
		Path:        "/api/issues/{issueId}",
		Summary:     "Get an issue",
		Description: "Returns one tracked issue with its pledge total",
		Tags:        []string{TagIssues.String()},
	}, func(ctx context.Context, input *GetIssueInput) (*GetIssueOutput, error) {
		id, err := uuid.Parse(input.IssueID)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid issue id")
		}

		issue, err := svc.Get(ctx, id)
		if err != nil {
			if errors.Is(err, issues.ErrIssueNotFound) {
				return nil, huma.Error404NotFound("issue not found")
			}
			return nil, huma.Error500InternalServerError("failed to fetch issue")
		}

		total, err := svc.PledgedTotal(ctx, issue.ID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to compute pledge total")
		}

		return &GetIssueOutput{Body: issueToSchema(issue, total)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-repos",
		Method:      http.MethodGet,
		Path:        "/api/repos",
		Summary:     "List repositories",
		Description: "Lists repositories that have tracked bounty issues",
		Tags:        []string{TagIssues.String()},
	}, func(ctx context.Context, input *ListReposInput) (*ListReposOutput, error) {
		repoList, err := svc.ListRepositories(ctx, input.Offset, input.Limit)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list repositories")
		}

		ids := make([]uuid.UUID, len(repoList))
		for i, repo := range repoList {
			ids[i] = repo.ID
		}
		openCounts, err := svc.OpenIssueCounts(ctx, ids)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to count open issues")
		}

		out := make([]schemas.Repository, len(repoList))
		for i, repo := range repoList {
			out[i] = schemas.Repository{
				ID:         repo.ID.String(),
				FullName:   repo.FullName,
				HTMLURL:    repo.HTMLURL,
				OpenIssues: openCounts[repo.ID],
			}
		}

		resp := &ListReposOutput{}
		resp.Body.Repositories = out
		return resp, nil
	})
}

func issueToSchema(issue *models.Issue, pledged int64) schemas.Issue {
	out := schemas.Issue{
		ID:          issue.ID.String(),
		IssueNumber: issue.IssueNumber,
		Title:       issue.Title,
		HTMLURL:     issue.HTMLURL,
		IsClosed:    issue.IsClosed,
		PledgedSats: pledged,
		Rewarders:   []string{},
	}
	if issue.Repository != nil {
		out.RepoFullName = issue.Repository.FullName
	}
	if issue.WinnerID != nil {
		out.WinnerID = issue.WinnerID.String()
	}
	if issue.ClaimedAt != nil {
		out.ClaimedAt = issue.ClaimedAt.Format(time.RFC3339)
	}
	for _, rewarder := range []*uuid.UUID{issue.LastRewarderID, issue.SecondLastRewarderID, issue.ThirdLastRewarderID} {
		if rewarder != nil {
			out.Rewarders = append(out.Rewarders, rewarder.String())
		}
	}
	return out
}

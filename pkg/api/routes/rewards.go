package routes

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/lnbounty/bounty-api/pkg/api/schemas"
	"github.com/lnbounty/bounty-api/pkg/api/services/iam"
	"github.com/lnbounty/bounty-api/pkg/api/services/rewards"
	"github.com/lnbounty/bounty-api/pkg/db/models"
	"github.com/lnbounty/bounty-api/pkg/lnbits"
)

type CreateRewardInput struct {
	Body struct {
		IssueURL   string `json:"issue_url" doc:"GitHub issue URL to pledge to" example:"https://github.com/owner/repo/issues/42"`
		AmountSats int64  `json:"amount_sats" minimum:"1" doc:"Pledge amount in sats"`
	}
}

type CreateRewardOutput struct {
	Body schemas.Reward
}

type AddRewardInput struct {
	IssueID string `path:"issueId" doc:"Internal issue ID"`
	Body    struct {
		AmountSats int64 `json:"amount_sats" minimum:"1" doc:"Pledge amount in sats"`
	}
}

type GetRewardInput struct {
	RewardID string `path:"rewardId" doc:"Reward ID"`
}

type ListRewardsInput struct {
	Repo        string `query:"repo" doc:"Filter by repository full name" required:"false"`
	IssueNumber int    `query:"issue_number" doc:"Filter by issue number" required:"false"`
	Rewarder    string `query:"rewarder" doc:"Filter by rewarder user ID" required:"false"`
	Offset      int    `query:"offset" minimum:"0" required:"false"`
	Limit       int    `query:"limit" minimum:"1" maximum:"100" required:"false"`
}

type ListRewardsOutput struct {
	Body struct {
		Rewards []schemas.Reward `json:"rewards"`
		Count   int              `json:"count" doc:"Number of matching pledges before pagination"`
	}
}

type TotalRewardInput struct {
	Repo        string `query:"repo" doc:"Filter by repository full name" required:"false"`
	IssueNumber int    `query:"issue_number" doc:"Filter by issue number" required:"false"`
}

type TotalRewardOutput struct {
	Body struct {
		TotalSats int64 `json:"total_sats" doc:"Sum of matching pledges"`
	}
}

type CheckPullInput struct {
	TrackerSecret string `header:"X-Tracker-Secret" doc:"Shared secret identifying the issue tracker"`
	Body          struct {
		RepoFullName string `json:"repo_full_name" doc:"owner/name of the repository"`
		PullNumber   int    `json:"pull_number" minimum:"1" doc:"Pull request number"`
	}
}

type CheckPullOutput struct {
	Body struct {
		Results []schemas.IssueSettlementResult `json:"results" doc:"Per-issue settlement outcomes"`
	}
}

func RegisterRewards(api huma.API, svc *rewards.Service, iamSvc *iam.IAMService, trackerSecret string) {
	huma.Register(api, huma.Operation{
		OperationID: "create-reward",
		Method:      http.MethodPost,
		Path:        "/api/rewards",
		Summary:     "Pledge to an issue by URL",
		Description: "Creates repository and issue records from GitHub metadata if needed, then escrows the pledged sats",
		Tags:        []string{TagRewards.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *CreateRewardInput) (*CreateRewardOutput, error) {
		userID, ok := iamSvc.PrincipalID(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("Authentication required")
		}

		reward, err := svc.CreateReward(ctx, userID, input.Body.IssueURL, input.Body.AmountSats)
		if err != nil {
			return nil, rewardErrToHTTP(err)
		}

		return &CreateRewardOutput{Body: rewardToSchema(reward)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-reward",
		Method:      http.MethodPost,
		Path:        "/api/issues/{issueId}/rewards",
		Summary:     "Pledge to a known issue",
		Description: "Escrows additional sats against an issue already tracked by the system",
		Tags:        []string{TagRewards.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *AddRewardInput) (*CreateRewardOutput, error) {
		userID, ok := iamSvc.PrincipalID(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("Authentication required")
		}

		issueID, err := uuid.Parse(input.IssueID)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid issue id")
		}

		reward, err := svc.AddReward(ctx, userID, issueID, input.Body.AmountSats)
		if err != nil {
			return nil, rewardErrToHTTP(err)
		}

		return &CreateRewardOutput{Body: rewardToSchema(reward)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-reward",
		Method:      http.MethodGet,
		Path:        "/api/rewards/{rewardId}",
		Summary:     "Get a reward",
		Description: "Returns a single pledge record",
		Tags:        []string{TagRewards.String()},
	}, func(ctx context.Context, input *GetRewardInput) (*CreateRewardOutput, error) {
		id, err := uuid.Parse(input.RewardID)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid reward id")
		}

		reward, err := svc.GetReward(ctx, id)
		if err != nil {
			if errors.Is(err, rewards.ErrRewardNotFound) {
				return nil, huma.Error404NotFound("reward not found")
			}
			return nil, huma.Error500InternalServerError("failed to fetch reward")
		}

		return &CreateRewardOutput{Body: rewardToSchema(reward)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-rewards",
		Method:      http.MethodGet,
		Path:        "/api/rewards",
		Summary:     "List pledges",
		Description: "Returns pledge records newest first, optionally filtered by repository, issue or rewarder",
		Tags:        []string{TagRewards.String()},
	}, func(ctx context.Context, input *ListRewardsInput) (*ListRewardsOutput, error) {
		filter := rewards.ListFilter{
			RepoFullName: input.Repo,
			IssueNumber:  input.IssueNumber,
			Offset:       input.Offset,
			Limit:        input.Limit,
		}
		if input.Rewarder != "" {
			rewarderID, err := uuid.Parse(input.Rewarder)
			if err != nil {
				return nil, huma.Error400BadRequest("invalid rewarder id")
			}
			filter.RewarderID = rewarderID
		}

		rewardsList, count, err := svc.ListRewards(ctx, filter)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list rewards")
		}

		resp := &ListRewardsOutput{}
		resp.Body.Rewards = make([]schemas.Reward, len(rewardsList))
		for i, reward := range rewardsList {
			resp.Body.Rewards[i] = rewardToSchema(reward)
		}
		resp.Body.Count = count
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "total-rewards",
		Method:      http.MethodGet,
		Path:        "/api/rewards/total",
		Summary:     "Total pledged sats",
		Description: "Sums recorded pledges. Display figure; live escrow balances are authoritative for payouts",
		Tags:        []string{TagRewards.String()},
	}, func(ctx context.Context, input *TotalRewardInput) (*TotalRewardOutput, error) {
		total, err := svc.TotalReward(ctx, rewards.TotalFilter{
			RepoFullName: input.Repo,
			IssueNumber:  input.IssueNumber,
		})
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to compute total")
		}

		resp := &TotalRewardOutput{}
		resp.Body.TotalSats = total
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "check-pull",
		Method:      http.MethodPost,
		Path:        "/api/rewards/check-pull",
		Summary:     "Settle issues closed by a merged pull request",
		Description: "Called by the issue tracker when a pull request merges. Settles every bounty issue the pull request closes, crediting its author. Best effort per issue",
		Tags:        []string{TagRewards.String()},
	}, func(ctx context.Context, input *CheckPullInput) (*CheckPullOutput, error) {
		if trackerSecret == "" ||
			subtle.ConstantTimeCompare([]byte(input.TrackerSecret), []byte(trackerSecret)) != 1 {
			return nil, huma.Error401Unauthorized("invalid tracker secret")
		}
		if input.Body.RepoFullName == "" {
			return nil, huma.Error400BadRequest("repo_full_name is required")
		}

		results, err := svc.CheckPull(ctx, input.Body.RepoFullName, input.Body.PullNumber)
		if err != nil {
			switch {
			case errors.Is(err, rewards.ErrNothingToRewardFor):
				return nil, huma.Error404NotFound("pull request not found")
			case errors.Is(err, rewards.ErrPullRequestNotEligible):
				return nil, huma.Error422UnprocessableEntity("pull request not eligible for reward")
			default:
				return nil, huma.Error500InternalServerError("failed to check pull request")
			}
		}

		out := make([]schemas.IssueSettlementResult, len(results))
		for i, result := range results {
			item := schemas.IssueSettlementResult{IssueNumber: result.IssueNumber}
			if result.Err != nil {
				item.Error = result.Err.Error()
			} else if result.Completion != nil {
				item.Settlement = &schemas.Settlement{
					IssueID:  result.Completion.IssueID.String(),
					WinnerID: result.Completion.WinnerID.String(),
					PaidSats: result.Completion.PaidSats,
					Replayed: result.Completion.Replayed,
				}
			}
			out[i] = item
		}

		resp := &CheckPullOutput{}
		resp.Body.Results = out
		return resp, nil
	})
}

func rewardToSchema(reward *models.Reward) schemas.Reward {
	out := schemas.Reward{
		ID:         reward.ID.String(),
		IssueID:    reward.IssueID.String(),
		RewarderID: reward.RewarderID.String(),
		AmountSats: reward.RewardSats,
		CreatedAt:  reward.CreatedAt.Format(time.RFC3339),
	}
	if reward.Rewarder != nil {
		out.RewarderLogin = reward.Rewarder.Login
	}
	return out
}

func rewardErrToHTTP(err error) error {
	switch {
	case errors.Is(err, rewards.ErrInvalidAmount):
		return huma.Error400BadRequest("amount must be positive")
	case errors.Is(err, rewards.ErrIssueDoesNotExist):
		return huma.Error404NotFound("issue does not exist")
	case errors.Is(err, rewards.ErrIssueIsClosed):
		return huma.Error409Conflict("issue is closed")
	case errors.Is(err, lnbits.ErrNotEnoughSats):
		return huma.NewError(http.StatusPaymentRequired, "insufficient funds")
	default:
		return huma.Error500InternalServerError("failed to process pledge")
	}
}

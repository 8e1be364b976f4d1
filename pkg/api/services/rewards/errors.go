package rewards

import "errors"

var (
	ErrIssueDoesNotExist      = errors.New("issue does not exist")
	ErrIssueIsClosed          = errors.New("issue is closed")
	ErrRewardNotFound         = errors.New("reward not found")
	ErrNothingToRewardFor     = errors.New("nothing to reward for")
	ErrInvalidAmount          = errors.New("reward amount must be positive")
	ErrSettlementInFlight     = errors.New("settlement already in progress")
	ErrPullRequestNotEligible = errors.New("pull request not eligible for reward")
)

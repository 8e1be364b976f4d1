package schemas

// Reward is the read model for a single pledge.
type Reward struct {
	ID            string `json:"id" doc:"Reward ID"`
	IssueID       string `json:"issue_id" doc:"Internal issue ID"`
	RewarderID    string `json:"rewarder_id" doc:"User who pledged"`
	RewarderLogin string `json:"rewarder_login,omitempty" doc:"GitHub login of the pledger"`
	AmountSats    int64  `json:"amount_sats" doc:"Pledged amount in sats"`
	CreatedAt     string `json:"created_at" doc:"Pledge time (RFC 3339)"`
}

// Settlement is the outcome of closing an issue and paying the winner.
type Settlement struct {
	IssueID  string `json:"issue_id" doc:"Internal issue ID"`
	WinnerID string `json:"winner_id" doc:"User paid out"`
	PaidSats int64  `json:"paid_sats" doc:"Amount actually transferred from escrow"`
	Replayed bool   `json:"replayed" doc:"True when served from an earlier settlement's idempotency record"`
}

// IssueSettlementResult is the per-issue outcome of a pull-request
// driven settlement run.
type IssueSettlementResult struct {
	IssueNumber int         `json:"issue_number" doc:"Issue number in the repository"`
	Settlement  *Settlement `json:"settlement,omitempty" doc:"Present when settlement succeeded"`
	Error       string      `json:"error,omitempty" doc:"Present when this issue's settlement failed"`
}

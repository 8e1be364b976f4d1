package routes

var (
	BearerAuth = []map[string][]string{
		{"bearer": {}},
	}
)

type Tag string

const (
	TagHealth  Tag = "health"
	TagIam     Tag = "iam"
	TagUsers   Tag = "users"
	TagWallet  Tag = "wallet"
	TagRewards Tag = "rewards"
	TagIssues  Tag = "issues"
)

func (t Tag) String() string { return string(t) }

func AllTags() []string {
	return []string{
		TagHealth.String(),
		TagIam.String(),
		TagUsers.String(),
		TagWallet.String(),
		TagRewards.String(),
		TagIssues.String(),
	}
}

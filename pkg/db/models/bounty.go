package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Repository struct {
	bun.BaseModel `bun:"table:repositories,alias:repo"`

	ID            uuid.UUID `bun:"type:uuid,pk"`
	GithubID      int64     `bun:",unique,notnull"`
	FullName      string    `bun:",notnull"`
	OwnerGithubID int64     `bun:",notnull"`
	HTMLURL       string    `bun:"html_url,nullzero"`

	CreatedAt time.Time `bun:",nullzero,notnull"`
	UpdatedAt time.Time `bun:",nullzero,notnull"`
}

type Issue struct {
	bun.BaseModel `bun:"table:issues,alias:i"`

	ID           uuid.UUID `bun:"type:uuid,pk"`
	RepositoryID uuid.UUID `bun:"type:uuid,notnull"`
	GithubID     int64     `bun:",unique,notnull"`
	IssueNumber  int       `bun:",notnull"`
	Title        string    `bun:",nullzero"`
	Body         string    `bun:",nullzero"`
	HTMLURL      string    `bun:"html_url,nullzero"`

	IsClosed  bool       `bun:",notnull,default:false"`
	WinnerID  *uuid.UUID `bun:"type:uuid,nullzero"`
	ClaimedAt *time.Time `bun:",nullzero"`

	// Most-recent-first ring of the last three distinct pledge authors.
	LastRewarderID       *uuid.UUID `bun:"type:uuid,nullzero"`
	SecondLastRewarderID *uuid.UUID `bun:"type:uuid,nullzero"`
	ThirdLastRewarderID  *uuid.UUID `bun:"type:uuid,nullzero"`

	CreatedAt time.Time `bun:",nullzero,notnull"`
	UpdatedAt time.Time `bun:",nullzero,notnull"`

	Repository *Repository `bun:"rel:belongs-to,join:repository_id=id"`
	Rewards    []*Reward   `bun:"rel:has-many,join:id=issue_id"`
}

type Reward struct {
	bun.BaseModel `bun:"table:rewards,alias:r"`

	ID         uuid.UUID `bun:"type:uuid,pk"`
	IssueID    uuid.UUID `bun:"type:uuid,notnull"`
	RewarderID uuid.UUID `bun:"type:uuid,notnull"`
	RewardSats int64     `bun:",notnull"`

	CreatedAt time.Time `bun:",nullzero,notnull"`

	Issue    *Issue `bun:"rel:belongs-to,join:issue_id=id"`
	Rewarder *User  `bun:"rel:belongs-to,join:rewarder_id=id"`
}

// SlideRewarderRing records author as the most recent pledger. The ring
// always holds distinct authors in recency order: a repeat pledge by the
// current last rewarder is a no-op, and an author already deeper in the
// ring moves back to the front instead of appearing twice.
func (i *Issue) SlideRewarderRing(author uuid.UUID) {
	if i.LastRewarderID != nil && *i.LastRewarderID == author {
		return
	}
	// A re-entry from the middle slot keeps the third slot as is; any
	// other author slides everyone down, which also drops a re-entry
	// from the third slot.
	if i.SecondLastRewarderID == nil || *i.SecondLastRewarderID != author {
		i.ThirdLastRewarderID = i.SecondLastRewarderID
	}
	i.SecondLastRewarderID = i.LastRewarderID
	a := author
	i.LastRewarderID = &a
}

var _ bun.BeforeAppendModelHook = (*Repository)(nil)

func (r *Repository) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery:
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		r.CreatedAt = time.Now()
		r.UpdatedAt = time.Now()
	case *bun.UpdateQuery:
		r.UpdatedAt = time.Now()
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*Issue)(nil)

func (i *Issue) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery:
		if i.ID == uuid.Nil {
			i.ID = uuid.New()
		}
		i.CreatedAt = time.Now()
		i.UpdatedAt = time.Now()
	case *bun.UpdateQuery:
		i.UpdatedAt = time.Now()
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*Reward)(nil)

func (r *Reward) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		r.CreatedAt = time.Now()
	}
	return nil
}

package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Settlement records a completed payout. IdempotencyKey lets a caller
// replay an acknowledged settlement and get the original result back
// instead of a second payment attempt.
type Settlement struct {
	bun.BaseModel `bun:"table:settlements,alias:s"`

	ID             uuid.UUID `bun:"type:uuid,pk"`
	IssueID        uuid.UUID `bun:"type:uuid,unique,notnull"`
	WinnerID       uuid.UUID `bun:"type:uuid,notnull"`
	PaidSats       int64     `bun:",notnull"`
	IdempotencyKey string    `bun:",nullzero,unique"`

	CreatedAt time.Time `bun:",nullzero,notnull"`
}

var _ bun.BeforeAppendModelHook = (*Settlement)(nil)

func (s *Settlement) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		s.CreatedAt = time.Now()
	}
	return nil
}

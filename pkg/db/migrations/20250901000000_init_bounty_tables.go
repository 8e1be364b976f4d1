package migrations

import (
	"context"
	"fmt"

	"github.com/lnbounty/bounty-api/pkg/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Print(" [up migration] ")

		_, err := db.NewCreateTable().
			Model((*models.User)(nil)).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return err
		}

		_, err = db.NewCreateTable().
			Model((*models.Repository)(nil)).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return err
		}

		_, err = db.NewCreateTable().
			Model((*models.Issue)(nil)).
			IfNotExists().
			ForeignKey(`("repository_id") REFERENCES repositories ("id") ON DELETE CASCADE`).
			Exec(ctx)
		if err != nil {
			return err
		}

		_, err = db.NewCreateTable().
			Model((*models.Reward)(nil)).
			IfNotExists().
			ForeignKey(`("issue_id") REFERENCES issues ("id") ON DELETE CASCADE`).
			ForeignKey(`("rewarder_id") REFERENCES users ("id")`).
			Exec(ctx)
		if err != nil {
			return err
		}

		_, err = db.NewCreateTable().
			Model((*models.UserWallet)(nil)).
			IfNotExists().
			ForeignKey(`("user_id") REFERENCES users ("id") ON DELETE CASCADE`).
			Exec(ctx)
		if err != nil {
			return err
		}

		_, err = db.NewCreateTable().
			Model((*models.IssueWallet)(nil)).
			IfNotExists().
			ForeignKey(`("issue_id") REFERENCES issues ("id") ON DELETE CASCADE`).
			Exec(ctx)
		if err != nil {
			return err
		}

		_, err = db.NewCreateTable().
			Model((*models.Settlement)(nil)).
			IfNotExists().
			ForeignKey(`("issue_id") REFERENCES issues ("id") ON DELETE CASCADE`).
			ForeignKey(`("winner_id") REFERENCES users ("id")`).
			Exec(ctx)
		if err != nil {
			return err
		}

		stmts := []string{
			"CREATE INDEX IF NOT EXISTS rewards_issue_id_idx ON rewards (issue_id)",
			"CREATE INDEX IF NOT EXISTS rewards_rewarder_id_idx ON rewards (rewarder_id)",
			"CREATE INDEX IF NOT EXISTS issues_repository_id_idx ON issues (repository_id)",
		}
		for _, stmt := range stmts {
			if _, err := db.NewRaw(stmt).Exec(ctx); err != nil {
				return err
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Print(" [down migration] ")

		tables := []interface{}{
			(*models.Settlement)(nil),
			(*models.IssueWallet)(nil),
			(*models.UserWallet)(nil),
			(*models.Reward)(nil),
			(*models.Issue)(nil),
			(*models.Repository)(nil),
			(*models.User)(nil),
		}
		for _, table := range tables {
			if _, err := db.NewDropTable().Model(table).IfExists().Exec(ctx); err != nil {
				return err
			}
		}

		return nil
	})
}

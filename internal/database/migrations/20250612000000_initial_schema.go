package migrations

import (
	"context"
	"fmt"

	"github.com/harborchat/harbor/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.User)(nil),
			(*types.Badge)(nil),
			(*types.UserBadge)(nil),
			(*types.FriendEdge)(nil),
			(*types.Server)(nil),
			(*types.ServerMember)(nil),
			(*types.Role)(nil),
			(*types.Category)(nil),
			(*types.Channel)(nil),
			(*types.Message)(nil),
			(*types.Conversation)(nil),
			(*types.ConversationParticipant)(nil),
			(*types.DirectMessage)(nil),
		}

		for _, model := range models {
			_, err := db.NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create table for %T: %w", model, err)
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.DirectMessage)(nil),
			(*types.ConversationParticipant)(nil),
			(*types.Conversation)(nil),
			(*types.Message)(nil),
			(*types.Channel)(nil),
			(*types.Category)(nil),
			(*types.Role)(nil),
			(*types.ServerMember)(nil),
			(*types.Server)(nil),
			(*types.FriendEdge)(nil),
			(*types.UserBadge)(nil),
			(*types.Badge)(nil),
			(*types.User)(nil),
		}

		for _, model := range models {
			_, err := db.NewDropTable().
				Model(model).
				IfExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to drop table for %T: %w", model, err)
			}
		}

		return nil
	})
}

package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			-- User lookup indexes
			CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email
			ON users (email)
			WHERE email IS NOT NULL;

			CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_discriminator
			ON users (username, discriminator);

			-- Invite codes resolve to exactly one server
			CREATE UNIQUE INDEX IF NOT EXISTS idx_servers_invite_code
			ON servers (invite_code)
			WHERE invite_code IS NOT NULL;

			-- One membership row per user per server
			CREATE UNIQUE INDEX IF NOT EXISTS idx_server_members_server_user
			ON server_members (server_id, user_id);

			CREATE INDEX IF NOT EXISTS idx_server_members_user
			ON server_members (user_id);

			-- Role and channel listings by server
			CREATE INDEX IF NOT EXISTS idx_roles_server_position
			ON roles (server_id, position DESC, id ASC);

			CREATE UNIQUE INDEX IF NOT EXISTS idx_roles_server_default
			ON roles (server_id)
			WHERE is_default = true;

			CREATE INDEX IF NOT EXISTS idx_categories_server
			ON categories (server_id, position ASC);

			CREATE INDEX IF NOT EXISTS idx_channels_server
			ON channels (server_id, position ASC);

			-- Sequence numbers are dense and unique per channel
			CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_channel_sequence
			ON messages (channel_id, sequence);

			CREATE INDEX IF NOT EXISTS idx_messages_channel_pinned
			ON messages (channel_id)
			WHERE is_pinned = true;

			CREATE INDEX IF NOT EXISTS idx_messages_channel_author_time
			ON messages (channel_id, author_id, created_at DESC);

			-- Friend edges are unique per unordered user pair
			CREATE UNIQUE INDEX IF NOT EXISTS idx_friend_edges_pair
			ON friend_edges (LEAST(requester_id, addressee_id), GREATEST(requester_id, addressee_id));

			-- One participant row per user per conversation
			CREATE UNIQUE INDEX IF NOT EXISTS idx_conversation_participants_conv_user
			ON conversation_participants (conversation_id, user_id);

			CREATE INDEX IF NOT EXISTS idx_conversation_participants_user
			ON conversation_participants (user_id);

			CREATE UNIQUE INDEX IF NOT EXISTS idx_direct_messages_conv_sequence
			ON direct_messages (conversation_id, sequence);
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			DROP INDEX IF EXISTS idx_users_email;
			DROP INDEX IF EXISTS idx_users_username_discriminator;
			DROP INDEX IF EXISTS idx_servers_invite_code;
			DROP INDEX IF EXISTS idx_server_members_server_user;
			DROP INDEX IF EXISTS idx_server_members_user;
			DROP INDEX IF EXISTS idx_roles_server_position;
			DROP INDEX IF EXISTS idx_roles_server_default;
			DROP INDEX IF EXISTS idx_categories_server;
			DROP INDEX IF EXISTS idx_channels_server;
			DROP INDEX IF EXISTS idx_messages_channel_sequence;
			DROP INDEX IF EXISTS idx_messages_channel_pinned;
			DROP INDEX IF EXISTS idx_messages_channel_author_time;
			DROP INDEX IF EXISTS idx_friend_edges_pair;
			DROP INDEX IF EXISTS idx_conversation_participants_conv_user;
			DROP INDEX IF EXISTS idx_conversation_participants_user;
			DROP INDEX IF EXISTS idx_direct_messages_conv_sequence;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop indexes: %w", err)
		}

		return nil
	})
}

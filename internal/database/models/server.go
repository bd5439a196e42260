package models

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/harborchat/harbor/internal/database/types"
	"github.com/harborchat/harbor/internal/database/types/enum"
	"github.com/harborchat/harbor/internal/idgen"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

const (
	defaultRoleName    = "everyone"
	defaultChannelName = "general"
	inviteCodeLength   = 8
	inviteCodeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// ServerModel handles database operations for servers and their invite codes.
type ServerModel struct {
	db     *bun.DB
	gen    *idgen.Generator
	logger *zap.Logger
}

// NewServer creates a new server model.
func NewServer(db *bun.DB, gen *idgen.Generator, logger *zap.Logger) *ServerModel {
	return &ServerModel{
		db:     db,
		gen:    gen,
		logger: logger.Named("db_server"),
	}
}

// Create provisions a server with its default role, default channel, and
// the owner's membership, all in one transaction. The default role sits at
// position 0 and applies to every member implicitly; the default channel
// becomes the server's default channel reference.
func (r *ServerModel) Create(ctx context.Context, server *types.Server) error {
	if strings.TrimSpace(server.Name) == "" {
		return fmt.Errorf("%w: server name is empty", types.ErrValidation)
	}

	if server.OwnerID == 0 {
		return fmt.Errorf("%w: server owner is required", types.ErrValidation)
	}

	ids, err := r.nextIDs(4)
	if err != nil {
		return err
	}

	if server.ID == 0 {
		server.ID = ids[0]
	}

	code, err := generateInviteCode()
	if err != nil {
		return err
	}

	now := time.Now()
	server.InviteCode = code
	server.MemberCount = 1
	server.CreatedAt = now
	server.UpdatedAt = now

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		defaultRole := &types.Role{
			ID:        ids[1],
			ServerID:  server.ID,
			Name:      defaultRoleName,
			Position:  0,
			IsDefault: true,
			Permissions: types.Overlay{
				Allow: types.CapViewChannels | types.CapSendMessages | types.CapAttachFiles | types.CapCreateInvites,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}

		defaultChannel := &types.Channel{
			ID:        ids[2],
			ServerID:  server.ID,
			Name:      defaultChannelName,
			Type:      enum.ChannelTypeText,
			CreatedAt: now,
		}

		ownerMember := &types.ServerMember{
			ID:       ids[3],
			UserID:   server.OwnerID,
			ServerID: server.ID,
			RoleIDs:  []snowflake.ID{defaultRole.ID},
			JoinedAt: now,
		}

		server.DefaultChannelID = defaultChannel.ID

		if _, err := tx.NewInsert().Model(server).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert server: %w", err)
		}

		if _, err := tx.NewInsert().Model(defaultRole).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert default role: %w", err)
		}

		if _, err := tx.NewInsert().Model(defaultChannel).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert default channel: %w", err)
		}

		if _, err := tx.NewInsert().Model(ownerMember).Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return types.ErrDuplicateMember
			}

			return fmt.Errorf("failed to insert owner membership: %w", err)
		}

		return nil
	})
}

// Get retrieves a server by ID.
func (r *ServerModel) Get(ctx context.Context, id snowflake.ID) (*types.Server, error) {
	server := new(types.Server)

	err := r.db.NewSelect().Model(server).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrServerNotFound
		}

		return nil, fmt.Errorf("failed to get server: %w", err)
	}

	return server, nil
}

// GetByInviteCode resolves an invite code to its server.
func (r *ServerModel) GetByInviteCode(ctx context.Context, code string) (*types.Server, error) {
	server := new(types.Server)

	err := r.db.NewSelect().Model(server).Where("invite_code = ?", code).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrInviteNotFound
		}

		return nil, fmt.Errorf("failed to resolve invite code: %w", err)
	}

	return server, nil
}

// Update persists mutable server attributes.
func (r *ServerModel) Update(ctx context.Context, server *types.Server) error {
	if strings.TrimSpace(server.Name) == "" {
		return fmt.Errorf("%w: server name is empty", types.ErrValidation)
	}

	server.UpdatedAt = time.Now()

	res, err := r.db.NewUpdate().
		Model(server).
		Column("name", "description", "icon_url", "banner_url", "tags",
			"default_channel_id", "is_official", "is_verified", "is_partnered", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update server: %w", err)
	}

	return requireAffected(res, types.ErrServerNotFound)
}

// Delete removes a server and cascades to its members, channels,
// categories, and roles in one transaction. Messages go with the channels.
func (r *ServerModel) Delete(ctx context.Context, id snowflake.ID) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().
			Model((*types.Server)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete server: %w", err)
		}

		if err := requireAffected(res, types.ErrServerNotFound); err != nil {
			return err
		}

		cascades := []any{
			(*types.Message)(nil),
			(*types.Channel)(nil),
			(*types.Category)(nil),
			(*types.Role)(nil),
			(*types.ServerMember)(nil),
		}

		for _, model := range cascades {
			if _, err := tx.NewDelete().Model(model).Where("server_id = ?", id).Exec(ctx); err != nil {
				return fmt.Errorf("failed to cascade server delete: %w", err)
			}
		}

		return nil
	})
}

// RegenerateInvite replaces the server's invite code and returns the new one.
func (r *ServerModel) RegenerateInvite(ctx context.Context, id snowflake.ID) (string, error) {
	code, err := generateInviteCode()
	if err != nil {
		return "", err
	}

	res, err := r.db.NewUpdate().
		Model((*types.Server)(nil)).
		Set("invite_code = ?", code).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to regenerate invite code: %w", err)
	}

	if err := requireAffected(res, types.ErrServerNotFound); err != nil {
		return "", err
	}

	return code, nil
}

// TransferOwnership moves the server to a new owner. The new owner must
// already be a member; the check and the update share a transaction so a
// concurrent leave cannot slip between them.
func (r *ServerModel) TransferOwnership(ctx context.Context, serverID, newOwnerID snowflake.ID) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		isMember, err := tx.NewSelect().
			Model((*types.ServerMember)(nil)).
			Where("server_id = ?", serverID).
			Where("user_id = ?", newOwnerID).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("failed to check new owner membership: %w", err)
		}

		if !isMember {
			return fmt.Errorf("%w: new owner must be a member", types.ErrValidation)
		}

		res, err := tx.NewUpdate().
			Model((*types.Server)(nil)).
			Set("owner_id = ?", newOwnerID).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", serverID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to transfer ownership: %w", err)
		}

		return requireAffected(res, types.ErrServerNotFound)
	})
}

func (r *ServerModel) nextIDs(n int) ([]snowflake.ID, error) {
	ids := make([]snowflake.ID, n)

	for i := range ids {
		id, err := r.gen.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to generate ID: %w", err)
		}

		ids[i] = id
	}

	return ids, nil
}

func generateInviteCode() (string, error) {
	buf := make([]byte, inviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate invite code: %w", err)
	}

	for i, b := range buf {
		buf[i] = inviteCodeAlphabet[int(b)%len(inviteCodeAlphabet)]
	}

	return string(buf), nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"github.com/harborchat/harbor/internal/database/models"
	"github.com/harborchat/harbor/internal/database/types"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// cacheGCTTL bounds the lifetime of cache entries for memory hygiene only.
// Correctness comes from invalidate-on-write: every permission-affecting
// mutation bumps the server's epoch, which changes the key of all
// subsequent lookups for that server.
const cacheGCTTL = 24 * time.Hour

// PermissionService resolves effective permissions for (user, server,
// channel) triples. Resolution itself is pure; this service loads the
// inputs, applies the owner bypass, and caches results in Redis.
type PermissionService struct {
	server  *models.ServerModel
	member  *models.MemberModel
	role    *models.RoleModel
	channel *models.ChannelModel
	cache   rueidis.Client
	logger  *zap.Logger
}

// NewPermission creates a new permission service. A nil cache client
// disables caching; every resolve then hits the database.
func NewPermission(
	server *models.ServerModel,
	member *models.MemberModel,
	role *models.RoleModel,
	channel *models.ChannelModel,
	cache rueidis.Client,
	logger *zap.Logger,
) *PermissionService {
	return &PermissionService{
		server:  server,
		member:  member,
		role:    role,
		channel: channel,
		cache:   cache,
		logger:  logger.Named("permission_service"),
	}
}

// Resolve computes the effective permission set for a user in a server,
// optionally narrowed to one channel (zero channelID means server-wide).
//
// A user with no membership resolves to no access, not an error; callers
// that need to distinguish "not a member" from "member without permission"
// check membership existence separately. The server owner always resolves
// to full access.
func (s *PermissionService) Resolve(
	ctx context.Context, userID, serverID, channelID snowflake.ID,
) (types.EffectivePermissions, error) {
	server, err := s.server.Get(ctx, serverID)
	if err != nil {
		return types.NoAccess(), err
	}

	if server.OwnerID == userID {
		return types.OwnerAccess(), nil
	}

	epoch := s.epoch(ctx, serverID)
	key := cacheKey(serverID, epoch, userID, channelID)

	if perms, ok := s.cacheGet(ctx, key); ok {
		return perms, nil
	}

	member, err := s.member.Get(ctx, serverID, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return types.NoAccess(), nil
		}

		return types.NoAccess(), err
	}

	var channel *types.Channel

	if channelID != 0 {
		channel, err = s.channel.Get(ctx, channelID)
		if err != nil {
			return types.NoAccess(), err
		}

		if channel.ServerID != serverID {
			return types.NoAccess(), types.ErrChannelNotFound
		}
	}

	roles, err := s.role.GetApplicable(ctx, serverID, member.RoleIDs)
	if err != nil {
		return types.NoAccess(), err
	}

	perms := types.ResolvePermissions(roles, channel)
	s.cacheSet(ctx, key, perms)

	return perms, nil
}

// RequireMember resolves permissions and upgrades "not a member" to a
// forbidden error for callers that demand membership.
func (s *PermissionService) RequireMember(
	ctx context.Context, userID, serverID, channelID snowflake.ID,
) (types.EffectivePermissions, error) {
	perms, err := s.Resolve(ctx, userID, serverID, channelID)
	if err != nil {
		return types.NoAccess(), err
	}

	if !perms.IsMember {
		return types.NoAccess(), fmt.Errorf("%w: not a member of this server", types.ErrForbidden)
	}

	return perms, nil
}

// Invalidate discards every cached resolution for a server by bumping its
// epoch. Called on role permission or position edits, member role changes,
// channel privacy changes, member removal, and ownership transfer.
func (s *PermissionService) Invalidate(ctx context.Context, serverID snowflake.ID) {
	if s.cache == nil {
		return
	}

	err := s.cache.Do(ctx,
		s.cache.B().Incr().Key(epochKey(serverID)).Build(),
	).Error()
	if err != nil {
		// A failed bump must not leave stale grants behind. Deleting the
		// key would read back as epoch 0 and resurrect old entries, so
		// force the epoch to a value no prior cache key can carry.
		s.logger.Error("Failed to bump permission epoch",
			zap.Uint64("serverID", uint64(serverID)),
			zap.Error(err))

		fresh := strconv.FormatInt(time.Now().UnixNano(), 10)

		setErr := s.cache.Do(ctx,
			s.cache.B().Set().Key(epochKey(serverID)).Value(fresh).Build(),
		).Error()
		if setErr != nil {
			s.logger.Error("Failed to reset permission epoch", zap.Error(setErr))
		}
	}
}

func (s *PermissionService) epoch(ctx context.Context, serverID snowflake.ID) int64 {
	if s.cache == nil {
		return 0
	}

	epoch, err := s.cache.Do(ctx,
		s.cache.B().Get().Key(epochKey(serverID)).Build(),
	).AsInt64()
	if err != nil {
		if !rueidis.IsRedisNil(err) {
			s.logger.Warn("Failed to read permission epoch", zap.Error(err))
		}

		return 0
	}

	return epoch
}

func (s *PermissionService) cacheGet(ctx context.Context, key string) (types.EffectivePermissions, bool) {
	if s.cache == nil {
		return types.NoAccess(), false
	}

	raw, err := s.cache.Do(ctx, s.cache.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if !rueidis.IsRedisNil(err) {
			s.logger.Warn("Failed to read permission cache", zap.Error(err))
		}

		return types.NoAccess(), false
	}

	var perms types.EffectivePermissions
	if err := sonic.Unmarshal(raw, &perms); err != nil {
		s.logger.Warn("Failed to decode cached permissions", zap.Error(err))
		return types.NoAccess(), false
	}

	return perms, true
}

func (s *PermissionService) cacheSet(ctx context.Context, key string, perms types.EffectivePermissions) {
	if s.cache == nil {
		return
	}

	payload, err := sonic.Marshal(perms)
	if err != nil {
		s.logger.Warn("Failed to encode permissions for cache", zap.Error(err))
		return
	}

	err = s.cache.Do(ctx,
		s.cache.B().Set().Key(key).Value(string(payload)).Ex(cacheGCTTL).Build(),
	).Error()
	if err != nil {
		s.logger.Warn("Failed to write permission cache", zap.Error(err))
	}
}

func cacheKey(serverID snowflake.ID, epoch int64, userID, channelID snowflake.ID) string {
	return fmt.Sprintf("perm:%d:%d:%d:%d", serverID, epoch, userID, channelID)
}

func epochKey(serverID snowflake.ID) string {
	return fmt.Sprintf("perm:epoch:%d", serverID)
}

package service

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/disgoorg/snowflake/v2"
	"github.com/harborchat/harbor/internal/database/types"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupCache(t *testing.T) (*miniredis.Miniredis, *PermissionService) {
	t.Helper()

	mr := miniredis.RunT(t)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)

	t.Cleanup(client.Close)

	return mr, NewPermission(nil, nil, nil, nil, client, zap.NewNop())
}

func TestPermissionCacheRoundTrip(t *testing.T) {
	_, svc := setupCache(t)
	ctx := t.Context()

	serverID := snowflake.ID(1)
	epoch := svc.epoch(ctx, serverID)
	key := cacheKey(serverID, epoch, snowflake.ID(2), snowflake.ID(3))

	_, ok := svc.cacheGet(ctx, key)
	assert.False(t, ok, "unseen key must miss")

	perms := types.EffectivePermissions{
		Capabilities: types.CapViewChannels | types.CapSendMessages,
		IsMember:     true,
	}
	svc.cacheSet(ctx, key, perms)

	got, ok := svc.cacheGet(ctx, key)
	require.True(t, ok)
	assert.Equal(t, perms, got)
}

func TestPermissionCacheInvalidateBumpsEpoch(t *testing.T) {
	_, svc := setupCache(t)
	ctx := t.Context()

	serverID := snowflake.ID(10)
	before := svc.epoch(ctx, serverID)

	key := cacheKey(serverID, before, snowflake.ID(2), snowflake.ID(0))
	svc.cacheSet(ctx, key, types.EffectivePermissions{
		Capabilities: types.CapAll,
		IsMember:     true,
	})

	svc.Invalidate(ctx, serverID)

	after := svc.epoch(ctx, serverID)
	assert.Greater(t, after, before, "invalidate must change the epoch")

	// The old entry is unreachable under the new epoch
	_, ok := svc.cacheGet(ctx, cacheKey(serverID, after, snowflake.ID(2), snowflake.ID(0)))
	assert.False(t, ok)
}

func TestPermissionCacheInvalidateRecoversFromBumpFailure(t *testing.T) {
	mr, svc := setupCache(t)
	ctx := t.Context()

	serverID := snowflake.ID(20)
	before := svc.epoch(ctx, serverID)

	key := cacheKey(serverID, before, snowflake.ID(2), snowflake.ID(0))
	svc.cacheSet(ctx, key, types.EffectivePermissions{
		Capabilities: types.CapAll,
		IsMember:     true,
	})

	// A corrupted epoch value makes INCR fail, forcing the fallback path
	require.NoError(t, mr.Set(epochKey(serverID), "not-a-number"))

	svc.Invalidate(ctx, serverID)

	after := svc.epoch(ctx, serverID)
	assert.Greater(t, after, before, "fallback must still move the epoch forward")

	_, ok := svc.cacheGet(ctx, cacheKey(serverID, after, snowflake.ID(2), snowflake.ID(0)))
	assert.False(t, ok, "entries cached under the old epoch must stay unreachable")
}

func TestPermissionCacheDisabledWithoutClient(t *testing.T) {
	t.Parallel()

	svc := NewPermission(nil, nil, nil, nil, nil, zap.NewNop())
	ctx := t.Context()

	assert.Zero(t, svc.epoch(ctx, snowflake.ID(1)))

	_, ok := svc.cacheGet(ctx, "perm:1:0:2:0")
	assert.False(t, ok)

	// Writes and invalidations are no-ops rather than panics
	svc.cacheSet(ctx, "perm:1:0:2:0", types.NoAccess())
	svc.Invalidate(ctx, snowflake.ID(1))
}

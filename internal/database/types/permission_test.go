package types_test

import (
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/harborchat/harbor/internal/database/types"
	"github.com/stretchr/testify/assert"
)

func role(id snowflake.ID, position int, allow, deny types.Capability) *types.Role {
	return &types.Role{
		ID:       id,
		Position: position,
		Permissions: types.Overlay{
			Allow: allow,
			Deny:  deny,
		},
	}
}

func TestResolvePermissions_DefaultDeny(t *testing.T) {
	t.Parallel()

	perms := types.ResolvePermissions([]*types.Role{
		role(1, 0, 0, 0),
	}, nil)

	assert.True(t, perms.IsMember)
	assert.False(t, perms.Has(types.CapSendMessages))
	assert.Equal(t, types.Capability(0), perms.Capabilities)
}

func TestResolvePermissions_HigherPositionWins(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		roles []*types.Role
		want  bool
	}{
		{
			name: "high position grant overrides low position deny",
			roles: []*types.Role{
				role(1, 0, 0, types.CapSendMessages),
				role(2, 5, types.CapSendMessages, 0),
			},
			want: true,
		},
		{
			name: "high position deny overrides low position grant",
			roles: []*types.Role{
				role(1, 0, types.CapSendMessages, 0),
				role(2, 5, 0, types.CapSendMessages),
			},
			want: false,
		},
		{
			name: "unset falls through to lower role",
			roles: []*types.Role{
				role(2, 5, 0, 0),
				role(1, 0, types.CapSendMessages, 0),
			},
			want: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			perms := types.ResolvePermissions(tc.roles, nil)
			assert.Equal(t, tc.want, perms.Has(types.CapSendMessages))
		})
	}
}

func TestResolvePermissions_TieBrokenByIDAscending(t *testing.T) {
	t.Parallel()

	// Same position: the role with the lower ID decides first.
	roles := []*types.Role{
		role(20, 3, 0, types.CapManageMessages),
		role(10, 3, types.CapManageMessages, 0),
	}

	perms := types.ResolvePermissions(roles, nil)
	assert.True(t, perms.Has(types.CapManageMessages))

	// Input order must not matter.
	reversed := []*types.Role{roles[1], roles[0]}
	assert.Equal(t, perms, types.ResolvePermissions(reversed, nil))
}

func TestResolvePermissions_AdministratorExpands(t *testing.T) {
	t.Parallel()

	perms := types.ResolvePermissions([]*types.Role{
		role(1, 1, types.CapAdministrator, 0),
	}, nil)

	assert.Equal(t, types.CapAll, perms.Capabilities)
	assert.True(t, perms.Has(types.CapManageServer))
	assert.False(t, perms.IsOwner)
}

func TestResolvePermissions_PrivateChannelGate(t *testing.T) {
	t.Parallel()

	admin := role(1, 9, types.CapAdministrator, 0)
	channel := &types.Channel{
		IsPrivate:      true,
		AllowedRoleIDs: []snowflake.ID{99},
	}

	// Server-wide administrator is not enough to enter a private channel
	// whose allow-list excludes every role the member holds.
	perms := types.ResolvePermissions([]*types.Role{admin}, channel)
	assert.Equal(t, types.NoAccess(), perms)

	// Once any applicable role appears on the allow-list, the fold result
	// stands.
	channel.AllowedRoleIDs = []snowflake.ID{1}
	perms = types.ResolvePermissions([]*types.Role{admin}, channel)
	assert.Equal(t, types.CapAll, perms.Capabilities)
}

func TestResolvePermissions_PublicChannelIgnoresAllowList(t *testing.T) {
	t.Parallel()

	channel := &types.Channel{
		IsPrivate:      false,
		AllowedRoleIDs: []snowflake.ID{99},
	}

	perms := types.ResolvePermissions([]*types.Role{
		role(1, 0, types.CapViewChannels|types.CapSendMessages, 0),
	}, channel)

	assert.True(t, perms.Has(types.CapViewChannels))
	assert.True(t, perms.Has(types.CapSendMessages))
}

func TestOwnerAccess(t *testing.T) {
	t.Parallel()

	perms := types.OwnerAccess()
	assert.True(t, perms.IsOwner)
	assert.True(t, perms.IsMember)
	assert.True(t, perms.Has(types.CapAll))
}

func TestSlowModeRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Now()
	slowMode := 10 * time.Second

	cases := []struct {
		name       string
		lastPosted time.Time
		wantWait   bool
	}{
		{"no previous message", time.Time{}, false},
		{"posted 9s ago", now.Add(-9 * time.Second), true},
		{"posted 11s ago", now.Add(-11 * time.Second), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			wait := types.SlowModeRetryAfter(tc.lastPosted, slowMode, now)
			assert.Equal(t, tc.wantWait, wait > 0)
		})
	}

	assert.Zero(t, types.SlowModeRetryAfter(now, 0, now))
}

func TestHighestPosition(t *testing.T) {
	t.Parallel()

	assert.Equal(t, -1, types.HighestPosition(nil))
	assert.Equal(t, 5, types.HighestPosition([]*types.Role{
		role(1, 0, 0, 0),
		role(2, 5, 0, 0),
		role(3, 2, 0, 0),
	}))
}

func TestOutranks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		actorHighest int
		position     int
		want         bool
	}{
		{
			name:         "strictly below",
			actorHighest: 5,
			position:     4,
			want:         true,
		},
		{
			name:         "equal position",
			actorHighest: 5,
			position:     5,
			want:         false,
		},
		{
			name:         "above actor",
			actorHighest: 3,
			position:     7,
			want:         false,
		},
		{
			name:         "actor with no roles",
			actorHighest: -1,
			position:     0,
			want:         false,
		},
		{
			name:         "default role under any real role",
			actorHighest: 1,
			position:     0,
			want:         true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, types.Outranks(tt.actorHighest, tt.position))
		})
	}
}

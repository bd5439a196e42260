package types

import (
	"sort"
	"strings"
)

// Capability is a bit-set of actions a member can perform in a server.
type Capability uint64

const (
	CapViewChannels Capability = 1 << iota
	CapSendMessages
	CapManageMessages
	CapManageRoles
	CapManageChannels
	CapManageServer
	CapKickMembers
	CapCreateInvites
	CapMentionEveryone
	CapAttachFiles
	// CapAdministrator expands to every capability when the fold resolves it
	// as granted. It does not bypass the private-channel gate; only server
	// ownership does.
	CapAdministrator

	capSentinel
)

// CapAll is every capability bit, including administrator.
const CapAll = capSentinel - 1

var capabilityNames = map[Capability]string{
	CapViewChannels:    "view_channels",
	CapSendMessages:    "send_messages",
	CapManageMessages:  "manage_messages",
	CapManageRoles:     "manage_roles",
	CapManageChannels:  "manage_channels",
	CapManageServer:    "manage_server",
	CapKickMembers:     "kick_members",
	CapCreateInvites:   "create_invites",
	CapMentionEveryone: "mention_everyone",
	CapAttachFiles:     "attach_files",
	CapAdministrator:   "administrator",
}

// Has reports whether every bit of want is present.
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

func (c Capability) String() string {
	if c == 0 {
		return "none"
	}

	names := make([]string, 0, len(capabilityNames))

	for bit := Capability(1); bit < capSentinel; bit <<= 1 {
		if c&bit != 0 {
			names = append(names, capabilityNames[bit])
		}
	}

	return strings.Join(names, ",")
}

// Overlay is a role's tri-state permission contribution. A bit present in
// Allow grants the capability, a bit in Deny refuses it, and a bit in
// neither leaves the decision to lower-precedence roles.
type Overlay struct {
	Allow Capability `bun:"allow,notnull,default:0" json:"allow"`
	Deny  Capability `bun:"deny,notnull,default:0"  json:"deny"`
}

// Decides reports the capability bits this overlay settles either way.
func (o Overlay) Decides() Capability {
	return o.Allow | o.Deny
}

// EffectivePermissions is the resolved capability set for a member in a
// server, optionally narrowed to one channel.
type EffectivePermissions struct {
	Capabilities Capability `json:"capabilities"`
	IsOwner      bool       `json:"isOwner"`
	IsMember     bool       `json:"isMember"`
}

// Has reports whether the resolved set includes every bit of want.
func (p EffectivePermissions) Has(want Capability) bool {
	return p.Capabilities.Has(want)
}

// NoAccess is the zero permission set: not a member, nothing granted.
func NoAccess() EffectivePermissions {
	return EffectivePermissions{}
}

// OwnerAccess is the full set the server owner always resolves to.
func OwnerAccess() EffectivePermissions {
	return EffectivePermissions{Capabilities: CapAll, IsOwner: true, IsMember: true}
}

// SortRolesForResolution orders roles by position descending, ties broken by
// ID ascending so resolution is deterministic regardless of input order.
func SortRolesForResolution(roles []*Role) {
	sort.SliceStable(roles, func(i, j int) bool {
		if roles[i].Position != roles[j].Position {
			return roles[i].Position > roles[j].Position
		}

		return roles[i].ID < roles[j].ID
	})
}

// ResolvePermissions folds the applicable roles of a member into an effective
// permission set, applying the private-channel gate when channel is non-nil.
//
// The fold walks roles highest-position-first; for each capability the first
// role that grants or denies it wins, and a capability left undecided by
// every role defaults to deny. A private channel whose allow-list shares no
// role with the member short-circuits to no access, overriding any
// server-level grant; the caller is expected to handle the owner bypass
// before calling (see Resolve in the permission service).
func ResolvePermissions(roles []*Role, channel *Channel) EffectivePermissions {
	sorted := make([]*Role, len(roles))
	copy(sorted, roles)
	SortRolesForResolution(sorted)

	var granted, decided Capability

	for _, role := range sorted {
		overlay := role.Permissions
		granted |= overlay.Allow &^ decided
		decided |= overlay.Decides()
	}

	if granted.Has(CapAdministrator) {
		granted = CapAll
	}

	if channel != nil && channel.IsPrivate {
		if !channelAllowsAny(channel, sorted) {
			return NoAccess()
		}
	}

	return EffectivePermissions{Capabilities: granted, IsMember: true}
}

func channelAllowsAny(channel *Channel, roles []*Role) bool {
	allowed := make(map[int64]struct{}, len(channel.AllowedRoleIDs))
	for _, id := range channel.AllowedRoleIDs {
		allowed[int64(id)] = struct{}{}
	}

	for _, role := range roles {
		if _, ok := allowed[int64(role.ID)]; ok {
			return true
		}
	}

	return false
}

package types

import (
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

var (
	ErrRoleNotFound = fmt.Errorf("%w: role", ErrNotFound)

	// ErrDefaultRoleImmutable rejects deleting a server's default role; it
	// exists for the server's whole lifetime.
	ErrDefaultRoleImmutable = fmt.Errorf("%w: default role cannot be deleted", ErrInvariantViolation)
)

// Role is a server-scoped permission bundle. Position defines precedence:
// a higher position outranks a lower one when the fold resolves conflicting
// grants and denies. Every server has exactly one default role at position 0
// that applies to all members implicitly.
type Role struct {
	ID        snowflake.ID `bun:"id,pk"             json:"id"`
	ServerID  snowflake.ID `bun:"server_id,notnull" json:"serverId"`
	Name      string       `bun:"name,notnull"      json:"name"`
	Color     string       `bun:"color,nullzero"    json:"color,omitempty"`
	Position  int          `bun:"position,notnull,default:0"         json:"position"`
	IsDefault bool         `bun:"is_default,notnull,default:false"   json:"isDefault"`

	Permissions Overlay `bun:"embed:perm_" json:"permissions"`

	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

// Outranks reports whether an actor whose highest role sits at actorHighest
// has authority over a role at position. Authority requires strict
// dominance: an equal position never outranks, so two members sharing a
// top role cannot manage each other's roles.
func Outranks(actorHighest, position int) bool {
	return position < actorHighest
}

// HighestPosition returns the best position among the given roles, or -1
// when the slice is empty.
func HighestPosition(roles []*Role) int {
	highest := -1
	for _, role := range roles {
		if role.Position > highest {
			highest = role.Position
		}
	}

	return highest
}

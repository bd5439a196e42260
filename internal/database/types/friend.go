package types

import (
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/harborchat/harbor/internal/database/types/enum"
)

var (
	ErrFriendEdgeNotFound = fmt.Errorf("%w: friend request", ErrNotFound)
	ErrDuplicateFriend    = fmt.Errorf("%w: friend request", ErrConflict)
	ErrSelfFriend         = fmt.Errorf("%w: cannot friend yourself", ErrValidation)
)

// FriendEdge is a single row per user pair replacing the old trio of
// friend/incoming/outgoing ID lists. Requester and addressee record the
// direction of the pending request; once accepted the edge is symmetric.
type FriendEdge struct {
	RequesterID snowflake.ID     `bun:"requester_id,pk" json:"requesterId"`
	AddresseeID snowflake.ID     `bun:"addressee_id,pk" json:"addresseeId"`
	State       enum.FriendState `bun:"state,notnull,default:0" json:"state"`
	CreatedAt   time.Time        `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt   time.Time        `bun:"updated_at,notnull" json:"updatedAt"`
}

// Involves reports whether the edge connects the given user.
func (e *FriendEdge) Involves(userID snowflake.ID) bool {
	return e.RequesterID == userID || e.AddresseeID == userID
}

// Other returns the user on the opposite side of the edge.
func (e *FriendEdge) Other(userID snowflake.ID) snowflake.ID {
	if e.RequesterID == userID {
		return e.AddresseeID
	}

	return e.RequesterID
}

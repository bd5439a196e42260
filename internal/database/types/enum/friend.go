package enum

import "fmt"

// FriendState tracks the lifecycle of a friend edge.
type FriendState int

const (
	FriendStatePending FriendState = iota
	FriendStateAccepted
)

func (s FriendState) String() string {
	switch s {
	case FriendStatePending:
		return "pending"
	case FriendStateAccepted:
		return "accepted"
	default:
		return fmt.Sprintf("FriendState(%d)", int(s))
	}
}

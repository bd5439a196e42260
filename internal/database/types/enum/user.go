package enum

import "fmt"

// UserStatus is the presence state a user advertises.
type UserStatus int

const (
	UserStatusOffline UserStatus = iota
	UserStatusOnline
	UserStatusIdle
	UserStatusDoNotDisturb
)

func (s UserStatus) String() string {
	switch s {
	case UserStatusOffline:
		return "offline"
	case UserStatusOnline:
		return "online"
	case UserStatusIdle:
		return "idle"
	case UserStatusDoNotDisturb:
		return "dnd"
	default:
		return fmt.Sprintf("UserStatus(%d)", int(s))
	}
}

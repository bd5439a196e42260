package enum

import "fmt"

// ChannelType distinguishes the kinds of channels a server can contain.
type ChannelType int

const (
	ChannelTypeText ChannelType = iota
	ChannelTypeVoice
	ChannelTypeAnnouncement
)

func (t ChannelType) String() string {
	switch t {
	case ChannelTypeText:
		return "text"
	case ChannelTypeVoice:
		return "voice"
	case ChannelTypeAnnouncement:
		return "announcement"
	default:
		return fmt.Sprintf("ChannelType(%d)", int(t))
	}
}

package projection

import (
	"support-chat/domain/chat"

	"github.com/samber/lo"
)

// Timeline is the rendered state of one room for one viewer.
type Timeline struct {
	Room       chat.Room `json:"room"`
	Identifier string    `json:"identifier"`
	Items      []Item    `json:"items"`
	Pinned     []Item    `json:"pinned"`
	Unread     int       `json:"unread"`
}

func NewTimeline(room chat.Room, messages []chat.Message, viewer Viewer) Timeline {
	items := Project(room, messages, viewer)
	return Timeline{
		Room:       room,
		Identifier: chat.FormatRoomIdentifier(room.Context.Kind, room.Context.Key()),
		Items:      items,
		Pinned: lo.Filter(items, func(item Item, _ int) bool {
			return item.Pinned && !item.Deleted
		}),
		Unread: chat.UnreadCount(messages, viewer.Actor.Role),
	}
}

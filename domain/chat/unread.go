package chat

import "github.com/samber/lo"

// UnreadCount counts unread messages sent by the other side. The viewer's own role never
// counts as unread to itself.
func UnreadCount(messages []Message, viewer Role) int {
	return lo.CountBy(messages, func(m Message) bool {
		return !m.Read && m.SenderRole != viewer
	})
}

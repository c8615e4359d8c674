// Package projection derives what a client renders from a snapshot of room messages.
// It is read-only: nothing here mutates a message or talks to the network.
package projection

import (
	"slices"
	"time"

	"support-chat/domain/attachment"
	"support-chat/domain/chat"

	"github.com/samber/lo"
)

// Viewer is the identity the list is rendered for, with its display preferences.
type Viewer struct {
	Actor    chat.Actor
	Now      time.Time
	Clock    ClockStyle
	Location *time.Location
}

type ReactionView struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
	Mine  bool   `json:"mine"`
}

// Affordances lists the actions offered on a message. An action that is not offered must
// not be shown at all.
type Affordances struct {
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
	Pin    bool `json:"pin"`
	React  bool `json:"react"`
	Reply  bool `json:"reply"`
}

type Item struct {
	ID           chat.MessageID            `json:"id"`
	SenderID     string                    `json:"senderId"`
	SenderRole   chat.Role                 `json:"senderRole"`
	FromMe       bool                      `json:"fromMe"`
	Text         string                    `json:"text"`
	Deleted      bool                      `json:"deleted"`
	SentAt       time.Time                 `json:"sentAt"`
	TimeLabel    string                    `json:"timeLabel"`
	DaySeparator string                    `json:"daySeparator,omitempty"`
	GroupStart   bool                      `json:"groupStart"`
	Status       chat.DeliveryStatus       `json:"status"`
	Edited       bool                      `json:"edited"`
	Pinned       bool                      `json:"pinned"`
	Starred      bool                      `json:"starred"`
	Attachment   attachment.Classification `json:"attachment"`
	Reply        *chat.ReplyPreview        `json:"reply,omitempty"`
	Reactions    []ReactionView            `json:"reactions,omitempty"`
	Can          Affordances               `json:"can"`
}

// Project renders messages in sentAt order, ties kept in their original order. A message is
// "from me" when it was sent under the viewer's role, whoever the sender was.
func Project(room chat.Room, messages []chat.Message, viewer Viewer) []Item {
	ordered := slices.Clone(messages)
	slices.SortStableFunc(ordered, func(a, b chat.Message) int {
		return a.SentAt.Compare(b.SentAt)
	})

	items := make([]Item, 0, len(ordered))
	for i, m := range ordered {
		item := render(room, m, viewer)
		if i == 0 || !sameDay(m.SentAt.In(location(viewer)), ordered[i-1].SentAt.In(location(viewer))) {
			item.DaySeparator = DayLabel(m.SentAt, viewer.Now, viewer.Location)
		}
		item.GroupStart = i == 0 || item.DaySeparator != "" ||
			ordered[i-1].SenderID != m.SenderID || ordered[i-1].SenderRole != m.SenderRole
		items = append(items, item)
	}
	return items
}

func render(room chat.Room, m chat.Message, viewer Viewer) Item {
	item := Item{
		ID:         m.ID,
		SenderID:   m.SenderID,
		SenderRole: m.SenderRole,
		FromMe:     m.SenderRole == viewer.Actor.Role,
		Text:       m.Text(),
		Deleted:    m.Deleted,
		SentAt:     m.SentAt,
		TimeLabel:  TimeLabel(m.SentAt, viewer.Now, viewer.Clock, viewer.Location),
		Status:     m.Status,
		Edited:     m.Edited,
		Pinned:     m.Pinned,
		Starred:    m.Starred,
		Attachment: attachment.Classify(m),
		Reactions:  reactions(m.Reactions, viewer.Actor.ID),
		Can: Affordances{
			Edit:   chat.CanEdit(m, viewer.Actor, viewer.Now),
			Delete: chat.CanDelete(m, viewer.Actor) && !m.Deleted,
			Pin:    chat.CanPin(room, viewer.Actor) && !m.Deleted,
			React:  chat.CanReact(m),
			Reply:  !m.Deleted && m.Status != chat.StatusSending,
		},
	}
	if m.Deleted {
		item.Text = chat.DeletedPlaceholder
	}
	if m.Status == chat.StatusSending {
		item.Can = Affordances{}
	}
	if preview, ok := chat.ResolveReplyPreview(m.ReplyTo); ok {
		item.Reply = &preview
	}
	return item
}

func reactions(rs []chat.Reaction, actorID string) []ReactionView {
	return lo.Map(chat.Aggregate(rs), func(t chat.Tally, _ int) ReactionView {
		return ReactionView{Emoji: t.Emoji, Count: t.Count, Mine: chat.DidReact(rs, actorID, t.Emoji)}
	})
}

func location(v Viewer) *time.Location {
	if v.Location == nil {
		return time.Local
	}
	return v.Location
}

package chat

import (
	"strings"
	"time"

	"github.com/samber/lo"
)

type MessageID string

type DeliveryStatus string

const (
	StatusSending DeliveryStatus = "sending"
	StatusSent    DeliveryStatus = "sent"
	StatusRead    DeliveryStatus = "read"
)

type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentRaw   AttachmentType = "raw"
)

type Attachment struct {
	Type AttachmentType `json:"type" validate:"required,oneof=image raw"`
	URL  string         `json:"url" validate:"required,http_url"`
}

// ReplySnapshot is a copy of the replied-to message taken when the reply was written.
// Later edits or deletion of the original never reach it.
type ReplySnapshot struct {
	ID         MessageID `json:"id"`
	Content    *string   `json:"content,omitempty"`
	SenderID   string    `json:"senderId"`
	SenderRole Role      `json:"senderRole"`
	Deleted    bool      `json:"deleted"`
}

type Reaction struct {
	ReactorID   string    `json:"reactorId"`
	ReactorRole Role      `json:"reactorRole"`
	Emoji       string    `json:"emoji"`
	At          time.Time `json:"at"`
}

type Message struct {
	ID         MessageID      `json:"id"`
	ClientID   MessageID      `json:"clientId,omitempty"`
	RoomID     RoomID         `json:"roomId"`
	Content    *string        `json:"content,omitempty"`
	SenderID   string         `json:"senderId"`
	SenderRole Role           `json:"senderRole"`
	SentAt     time.Time      `json:"sentAt"`
	Status     DeliveryStatus `json:"status"`
	Read       bool           `json:"read"`
	Edited     bool           `json:"edited"`
	Deleted    bool           `json:"deleted"`
	Pinned     bool           `json:"isPinned"`
	Starred    bool           `json:"isStarred"`
	Attachment *Attachment    `json:"attachment,omitempty"`
	ReplyTo    *ReplySnapshot `json:"replyTo,omitempty"`
	Reactions  []Reaction     `json:"reactions"`
}

// Text is the content a reader may see. A deleted message never exposes its content.
func (m Message) Text() string {
	if m.Deleted || m.Content == nil {
		return ""
	}
	return *m.Content
}

func (m Message) HasAttachment() bool {
	return m.Attachment != nil && m.Attachment.URL != ""
}

// Snapshot captures the fields a reply keeps about this message.
func (m Message) Snapshot() ReplySnapshot {
	s := ReplySnapshot{
		ID:         m.ID,
		SenderID:   m.SenderID,
		SenderRole: m.SenderRole,
		Deleted:    m.Deleted,
	}
	if !m.Deleted && m.Content != nil {
		s.Content = lo.ToPtr(*m.Content)
	}
	return s
}

// Tombstone marks the message deleted and drops what a reader would see.
// Reactions and the message's own reply snapshot are kept.
func (m Message) Tombstone() Message {
	m.Deleted = true
	m.Content = nil
	m.Attachment = nil
	return m
}

// Masked returns the message as it may leave the store: deleted messages carry no content.
func (m Message) Masked() Message {
	if m.Deleted {
		m.Content = nil
		m.Attachment = nil
	}
	return m
}

// Clone returns a copy that shares no pointers or slices with m.
func (m Message) Clone() Message {
	if m.Content != nil {
		m.Content = lo.ToPtr(*m.Content)
	}
	if m.Attachment != nil {
		a := *m.Attachment
		m.Attachment = &a
	}
	if m.ReplyTo != nil {
		r := *m.ReplyTo
		if r.Content != nil {
			r.Content = lo.ToPtr(*r.Content)
		}
		m.ReplyTo = &r
	}
	m.Reactions = append([]Reaction(nil), m.Reactions...)
	return m
}

// Blank reports whether s has nothing but whitespace.
func Blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

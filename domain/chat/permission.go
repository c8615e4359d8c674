package chat

import (
	"time"

	"support-chat/errors"
)

// EditWindow is how long after sending the author may still edit a message.
const EditWindow = 15 * time.Minute

// CheckEdit returns nil when actor may edit m at now.
func CheckEdit(m Message, actor Actor, now time.Time) error {
	if m.SenderID != actor.ID {
		return errors.ErrNotAuthor
	}
	if m.Deleted {
		return errors.ErrMessageDeleted
	}
	if now.Sub(m.SentAt) >= EditWindow {
		return errors.ErrEditWindowExpired
	}
	return nil
}

// CanEdit gates the edit affordance with the same rules CheckEdit enforces.
func CanEdit(m Message, actor Actor, now time.Time) bool {
	return CheckEdit(m, actor, now) == nil
}

func CheckDelete(m Message, actor Actor) error {
	if m.SenderID != actor.ID {
		return errors.ErrNotAuthor
	}
	return nil
}

func CanDelete(m Message, actor Actor) bool {
	return CheckDelete(m, actor) == nil
}

// CheckPin allows any participant of the room, authorship plays no part.
func CheckPin(room Room, actor Actor) error {
	if !room.HasParticipant(actor) {
		return errors.ErrNotParticipant
	}
	return nil
}

func CanPin(room Room, actor Actor) bool {
	return CheckPin(room, actor) == nil
}

func CheckReact(m Message, emoji string) error {
	if !ValidEmoji(emoji) {
		return errors.ErrUnknownEmoji
	}
	if m.Deleted {
		return errors.ErrMessageDeleted
	}
	return nil
}

func CanReact(m Message) bool {
	return !m.Deleted
}

package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"support-chat/contract"
	"support-chat/domain/chat"
	"support-chat/errors"

	"github.com/samber/lo"
)

// MessageStore owns the message collection of one room. Sends are optimistic: the message
// is staged in the sending status before the round trip and removed again on failure.
// Every other mutation is checked locally, sent to the gateway and applied only once the
// gateway answered, so a failed call leaves the collection untouched.
type MessageStore struct {
	mu       sync.RWMutex
	room     chat.Room
	gateway  contract.IChatGateway
	log      *slog.Logger
	now      func() time.Time
	messages []chat.Message
	loaded   bool
}

func NewMessageStore(room chat.Room, gateway contract.IChatGateway, log *slog.Logger) *MessageStore {
	return &MessageStore{
		room:    room,
		gateway: gateway,
		log:     log.With("room", room.ID),
		now:     time.Now,
	}
}

// WithClock replaces the time source used for staging and edit-window checks.
func (s *MessageStore) WithClock(now func() time.Time) *MessageStore {
	s.now = now
	return s
}

func (s *MessageStore) Room() chat.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room
}

// Load replaces the collection with what the supplier returned. Messages still being sent
// are kept at the end unless the supplier already holds them under their client id.
func (s *MessageStore) Load(messages []chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acknowledged := lo.SliceToMap(messages, func(m chat.Message) (chat.MessageID, bool) {
		return m.ClientID, true
	})
	pending := lo.Filter(s.messages, func(m chat.Message, _ int) bool {
		return m.Status == chat.StatusSending && !acknowledged[m.ID]
	})
	loaded := lo.Map(messages, func(m chat.Message, _ int) chat.Message {
		return m.Masked().Clone()
	})
	s.messages = append(loaded, pending...)
	s.loaded = true
}

func (s *MessageStore) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Snapshot returns a copy the caller may read without holding any lock.
func (s *MessageStore) Snapshot() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Map(s.messages, func(m chat.Message, _ int) chat.Message {
		return m.Clone()
	})
}

func (s *MessageStore) Message(id chat.MessageID) (chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, _, err := s.find(id)
	return m.Clone(), err
}

func (s *MessageStore) UnreadCount(viewer chat.Role) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return chat.UnreadCount(s.messages, viewer)
}

func (s *MessageStore) Pinned() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pinned := lo.Filter(s.messages, func(m chat.Message, _ int) bool {
		return m.Pinned && !m.Deleted
	})
	return lo.Map(pinned, func(m chat.Message, _ int) chat.Message { return m.Clone() })
}

func (s *MessageStore) Tallies(id chat.MessageID) (chat.Tallies, error) {
	m, err := s.Message(id)
	if err != nil {
		return nil, err
	}
	return chat.Aggregate(m.Reactions), nil
}

// Send stages the message and delivers it in one call.
func (s *MessageStore) Send(ctx context.Context, cmd chat.SendCommand) (chat.Message, error) {
	if _, err := s.Stage(cmd); err != nil {
		return chat.Message{}, err
	}
	return s.Deliver(ctx, cmd)
}

// Stage validates the command and appends the message in the sending status under its
// client id. Nothing reaches the network.
func (s *MessageStore) Stage(cmd chat.SendCommand) (chat.Message, error) {
	if err := cmd.Validate(); err != nil {
		return chat.Message{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, _, err := s.find(cmd.ClientID); err == nil {
		return chat.Message{}, fmt.Errorf("%w: client id %s already staged", errors.ErrValidation, cmd.ClientID)
	}
	staged := chat.Message{
		ID:         cmd.ClientID,
		ClientID:   cmd.ClientID,
		RoomID:     s.room.ID,
		SenderID:   cmd.Actor.ID,
		SenderRole: cmd.Actor.Role,
		SentAt:     s.now().UTC(),
		Status:     chat.StatusSending,
		Attachment: cmd.Attachment,
	}
	if !chat.Blank(cmd.Content) {
		staged.Content = lo.ToPtr(cmd.Content)
	}
	if cmd.ReplyTo != nil {
		target, _, err := s.find(*cmd.ReplyTo)
		if err != nil {
			return chat.Message{}, err
		}
		staged.ReplyTo = lo.ToPtr(target.Snapshot())
	}
	s.messages = append(s.messages, staged)
	return staged.Clone(), nil
}

// Deliver sends a staged message. On success the staged entry is replaced in place by the
// stored message; on failure it is removed and the error is returned so the caller can
// hand the draft back.
func (s *MessageStore) Deliver(ctx context.Context, cmd chat.SendCommand) (chat.Message, error) {
	stored, err := s.gateway.SendMessage(ctx, contract.SendRequest{
		ClientID:   cmd.ClientID,
		RoomID:     s.room.ID,
		Content:    cmd.Content,
		ReplyToID:  cmd.ReplyTo,
		Attachment: cmd.Attachment,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	_, idx, findErr := s.find(cmd.ClientID)
	if err != nil {
		if findErr == nil {
			s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
		}
		s.log.Error("Send failed, staged message withdrawn", "client_id", cmd.ClientID, "error", err)
		return chat.Message{}, errors.Transport(err)
	}

	if stored.Status == "" || stored.Status == chat.StatusSending {
		stored.Status = chat.StatusSent
	}
	stored = stored.Masked().Clone()
	if known, _, err := s.find(stored.ID); err == nil && stored.ID != cmd.ClientID {
		// A reload during the round trip already brought the stored copy.
		if findErr == nil {
			s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
		}
		s.log.Debug("Message sent, already loaded", "message", stored.ID, "client_id", cmd.ClientID)
		return known.Clone(), nil
	}
	if findErr != nil {
		s.messages = append(s.messages, stored)
	} else {
		s.messages[idx] = stored
	}
	s.log.Debug("Message sent", "message", stored.ID, "client_id", cmd.ClientID)
	return stored.Clone(), nil
}

func (s *MessageStore) Edit(ctx context.Context, cmd chat.EditCommand) (chat.Message, error) {
	if err := cmd.Validate(); err != nil {
		return chat.Message{}, err
	}
	current, err := s.Message(cmd.Message)
	if err != nil {
		return chat.Message{}, err
	}
	if err = chat.CheckEdit(current, cmd.Actor, s.now()); err != nil {
		s.log.Warn("Edit refused", "message", cmd.Message, "actor", cmd.Actor.ID, "error", err)
		return chat.Message{}, err
	}
	stored, err := s.gateway.EditMessage(ctx, cmd.Message, cmd.Content)
	if err != nil {
		return chat.Message{}, s.failed("edit", cmd.Message, err)
	}
	stored.Edited = true
	return s.apply(stored)
}

// Remove tombstones the message. Replies quoting it keep their cached content and only
// learn that their target is gone.
func (s *MessageStore) Remove(ctx context.Context, cmd chat.DeleteCommand) (chat.Message, error) {
	if err := cmd.Validate(); err != nil {
		return chat.Message{}, err
	}
	current, err := s.Message(cmd.Message)
	if err != nil {
		return chat.Message{}, err
	}
	if err = chat.CheckDelete(current, cmd.Actor); err != nil {
		s.log.Warn("Delete refused", "message", cmd.Message, "actor", cmd.Actor.ID, "error", err)
		return chat.Message{}, err
	}
	stored, err := s.gateway.DeleteMessage(ctx, cmd.Message)
	if err != nil {
		return chat.Message{}, s.failed("delete", cmd.Message, err)
	}
	removed, err := s.apply(stored.Tombstone())
	if err != nil {
		return chat.Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if reply := s.messages[i].ReplyTo; reply != nil && reply.ID == cmd.Message {
			reply.Deleted = true
		}
	}
	return removed, nil
}

func (s *MessageStore) SetPinned(ctx context.Context, cmd chat.PinCommand) (chat.Message, error) {
	if err := cmd.Validate(); err != nil {
		return chat.Message{}, err
	}
	if _, err := s.Message(cmd.Message); err != nil {
		return chat.Message{}, err
	}
	if err := chat.CheckPin(s.Room(), cmd.Actor); err != nil {
		s.log.Warn("Pin refused", "message", cmd.Message, "actor", cmd.Actor.ID, "error", err)
		return chat.Message{}, err
	}
	stored, err := s.gateway.SetPinned(ctx, cmd.Message, cmd.Pinned)
	if err != nil {
		return chat.Message{}, s.failed("pin", cmd.Message, err)
	}
	stored.Pinned = cmd.Pinned
	return s.apply(stored)
}

// React toggles the actor's emoji on the message. The gateway's answer is authoritative.
func (s *MessageStore) React(ctx context.Context, cmd chat.ReactCommand) (chat.Message, error) {
	if err := cmd.Validate(); err != nil {
		return chat.Message{}, err
	}
	current, err := s.Message(cmd.Message)
	if err != nil {
		return chat.Message{}, err
	}
	if err = chat.CheckReact(current, cmd.Emoji); err != nil {
		return chat.Message{}, err
	}
	stored, err := s.gateway.ToggleReaction(ctx, cmd.Message, cmd.Emoji)
	if err != nil {
		return chat.Message{}, s.failed("react", cmd.Message, err)
	}
	return s.apply(stored)
}

func (s *MessageStore) MarkRead(ctx context.Context, cmd chat.MarkReadCommand) (chat.Message, error) {
	if err := cmd.Validate(); err != nil {
		return chat.Message{}, err
	}
	current, err := s.Message(cmd.Message)
	if err != nil {
		return chat.Message{}, err
	}
	if current.SenderRole == cmd.Actor.Role {
		return chat.Message{}, errors.ErrOwnMessage
	}
	if current.Read {
		return current, nil
	}
	stored, err := s.gateway.MarkRead(ctx, cmd.Message)
	if err != nil {
		return chat.Message{}, s.failed("mark read", cmd.Message, err)
	}
	stored.Read = true
	stored.Status = chat.StatusRead
	return s.apply(stored)
}

// Execute runs any store command. It is the single entry point used by room workers.
func (s *MessageStore) Execute(ctx context.Context, cmd chat.Command) (chat.Message, error) {
	switch c := cmd.(type) {
	case chat.SendCommand:
		return s.Deliver(ctx, c)
	case chat.EditCommand:
		return s.Edit(ctx, c)
	case chat.DeleteCommand:
		return s.Remove(ctx, c)
	case chat.PinCommand:
		return s.SetPinned(ctx, c)
	case chat.ReactCommand:
		return s.React(ctx, c)
	case chat.MarkReadCommand:
		return s.MarkRead(ctx, c)
	default:
		return chat.Message{}, fmt.Errorf("%w: unsupported command %T", errors.ErrValidation, cmd)
	}
}

func (s *MessageStore) apply(stored chat.Message) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, idx, err := s.find(stored.ID)
	if err != nil {
		return chat.Message{}, err
	}
	stored = stored.Masked().Clone()
	s.messages[idx] = stored
	return stored.Clone(), nil
}

func (s *MessageStore) failed(op string, id chat.MessageID, err error) error {
	s.log.Error("Mutation failed, store unchanged", "op", op, "message", id, "error", err)
	return errors.Transport(err)
}

// find must be called with the lock held.
func (s *MessageStore) find(id chat.MessageID) (chat.Message, int, error) {
	_, idx, ok := lo.FindIndexOf(s.messages, func(m chat.Message) bool { return m.ID == id })
	if !ok {
		return chat.Message{}, -1, fmt.Errorf("%w %s", errors.ErrMessageNotFound, id)
	}
	return s.messages[idx], idx, nil
}

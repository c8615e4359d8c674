package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"support-chat/contract"
	"support-chat/domain/attachment"
	"support-chat/domain/chat"
	"support-chat/errors"
	"support-chat/moderation"
	"support-chat/repositories"
	"support-chat/search"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type BackendConfig struct {
	// UploadDir receives uploaded files under their stored name.
	UploadDir string
	// PublicURL prefixes stored names in attachment urls, e.g. "http://localhost:8080/v1/files".
	PublicURL string
	Policy    attachment.Policy
	Now       func() time.Time
}

// Backend is the authoritative owner of rooms and messages. Every rule the chat core checks
// locally is checked again here with the same predicates.
type Backend struct {
	rooms     repositories.IRoomRepository
	messages  repositories.IMessageRepository
	index     search.IIndex
	moderator *moderation.Moderator
	cfg       BackendConfig
	log       *slog.Logger
}

func NewBackend(rooms repositories.IRoomRepository, messages repositories.IMessageRepository,
	index search.IIndex, moderator *moderation.Moderator, cfg BackendConfig, log *slog.Logger) *Backend {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Policy.MaxBytes == 0 && len(cfg.Policy.Accepted) == 0 {
		cfg.Policy = attachment.DefaultPolicy()
	}
	return &Backend{
		rooms:     rooms,
		messages:  messages,
		index:     index,
		moderator: moderator,
		cfg:       cfg,
		log:       log,
	}
}

// As binds the backend to an actor. The result is an in-process chat gateway.
func (b *Backend) As(actor chat.Actor) contract.IChatGateway {
	return boundGateway{backend: b, actor: actor}
}

// EnsureRFQRoom returns the buyer's room for the RFQ, creating it the first time.
func (b *Backend) EnsureRFQRoom(rfqID, buyerID, title string) (chat.Room, error) {
	return b.ensureRoom(chat.Room{
		Context:         chat.RFQContext(rfqID),
		CounterpartID:   buyerID,
		CounterpartRole: chat.RoleBuyer,
		Title:           title,
	})
}

// EnsureProductRoom returns the seller's room for the product, creating it the first time.
func (b *Backend) EnsureProductRoom(productID, sellerID, title string) (chat.Room, error) {
	return b.ensureRoom(chat.Room{
		Context:         chat.ProductContext(productID),
		CounterpartID:   sellerID,
		CounterpartRole: chat.RoleSeller,
		Title:           title,
	})
}

func (b *Backend) ensureRoom(room chat.Room) (chat.Room, error) {
	room.UpdatedAt = b.cfg.Now().UTC()
	stored, created, err := b.rooms.EnsureRoom(room)
	if err != nil {
		return chat.Room{}, err
	}
	if created {
		b.log.Info("Room opened", "room", stored.ID, "kind", stored.Context.Kind, "counterpart", stored.CounterpartID)
	}
	return stored, nil
}

// Rooms returns the rooms the actor takes part in that match scope.
func (b *Backend) Rooms(actor chat.Actor, scope contract.RoomScope) ([]chat.Room, error) {
	rooms, err := b.rooms.ListRooms()
	if err != nil {
		return nil, err
	}
	return lo.Filter(rooms, func(r chat.Room, _ int) bool {
		return r.HasParticipant(actor) && scope.Matches(r)
	}), nil
}

func (b *Backend) Messages(actor chat.Actor, roomID chat.RoomID) ([]chat.Message, error) {
	if _, err := b.room(actor, roomID); err != nil {
		return nil, err
	}
	stored, err := b.messages.ListMessages(roomID)
	if err != nil {
		return nil, err
	}
	return lo.Map(stored, func(m repositories.DiskMessage, _ int) chat.Message {
		return m.Masked()
	}), nil
}

// Send stores a new message. Sending twice with the same client id returns the first message.
func (b *Backend) Send(actor chat.Actor, req contract.SendRequest) (chat.Message, error) {
	room, err := b.room(actor, req.RoomID)
	if err != nil {
		return chat.Message{}, err
	}
	content := strings.TrimSpace(req.Content)
	if err = chat.CheckSendPayload(content, req.Attachment); err != nil {
		b.log.Warn("Send refused", "room", room.ID, "actor", actor.ID, "error", err)
		return chat.Message{}, err
	}
	if req.ClientID != "" {
		previous, found, err := b.messages.FindByClientID(room.ID, req.ClientID)
		if err != nil {
			return chat.Message{}, err
		}
		if found {
			b.log.Debug("Duplicate send ignored", "room", room.ID, "client_id", req.ClientID)
			return previous.Masked(), nil
		}
	}

	m := chat.Message{
		ID:         chat.MessageID(uuid.NewString()),
		ClientID:   req.ClientID,
		RoomID:     room.ID,
		SenderID:   actor.ID,
		SenderRole: actor.Role,
		SentAt:     b.cfg.Now().UTC(),
		Status:     chat.StatusSent,
		Attachment: req.Attachment,
	}
	if content != "" {
		m.Content = lo.ToPtr(b.moderate(content))
	}
	if req.ReplyToID != nil {
		target, err := b.messages.GetMessage(*req.ReplyToID)
		if err != nil {
			return chat.Message{}, err
		}
		if target.RoomID != room.ID {
			return chat.Message{}, fmt.Errorf("%w %s in room %s", errors.ErrMessageNotFound, target.ID, room.ID)
		}
		if target.Deleted {
			return chat.Message{}, errors.ErrMessageDeleted
		}
		m.ReplyTo = lo.ToPtr(target.Snapshot())
	}

	if err = b.messages.StoreMessage(repositories.DiskMessage{Message: m}); err != nil {
		return chat.Message{}, err
	}
	b.indexed(m)
	if err = b.rooms.Touch(room.ID, m.SentAt); err != nil {
		b.log.Warn("Unable to touch room", "room", room.ID, "error", err)
	}
	b.log.Debug("Message stored", "room", room.ID, "message", m.ID, "sender", actor.ID)
	return m, nil
}

func (b *Backend) Edit(actor chat.Actor, id chat.MessageID, content string) (chat.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return chat.Message{}, errors.ErrEmptyContent
	}
	updated, err := b.update(actor, id, func(m *repositories.DiskMessage, _ chat.Room) error {
		if err := chat.CheckEdit(m.Message, actor, b.cfg.Now()); err != nil {
			return err
		}
		m.Content = lo.ToPtr(b.moderate(content))
		m.Edited = true
		return nil
	})
	if err != nil {
		return chat.Message{}, err
	}
	b.indexed(updated)
	return updated, nil
}

// Delete tombstones the message. Content stays on disk but never leaves the backend again.
// Replies keep their snapshot, flagged deleted.
func (b *Backend) Delete(actor chat.Actor, id chat.MessageID) (chat.Message, error) {
	deleted, err := b.update(actor, id, func(m *repositories.DiskMessage, _ chat.Room) error {
		if err := chat.CheckDelete(m.Message, actor); err != nil {
			return err
		}
		m.Deleted = true
		return nil
	})
	if err != nil {
		return chat.Message{}, err
	}
	if err = b.index.Remove(id); err != nil {
		b.log.Warn("Unable to unindex message", "message", id, "error", err)
	}

	replies, err := b.messages.ListMessages(deleted.RoomID)
	if err != nil {
		return chat.Message{}, err
	}
	for _, reply := range replies {
		if reply.ReplyTo == nil || reply.ReplyTo.ID != id || reply.ReplyTo.Deleted {
			continue
		}
		_, err = b.messages.UpdateMessage(reply.ID, func(m *repositories.DiskMessage) error {
			m.ReplyTo.Deleted = true
			return nil
		})
		if err != nil {
			return chat.Message{}, err
		}
	}
	b.log.Info("Message deleted", "room", deleted.RoomID, "message", id, "actor", actor.ID)
	return deleted, nil
}

func (b *Backend) SetPinned(actor chat.Actor, id chat.MessageID, pinned bool) (chat.Message, error) {
	return b.update(actor, id, func(m *repositories.DiskMessage, room chat.Room) error {
		if err := chat.CheckPin(room, actor); err != nil {
			return err
		}
		m.Pinned = pinned
		return nil
	})
}

func (b *Backend) ToggleReaction(actor chat.Actor, id chat.MessageID, emoji string) (chat.Message, error) {
	return b.update(actor, id, func(m *repositories.DiskMessage, _ chat.Room) error {
		if err := chat.CheckReact(m.Message, emoji); err != nil {
			return err
		}
		m.Reactions, _ = chat.ToggleReaction(m.Reactions, chat.Reaction{
			ReactorID:   actor.ID,
			ReactorRole: actor.Role,
			Emoji:       emoji,
			At:          b.cfg.Now().UTC(),
		})
		return nil
	})
}

func (b *Backend) MarkRead(actor chat.Actor, id chat.MessageID) (chat.Message, error) {
	return b.update(actor, id, func(m *repositories.DiskMessage, _ chat.Room) error {
		if m.SenderRole == actor.Role {
			return errors.ErrOwnMessage
		}
		m.Read = true
		m.Status = chat.StatusRead
		return nil
	})
}

// Upload checks the file against the policy and writes it under a unique name.
func (b *Backend) Upload(actor chat.Actor, filename string, data []byte) (chat.Attachment, error) {
	inspection, err := b.cfg.Policy.Inspect(data)
	if err != nil {
		b.log.Warn("Upload rejected", "actor", actor.ID, "name", filename, "size", len(data))
		return chat.Attachment{}, err
	}
	name := attachment.StoredName(filename)
	if err = os.MkdirAll(b.cfg.UploadDir, 0o755); err != nil {
		return chat.Attachment{}, err
	}
	if err = os.WriteFile(filepath.Join(b.cfg.UploadDir, name), data, 0o644); err != nil {
		return chat.Attachment{}, err
	}
	b.log.Info("File uploaded", "actor", actor.ID, "name", name, "mime", inspection.MIME, "size", inspection.Size)
	return chat.Attachment{
		Type: inspection.Type,
		URL:  strings.TrimSuffix(b.cfg.PublicURL, "/") + "/" + name,
	}, nil
}

// Search returns the room's messages matching terms, best match first.
func (b *Backend) Search(ctx context.Context, actor chat.Actor, roomID chat.RoomID, terms string, limit int) ([]chat.Message, error) {
	if _, err := b.room(actor, roomID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = search.DefaultLimit
	}
	ids, err := b.index.Search(ctx, roomID, terms, limit)
	if err != nil {
		return nil, err
	}
	found := make([]chat.Message, 0, len(ids))
	for _, id := range ids {
		m, err := b.messages.GetMessage(id)
		if errors.Is(err, errors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !m.Deleted {
			found = append(found, m.Message)
		}
	}
	return found, nil
}

// update loads the message, checks the actor takes part in its room and applies mutate in
// one transaction. The result is masked.
func (b *Backend) update(actor chat.Actor, id chat.MessageID,
	mutate func(*repositories.DiskMessage, chat.Room) error) (chat.Message, error) {
	current, err := b.messages.GetMessage(id)
	if err != nil {
		return chat.Message{}, err
	}
	room, err := b.room(actor, current.RoomID)
	if err != nil {
		return chat.Message{}, err
	}
	updated, err := b.messages.UpdateMessage(id, func(m *repositories.DiskMessage) error {
		return mutate(m, room)
	})
	if err != nil {
		if errors.Is(err, errors.ErrForbidden) {
			b.log.Warn("Mutation refused", "message", id, "actor", actor.ID, "error", err)
		}
		return chat.Message{}, err
	}
	return updated.Masked(), nil
}

func (b *Backend) room(actor chat.Actor, id chat.RoomID) (chat.Room, error) {
	room, err := b.rooms.GetRoom(id)
	if err != nil {
		return chat.Room{}, err
	}
	if !room.HasParticipant(actor) {
		return chat.Room{}, errors.ErrNotParticipant
	}
	return room, nil
}

func (b *Backend) moderate(content string) string {
	if b.moderator == nil {
		return content
	}
	return b.moderator.Review(content).Content
}

func (b *Backend) indexed(m chat.Message) {
	if err := b.index.Put(m); err != nil {
		b.log.Warn("Unable to index message", "message", m.ID, "error", err)
	}
}

// boundGateway serves one actor's chat session straight from the backend.
type boundGateway struct {
	backend *Backend
	actor   chat.Actor
}

func (g boundGateway) FetchRooms(_ context.Context, scope contract.RoomScope) ([]chat.Room, error) {
	return g.backend.Rooms(g.actor, scope)
}

func (g boundGateway) FetchMessages(_ context.Context, roomID chat.RoomID) ([]chat.Message, error) {
	return g.backend.Messages(g.actor, roomID)
}

func (g boundGateway) SendMessage(_ context.Context, req contract.SendRequest) (chat.Message, error) {
	return g.backend.Send(g.actor, req)
}

func (g boundGateway) EditMessage(_ context.Context, id chat.MessageID, content string) (chat.Message, error) {
	return g.backend.Edit(g.actor, id, content)
}

func (g boundGateway) DeleteMessage(_ context.Context, id chat.MessageID) (chat.Message, error) {
	return g.backend.Delete(g.actor, id)
}

func (g boundGateway) SetPinned(_ context.Context, id chat.MessageID, pinned bool) (chat.Message, error) {
	return g.backend.SetPinned(g.actor, id, pinned)
}

func (g boundGateway) ToggleReaction(_ context.Context, id chat.MessageID, emoji string) (chat.Message, error) {
	return g.backend.ToggleReaction(g.actor, id, emoji)
}

func (g boundGateway) MarkRead(_ context.Context, id chat.MessageID) (chat.Message, error) {
	return g.backend.MarkRead(g.actor, id)
}

func (g boundGateway) UploadAttachment(_ context.Context, filename string, data []byte) (chat.Attachment, error) {
	return g.backend.Upload(g.actor, filename, data)
}

func (g boundGateway) SearchMessages(ctx context.Context, roomID chat.RoomID, query string, limit int) ([]chat.Message, error) {
	return g.backend.Search(ctx, g.actor, roomID, query, limit)
}

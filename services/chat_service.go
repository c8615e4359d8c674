package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"support-chat/contract"
	"support-chat/domain/attachment"
	"support-chat/domain/chat"
	"support-chat/errors"
	"support-chat/projection"
	"support-chat/runtime"
	"support-chat/runtime/workers"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const DefaultSearchLimit = 20

type Options struct {
	// CounterpartRole narrows the rooms an admin sees to buyers or sellers. Empty means all.
	CounterpartRole chat.Role
	Clock           projection.ClockStyle
	Location        *time.Location
	BufferSize      int
	Now             func() time.Time
}

// ChatService is the chat session of one actor: room list, the active room view, its
// composer and every message action the view offers.
type ChatService struct {
	mu           sync.Mutex
	actor        chat.Actor
	gateway      contract.IChatGateway
	registry     *runtime.RoomRegistry
	orchestrator *runtime.Orchestrator
	composers    map[chat.RoomID]*Composer
	opts         Options
	log          *slog.Logger
}

func NewChatService(actor chat.Actor, gateway contract.IChatGateway, log *slog.Logger, opts Options) *ChatService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	log = log.With("actor", actor.ID, "role", actor.Role)
	registry := runtime.NewRoomRegistry(gateway, log)
	orchestrator := runtime.NewOrchestrator(log, workers.NewSupervisor(log), gateway, registry, opts.BufferSize).
		WithClock(opts.Now)
	return &ChatService{
		actor:        actor,
		gateway:      gateway,
		registry:     registry,
		orchestrator: orchestrator,
		composers:    make(map[chat.RoomID]*Composer),
		opts:         opts,
		log:          log,
	}
}

func (s *ChatService) Start(ctx context.Context) { s.orchestrator.Start(ctx) }

// Stop waits for the commands still running in any room.
func (s *ChatService) Stop() { s.orchestrator.Stop() }

func (s *ChatService) Actor() chat.Actor { return s.actor }

// ListRooms refreshes the rooms of the given kind and returns them newest-updated first.
func (s *ChatService) ListRooms(ctx context.Context, kind chat.ContextKind) ([]chat.Room, error) {
	scope := contract.RoomScope{Kind: kind}
	if s.actor.Role == chat.RoleAdmin {
		scope.CounterpartRole = s.opts.CounterpartRole
	}
	if err := s.registry.Refresh(ctx, scope); err != nil {
		return nil, err
	}
	return lo.Filter(s.registry.ListRooms(kind), func(r chat.Room, _ int) bool {
		return scope.Matches(r)
	}), nil
}

// SelectRoom makes the room active, loading its messages the first time, and renders it.
func (s *ChatService) SelectRoom(ctx context.Context, id chat.RoomID) (projection.Timeline, error) {
	if _, err := s.registry.Select(id); err != nil {
		return projection.Timeline{}, err
	}
	if _, err := s.orchestrator.Open(ctx, id); err != nil {
		return projection.Timeline{}, err
	}
	return s.View(id)
}

func (s *ChatService) ActiveRoom() (chat.Room, bool) {
	return s.registry.Active()
}

// Refresh reloads the messages of an opened room from the supplier.
func (s *ChatService) Refresh(ctx context.Context, id chat.RoomID) (projection.Timeline, error) {
	if err := s.orchestrator.Reload(ctx, id); err != nil {
		return projection.Timeline{}, err
	}
	return s.View(id)
}

// View renders the current state of an opened room.
func (s *ChatService) View(id chat.RoomID) (projection.Timeline, error) {
	store, err := s.store(id)
	if err != nil {
		return projection.Timeline{}, err
	}
	return projection.NewTimeline(store.Room(), store.Snapshot(), s.viewer()), nil
}

func (s *ChatService) UnreadCount(id chat.RoomID) (int, error) {
	store, err := s.store(id)
	if err != nil {
		return 0, err
	}
	return store.UnreadCount(s.actor.Role), nil
}

// Composer returns the composer of the room, created on first use.
func (s *ChatService) Composer(id chat.RoomID) (*Composer, error) {
	if _, err := s.registry.Room(id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.composers[id]; ok {
		return c, nil
	}
	c := NewComposer(id, s.actor, s.orchestrator, s.log).WithClock(s.opts.Now)
	s.composers[id] = c
	return c, nil
}

// SendAttachment sends an uploaded file with an optional caption. The room's draft is not touched.
func (s *ChatService) SendAttachment(ctx context.Context, id chat.RoomID, a chat.Attachment,
	caption string, replyTo *chat.MessageID) (chat.Message, error) {
	return s.dispatch(ctx, chat.SendCommand{
		Room:       id,
		Actor:      s.actor,
		ClientID:   chat.MessageID(uuid.NewString()),
		Content:    strings.TrimSpace(caption),
		ReplyTo:    replyTo,
		Attachment: &a,
	})
}

func (s *ChatService) Delete(ctx context.Context, id chat.RoomID, message chat.MessageID) (chat.Message, error) {
	return s.dispatch(ctx, chat.DeleteCommand{Room: id, Actor: s.actor, Message: message})
}

func (s *ChatService) SetPinned(ctx context.Context, id chat.RoomID, message chat.MessageID, pinned bool) (chat.Message, error) {
	return s.dispatch(ctx, chat.PinCommand{Room: id, Actor: s.actor, Message: message, Pinned: pinned})
}

func (s *ChatService) React(ctx context.Context, id chat.RoomID, message chat.MessageID, emoji string) (chat.Message, error) {
	return s.dispatch(ctx, chat.ReactCommand{Room: id, Actor: s.actor, Message: message, Emoji: emoji})
}

func (s *ChatService) MarkRead(ctx context.Context, id chat.RoomID, message chat.MessageID) (chat.Message, error) {
	return s.dispatch(ctx, chat.MarkReadCommand{Room: id, Actor: s.actor, Message: message})
}

// MarkAllRead marks every unread counterpart message of the room and returns how many were
// marked. It stops at the first failure.
func (s *ChatService) MarkAllRead(ctx context.Context, id chat.RoomID) (int, error) {
	store, err := s.store(id)
	if err != nil {
		return 0, err
	}
	unread := lo.Filter(store.Snapshot(), func(m chat.Message, _ int) bool {
		return !m.Read && m.SenderRole != s.actor.Role && m.Status != chat.StatusSending
	})
	for i, m := range unread {
		if _, err = s.MarkRead(ctx, id, m.ID); err != nil {
			return i, err
		}
	}
	return len(unread), nil
}

// Search asks the supplier for messages of the room matching query.
func (s *ChatService) Search(ctx context.Context, id chat.RoomID, query string) ([]projection.Item, error) {
	room, err := s.registry.Room(id)
	if err != nil {
		return nil, err
	}
	if chat.Blank(query) {
		return nil, errors.ErrEmptyContent
	}
	found, err := s.gateway.SearchMessages(ctx, id, strings.TrimSpace(query), DefaultSearchLimit)
	if err != nil {
		return nil, errors.Transport(err)
	}
	return projection.Project(room, found, s.viewer()), nil
}

// Upload hands a file to the supplier. The returned attachment is meant for SendAttachment.
func (s *ChatService) Upload(ctx context.Context, filename string, data []byte) (chat.Attachment, error) {
	if len(data) == 0 {
		return chat.Attachment{}, errors.ErrMissingField
	}
	a, err := s.gateway.UploadAttachment(ctx, filename, data)
	if err != nil {
		return chat.Attachment{}, errors.Transport(err)
	}
	s.log.Debug("Attachment uploaded", "name", attachment.DisplayName(a.URL), "type", a.Type)
	return a, nil
}

func (s *ChatService) dispatch(ctx context.Context, cmd chat.Command) (chat.Message, error) {
	select {
	case res := <-s.orchestrator.Dispatch(cmd):
		return res.Message, res.Err
	case <-ctx.Done():
		return chat.Message{}, errors.Transport(ctx.Err())
	}
}

func (s *ChatService) store(id chat.RoomID) (*runtime.MessageStore, error) {
	store, ok := s.orchestrator.Store(id)
	if !ok {
		if _, err := s.registry.Room(id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w %s: not opened", errors.ErrRoomNotFound, id)
	}
	return store, nil
}

func (s *ChatService) viewer() projection.Viewer {
	return projection.Viewer{
		Actor:    s.actor,
		Now:      s.opts.Now(),
		Clock:    s.opts.Clock,
		Location: s.opts.Location,
	}
}

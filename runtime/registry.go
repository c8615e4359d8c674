package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"support-chat/contract"
	"support-chat/domain/chat"
	"support-chat/errors"

	"github.com/samber/lo"
)

// RoomRegistry holds the rooms visible to the acting identity and remembers which one is active.
type RoomRegistry struct {
	mu       sync.RWMutex
	supplier contract.IChatGateway
	log      *slog.Logger
	rooms    map[chat.RoomID]chat.Room
	active   chat.RoomID
}

func NewRoomRegistry(supplier contract.IChatGateway, log *slog.Logger) *RoomRegistry {
	return &RoomRegistry{
		supplier: supplier,
		log:      log,
		rooms:    make(map[chat.RoomID]chat.Room),
	}
}

// Refresh pulls the rooms matching scope from the supplier. Rooms already known keep their
// context; a supplier answer trying to change it is logged and skipped.
func (r *RoomRegistry) Refresh(ctx context.Context, scope contract.RoomScope) error {
	rooms, err := r.supplier.FetchRooms(ctx, scope)
	if err != nil {
		r.log.Error("Unable to fetch rooms", "kind", scope.Kind, "error", err)
		return errors.Transport(err)
	}
	for _, room := range rooms {
		if err = r.Upsert(room); err != nil {
			r.log.Warn("Room skipped", "room", room.ID, "error", err)
		}
	}
	r.log.Debug("Rooms refreshed", "kind", scope.Kind, "count", len(rooms))
	return nil
}

// Upsert adds or replaces a room. The context key of a known room cannot change.
func (r *RoomRegistry) Upsert(room chat.Room) error {
	if err := room.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if known, ok := r.rooms[room.ID]; ok && known.Context != room.Context {
		return fmt.Errorf("%w: room %s", errors.ErrRoomContextImmutable, room.ID)
	}
	r.rooms[room.ID] = room
	return nil
}

// Touch moves updatedAt forward when a message reaches the room. Older timestamps are ignored.
func (r *RoomRegistry) Touch(id chat.RoomID, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok || !at.After(room.UpdatedAt) {
		return
	}
	room.UpdatedAt = at
	r.rooms[id] = room
}

// ListRooms returns the rooms of the given kind, newest-updated first. An empty kind lists all.
func (r *RoomRegistry) ListRooms(kind chat.ContextKind) []chat.Room {
	r.mu.RLock()
	rooms := lo.Filter(lo.Values(r.rooms), func(room chat.Room, _ int) bool {
		return kind == "" || room.Context.Kind == kind
	})
	r.mu.RUnlock()

	slices.SortFunc(rooms, func(a, b chat.Room) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(string(a.ID), string(b.ID))
	})
	return rooms
}

func (r *RoomRegistry) Room(id chat.RoomID) (chat.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	if !ok {
		return chat.Room{}, fmt.Errorf("%w %s", errors.ErrRoomNotFound, id)
	}
	return room, nil
}

// Select marks the room active. Selecting the active room again changes nothing.
func (r *RoomRegistry) Select(id chat.RoomID) (chat.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return chat.Room{}, fmt.Errorf("%w %s", errors.ErrRoomNotFound, id)
	}
	r.active = id
	return room, nil
}

func (r *RoomRegistry) Active() (chat.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[r.active]
	return room, ok
}

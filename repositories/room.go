//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"support-chat/domain/chat"
	"support-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

type IRoomRepository interface {
	EnsureRoom(room chat.Room) (chat.Room, bool, error)
	GetRoom(id chat.RoomID) (chat.Room, error)
	ListRooms() ([]chat.Room, error)
	Touch(id chat.RoomID, at time.Time) error
}

type RoomRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewRoomRepository(db *badger.DB, log *slog.Logger) RoomRepository {
	return RoomRepository{db: db, log: log}
}

func roomKey(id chat.RoomID) []byte {
	return []byte(fmt.Sprintf("room:%s", id))
}

// contextKey indexes a room by the business object and counterpart it was opened for, so that
// asking twice for the same conversation yields the same room.
func contextKey(room chat.Room) []byte {
	return []byte(fmt.Sprintf("roomctx:%s:%s:%s", room.Context.Kind, room.Context.Key(), room.CounterpartID))
}

// EnsureRoom stores the room unless one already exists for the same context key and
// counterpart. The stored room is returned with created=false in that case.
func (r RoomRepository) EnsureRoom(room chat.Room) (chat.Room, bool, error) {
	if room.ID == "" {
		room.ID = chat.RoomID(uuid.NewString())
	}
	if err := room.Validate(); err != nil {
		return chat.Room{}, false, err
	}

	var stored chat.Room
	created := false
	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(contextKey(room))
		switch {
		case err == nil:
			return item.Value(func(id []byte) error {
				var getErr error
				stored, getErr = getRoom(txn, chat.RoomID(id))
				return getErr
			})
		case err != badger.ErrKeyNotFound:
			return err
		}

		if _, err = txn.Get(roomKey(room.ID)); err == nil {
			return fmt.Errorf("%w: room %s", errors.ErrRoomContextImmutable, room.ID)
		}
		bytes, err := json.Marshal(room)
		if err != nil {
			return err
		}
		if err = txn.Set(roomKey(room.ID), bytes); err != nil {
			return err
		}
		stored, created = room, true
		return txn.Set(contextKey(room), []byte(room.ID))
	})
	if err != nil {
		return chat.Room{}, false, err
	}
	if created {
		r.log.Debug("Room created", "room", stored.ID, "kind", stored.Context.Kind, "key", stored.Context.Key())
	}
	return stored, created, nil
}

func (r RoomRepository) GetRoom(id chat.RoomID) (chat.Room, error) {
	var room chat.Room
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		room, err = getRoom(txn, id)
		return err
	})
	return room, err
}

// ListRooms returns every room, in key order.
func (r RoomRepository) ListRooms() ([]chat.Room, error) {
	var rooms []chat.Room
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("room:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var room chat.Room
				if err := json.Unmarshal(value, &room); err != nil {
					return err
				}
				rooms = append(rooms, room)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return rooms, err
}

// Touch moves updatedAt forward. Older timestamps are ignored.
func (r RoomRepository) Touch(id chat.RoomID, at time.Time) error {
	return r.db.Update(func(txn *badger.Txn) error {
		room, err := getRoom(txn, id)
		if err != nil {
			return err
		}
		if !at.After(room.UpdatedAt) {
			return nil
		}
		room.UpdatedAt = at.UTC()
		bytes, err := json.Marshal(room)
		if err != nil {
			return err
		}
		return txn.Set(roomKey(id), bytes)
	})
}

func getRoom(txn *badger.Txn, id chat.RoomID) (chat.Room, error) {
	item, err := txn.Get(roomKey(id))
	if err == badger.ErrKeyNotFound {
		return chat.Room{}, fmt.Errorf("%w %s", errors.ErrRoomNotFound, id)
	}
	if err != nil {
		return chat.Room{}, err
	}
	var room chat.Room
	err = item.Value(func(value []byte) error {
		return json.Unmarshal(value, &room)
	})
	return room, err
}

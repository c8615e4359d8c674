package repositories

import (
	"log/slog"
	"testing"
	"time"

	"support-chat/domain/chat"
	"support-chat/errors"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func rfqRoom(rfq, buyer string) chat.Room {
	return chat.Room{
		Context:         chat.RFQContext(rfq),
		CounterpartID:   buyer,
		CounterpartRole: chat.RoleBuyer,
		Title:           "Steel pipes",
		UpdatedAt:       testNow,
	}
}

func TestRoomRepository_EnsureRoomIsIdempotent(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(openDB(t), logs.GetLoggerFromLevel(slog.LevelDebug))

	// Given a room opened for rfq-1 and buyer-1
	first, created, err := repo.EnsureRoom(rfqRoom("rfq-1", "buyer-1"))
	req.NoError(err)
	req.True(created)
	req.NotEmpty(first.ID)

	// When asking again for the same conversation
	again, created, err := repo.EnsureRoom(rfqRoom("rfq-1", "buyer-1"))

	// Then the same room comes back
	req.NoError(err)
	req.False(created)
	req.Equal(first.ID, again.ID)

	// While another buyer on the same RFQ gets its own room
	other, created, err := repo.EnsureRoom(rfqRoom("rfq-1", "buyer-2"))
	req.NoError(err)
	req.True(created)
	req.NotEqual(first.ID, other.ID)

	rooms, err := repo.ListRooms()
	req.NoError(err)
	req.Len(rooms, 2)
}

func TestRoomRepository_EnsureRoomRejectsInvalidContext(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(openDB(t), logs.GetLoggerFromLevel(slog.LevelDebug))
	room := rfqRoom("rfq-1", "buyer-1")
	room.Context.ProductID = "prd-1"

	_, _, err := repo.EnsureRoom(room)

	req.ErrorIs(err, errors.ErrInvalidRoomContext)
}

func TestRoomRepository_ReusedIDWithOtherContext(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(openDB(t), logs.GetLoggerFromLevel(slog.LevelDebug))
	room := rfqRoom("rfq-1", "buyer-1")
	room.ID = "r1"
	_, _, err := repo.EnsureRoom(room)
	req.NoError(err)

	room.Context = chat.RFQContext("rfq-2")
	_, _, err = repo.EnsureRoom(room)

	req.ErrorIs(err, errors.ErrRoomContextImmutable)
}

func TestRoomRepository_Touch(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(openDB(t), logs.GetLoggerFromLevel(slog.LevelDebug))
	room, _, err := repo.EnsureRoom(rfqRoom("rfq-1", "buyer-1"))
	req.NoError(err)

	req.NoError(repo.Touch(room.ID, testNow.Add(time.Minute)))
	req.NoError(repo.Touch(room.ID, testNow.Add(-time.Hour)))

	got, err := repo.GetRoom(room.ID)
	req.NoError(err)
	req.True(testNow.Add(time.Minute).Equal(got.UpdatedAt))

	req.ErrorIs(repo.Touch("ghost", testNow), errors.ErrRoomNotFound)
}

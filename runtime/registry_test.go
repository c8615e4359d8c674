package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"support-chat/contract"
	"support-chat/domain/chat"
	"support-chat/errors"
	"support-chat/mocks"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestRegistry(t *testing.T) (*RoomRegistry, *mocks.MockIChatGateway) {
	ctrl := gomock.NewController(t)
	supplier := mocks.NewMockIChatGateway(ctrl)
	return NewRoomRegistry(supplier, logs.GetLoggerFromLevel(slog.LevelDebug)), supplier
}

func rfqRoom(id chat.RoomID, updatedAt time.Time) chat.Room {
	return chat.Room{
		ID:              id,
		Context:         chat.RFQContext("rfq-" + string(id)),
		CounterpartID:   "buyer-1",
		CounterpartRole: chat.RoleBuyer,
		Title:           "Quote " + string(id),
		UpdatedAt:       updatedAt,
	}
}

func TestRoomRegistry_ListRooms_NewestFirst(t *testing.T) {
	req := require.New(t)
	registry, supplier := newTestRegistry(t)

	product := chat.Room{
		ID: "p1", Context: chat.ProductContext("prod-1"), CounterpartID: "seller-1",
		CounterpartRole: chat.RoleSeller, UpdatedAt: testNow,
	}
	// Given the supplier knows rooms of both kinds, two of them updated at the same time
	supplier.EXPECT().
		FetchRooms(gomock.Any(), contract.RoomScope{}).
		Return([]chat.Room{
			rfqRoom("r1", testNow.Add(-time.Hour)),
			rfqRoom("r3", testNow),
			rfqRoom("r2", testNow),
			product,
		}, nil).
		Times(1)

	// When the registry refreshes
	req.NoError(registry.Refresh(context.Background(), contract.RoomScope{}))

	// Then rfq rooms come newest first, ties ordered by id
	ids := lo.Map(registry.ListRooms(chat.ContextRFQ), func(r chat.Room, _ int) chat.RoomID { return r.ID })
	req.Equal([]chat.RoomID{"r2", "r3", "r1"}, ids)

	// And product rooms are listed apart
	req.Len(registry.ListRooms(chat.ContextProduct), 1)
	req.Len(registry.ListRooms(""), 4)
}

func TestRoomRegistry_Refresh_TransportError(t *testing.T) {
	req := require.New(t)
	registry, supplier := newTestRegistry(t)
	supplier.EXPECT().FetchRooms(gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("timeout")).Times(1)

	err := registry.Refresh(context.Background(), contract.RoomScope{Kind: chat.ContextRFQ})

	req.ErrorIs(err, errors.ErrTransport)
	req.Empty(registry.ListRooms(""))
}

func TestRoomRegistry_Upsert_ContextIsImmutable(t *testing.T) {
	req := require.New(t)
	registry, _ := newTestRegistry(t)
	room := rfqRoom("r1", testNow)
	req.NoError(registry.Upsert(room))

	// When the same room comes back with another rfq id
	changed := room
	changed.Context = chat.RFQContext("rfq-other")
	err := registry.Upsert(changed)

	// Then it is refused and the original kept
	req.ErrorIs(err, errors.ErrRoomContextImmutable)
	kept, err := registry.Room("r1")
	req.NoError(err)
	req.Equal(room.Context, kept.Context)

	// And a title change is accepted
	renamed := room
	renamed.Title = "Renamed"
	req.NoError(registry.Upsert(renamed))
}

func TestRoomRegistry_Upsert_RejectsInvalidContext(t *testing.T) {
	req := require.New(t)
	registry, _ := newTestRegistry(t)
	room := rfqRoom("r1", testNow)
	room.Context.ProductID = "prod-1"

	req.ErrorIs(registry.Upsert(room), errors.ErrInvalidRoomContext)
}

func TestRoomRegistry_Select(t *testing.T) {
	req := require.New(t)
	registry, _ := newTestRegistry(t)
	req.NoError(registry.Upsert(rfqRoom("r1", testNow)))

	_, ok := registry.Active()
	req.False(ok)

	// When selecting twice
	first, err := registry.Select("r1")
	req.NoError(err)
	second, err := registry.Select("r1")
	req.NoError(err)

	// Then it is idempotent
	req.Equal(first, second)
	active, ok := registry.Active()
	req.True(ok)
	req.Equal(chat.RoomID("r1"), active.ID)

	// And an unknown room is not found, the active room unchanged
	_, err = registry.Select("ghost")
	req.ErrorIs(err, errors.ErrRoomNotFound)
	active, _ = registry.Active()
	req.Equal(chat.RoomID("r1"), active.ID)
}

func TestRoomRegistry_Touch(t *testing.T) {
	req := require.New(t)
	registry, _ := newTestRegistry(t)
	req.NoError(registry.Upsert(rfqRoom("r1", testNow.Add(-time.Hour))))
	req.NoError(registry.Upsert(rfqRoom("r2", testNow.Add(-time.Minute))))

	// When r1 receives a message
	registry.Touch("r1", testNow)
	// And an older timestamp arrives late
	registry.Touch("r1", testNow.Add(-2*time.Hour))

	// Then r1 moves to the top
	rooms := registry.ListRooms(chat.ContextRFQ)
	req.Equal(chat.RoomID("r1"), rooms[0].ID)
	req.Equal(testNow, rooms[0].UpdatedAt)
}

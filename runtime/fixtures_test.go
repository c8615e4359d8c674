package runtime

import (
	"log/slog"
	"testing"
	"time"

	"support-chat/domain/chat"
	"support-chat/mocks"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"go.uber.org/mock/gomock"
)

var (
	testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	buyer   = chat.Actor{ID: "buyer-1", Role: chat.RoleBuyer}
	admin   = chat.Actor{ID: "admin-1", Role: chat.RoleAdmin}
)

func testRoom() chat.Room {
	return chat.Room{
		ID:              "room-1",
		Context:         chat.RFQContext("rfq-1"),
		CounterpartID:   buyer.ID,
		CounterpartRole: chat.RoleBuyer,
		Title:           "Steel beams",
		UpdatedAt:       testNow.Add(-time.Hour),
	}
}

func message(id chat.MessageID, sender chat.Actor, content string, sentAt time.Time) chat.Message {
	return chat.Message{
		ID:         id,
		RoomID:     "room-1",
		Content:    lo.ToPtr(content),
		SenderID:   sender.ID,
		SenderRole: sender.Role,
		SentAt:     sentAt,
		Status:     chat.StatusSent,
	}
}

func newTestStore(t *testing.T, messages ...chat.Message) (*MessageStore, *mocks.MockIChatGateway) {
	ctrl := gomock.NewController(t)
	gateway := mocks.NewMockIChatGateway(ctrl)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := NewMessageStore(testRoom(), gateway, log).WithClock(func() time.Time { return testNow })
	store.Load(messages)
	return store, gateway
}

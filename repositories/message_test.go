package repositories

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"support-chat/domain/chat"
	"support-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func openDB(t *testing.T) *badger.DB {
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func diskMessage(id chat.MessageID, room chat.RoomID, content string, at time.Time) DiskMessage {
	return DiskMessage{Message: chat.Message{
		ID: id, RoomID: room, Content: lo.ToPtr(content), SenderID: "buyer-1",
		SenderRole: chat.RoleBuyer, SentAt: at, Status: chat.StatusSent,
	}}
}

func TestMessageRepository_StoreAndGet(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openDB(t), logs.GetLoggerFromLevel(slog.LevelDebug), nil)

	m := diskMessage("m1", "r1", "hello", testNow)
	m.ClientID = "tmp-1"
	m.ReplyTo = &chat.ReplySnapshot{ID: "m0", Content: lo.ToPtr("quoted"), SenderID: "admin-1", SenderRole: chat.RoleAdmin}
	req.NoError(repo.StoreMessage(m))

	got, err := repo.GetMessage("m1")
	req.NoError(err)
	req.Equal("hello", *got.Content)
	req.Equal(chat.MessageID("tmp-1"), got.ClientID)
	req.Equal("quoted", *got.ReplyTo.Content)
	req.True(testNow.Equal(got.SentAt))

	byClient, found, err := repo.FindByClientID("r1", "tmp-1")
	req.NoError(err)
	req.True(found)
	req.Equal(chat.MessageID("m1"), byClient.ID)

	_, found, err = repo.FindByClientID("r2", "tmp-1")
	req.NoError(err)
	req.False(found)
}

func TestMessageRepository_GetUnknown(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openDB(t), logs.GetLoggerFromLevel(slog.LevelDebug), nil)

	_, err := repo.GetMessage("ghost")

	req.ErrorIs(err, errors.ErrMessageNotFound)
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestMessageRepository_Update(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openDB(t), logs.GetLoggerFromLevel(slog.LevelDebug), nil)
	req.NoError(repo.StoreMessage(diskMessage("m1", "r1", "helo", testNow)))

	// When the mutation succeeds the change is persisted
	updated, err := repo.UpdateMessage("m1", func(m *DiskMessage) error {
		m.Content = lo.ToPtr("hello")
		m.Edited = true
		return nil
	})
	req.NoError(err)
	req.True(updated.Edited)

	// When it fails nothing is written
	_, err = repo.UpdateMessage("m1", func(m *DiskMessage) error {
		m.Content = lo.ToPtr("lost")
		return errors.ErrNotAuthor
	})
	req.ErrorIs(err, errors.ErrNotAuthor)

	got, err := repo.GetMessage("m1")
	req.NoError(err)
	req.Equal("hello", *got.Content)
	req.True(got.Edited)
}

func TestMessageRepository_GetMessages_Pagination(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openDB(t), logs.GetLoggerFromLevel(slog.LevelDebug), lo.ToPtr(2))

	for i := 0; i < 5; i++ {
		id := chat.MessageID(fmt.Sprintf("m%d", i))
		req.NoError(repo.StoreMessage(diskMessage(id, "r1", string(id), testNow.Add(time.Duration(i)*time.Second))))
	}
	req.NoError(repo.StoreMessage(diskMessage("other", "r2", "elsewhere", testNow)))

	// Given the newest page
	page, cursor, err := repo.GetMessages("r1", nil)
	req.NoError(err)
	req.Equal([]chat.MessageID{"m4", "m3"}, ids(page))

	// When resuming from the cursor
	page, cursor, err = repo.GetMessages("r1", cursor)
	req.NoError(err)
	req.Equal([]chat.MessageID{"m2", "m1"}, ids(page))

	page, _, err = repo.GetMessages("r1", cursor)
	req.NoError(err)
	req.Equal([]chat.MessageID{"m0"}, ids(page))

	// Then the whole room reads oldest first, across pages
	all, err := repo.ListMessages("r1")
	req.NoError(err)
	req.Equal([]chat.MessageID{"m0", "m1", "m2", "m3", "m4"}, ids(all))
}

func TestMessageRepository_ListEmptyRoom(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openDB(t), logs.GetLoggerFromLevel(slog.LevelDebug), lo.ToPtr(10))

	all, err := repo.ListMessages("empty")

	req.NoError(err)
	req.Empty(all)
}

func ids(messages []DiskMessage) []chat.MessageID {
	return lo.Map(messages, func(m DiskMessage, _ int) chat.MessageID { return m.ID })
}

package search

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"support-chat/domain/chat"
	"support-chat/errors"

	"github.com/blugelabs/bluge"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestIndex(t *testing.T) *Index {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	return NewIndex(writer, logs.GetLoggerFromLevel(slog.LevelDebug))
}

func message(id chat.MessageID, room chat.RoomID, content string) chat.Message {
	return chat.Message{ID: id, RoomID: room, Content: lo.ToPtr(content), SenderID: "buyer-1", SenderRole: chat.RoleBuyer, SentAt: testNow}
}

func TestIndex_SearchIsRoomScoped(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	index := newTestIndex(t)

	// Given the same words in two rooms
	req.NoError(index.Put(message("m1", "r1", "The invoice for March is attached")))
	req.NoError(index.Put(message("m2", "r1", "Delivery is planned next week")))
	req.NoError(index.Put(message("m3", "r2", "Invoice sent to accounting")))

	// When searching r1
	ids, err := index.Search(ctx, "r1", "INVOICE", 10)

	// Then only r1 matches come back, case-insensitively
	req.NoError(err)
	req.Equal([]chat.MessageID{"m1"}, ids)
}

func TestIndex_AllTermsMustMatch(t *testing.T) {
	req := require.New(t)
	index := newTestIndex(t)
	req.NoError(index.Put(message("m1", "r1", "invoice for march")))
	req.NoError(index.Put(message("m2", "r1", "invoice for april")))

	ids, err := index.Search(context.Background(), "r1", "invoice april", 10)

	req.NoError(err)
	req.Equal([]chat.MessageID{"m2"}, ids)
}

func TestIndex_EditAndDelete(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	index := newTestIndex(t)
	m := message("m1", "r1", "price is 40 per unit")
	req.NoError(index.Put(m))

	// When the message is edited the old words are gone
	m.Content = lo.ToPtr("price is 45 per unit")
	req.NoError(index.Put(m))
	ids, err := index.Search(ctx, "r1", "40", 10)
	req.NoError(err)
	req.Empty(ids)

	// When the message is deleted it no longer matches
	req.NoError(index.Put(m.Tombstone()))
	ids, err = index.Search(ctx, "r1", "price", 10)
	req.NoError(err)
	req.Empty(ids)
}

func TestIndex_BlankTerms(t *testing.T) {
	req := require.New(t)
	index := newTestIndex(t)

	_, err := index.Search(context.Background(), "r1", "  ", 10)

	req.ErrorIs(err, errors.ErrValidation)
}

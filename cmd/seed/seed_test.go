package main

import (
	"log/slog"
	"testing"

	"support-chat/contract"
	"support-chat/domain/chat"
	"support-chat/moderation"
	"support-chat/repositories"
	"support-chat/search"
	"support-chat/services"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T) *services.Backend {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	moderator, err := moderation.NewDefaultModerator(log)
	require.NoError(t, err)
	return services.NewBackend(
		repositories.NewRoomRepository(db, log),
		repositories.NewMessageRepository(db, log, lo.ToPtr(50)),
		search.NewIndex(writer, log),
		moderator,
		services.BackendConfig{UploadDir: t.TempDir(), PublicURL: "http://localhost:8080/v1/files"},
		log,
	)
}

func TestSeeder_Run(t *testing.T) {
	req := require.New(t)
	backend := newBackend(t)

	// When the store is seeded
	r, err := (&seeder{backend: backend, log: logs.GetLoggerFromLevel(slog.LevelDebug)}).run()

	// Then both conversations exist with their attachments
	req.NoError(err)
	req.Equal(report{Rooms: 2, Messages: 7}, r)

	rooms, err := backend.Rooms(admin, contract.RoomScope{})
	req.NoError(err)
	req.Len(rooms, 2)

	rfq := lo.Must(backend.EnsureRFQRoom("rfq-1001", buyer.ID, ""))
	messages, err := backend.Messages(buyer, rfq.ID)
	req.NoError(err)
	req.Len(messages, 4)
	req.Equal(chat.AttachmentRaw, messages[2].Attachment.Type)
	req.True(messages[3].Pinned)
	req.Len(messages[3].Reactions, 1)
	req.NotNil(messages[1].ReplyTo)

	product := lo.Must(backend.EnsureProductRoom("prod-42", seller.ID, ""))
	messages, err = backend.Messages(seller, product.ID)
	req.NoError(err)
	req.Len(messages, 3)
	req.Equal(chat.AttachmentImage, messages[1].Attachment.Type)
}

func TestSeeder_RunTwice(t *testing.T) {
	req := require.New(t)
	backend := newBackend(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	_, err := (&seeder{backend: backend, log: log}).run()
	req.NoError(err)

	r, err := (&seeder{backend: backend, log: log}).run()

	req.NoError(err)
	req.Equal(report{Rooms: 2, Skipped: 2}, r)
}

func TestDemoFiles(t *testing.T) {
	req := require.New(t)
	req.Equal("%PDF", string(datasheet("Title", "Body")[:4]))
	req.Equal("\x89PNG", string(swatch(4, 4)[:4]))
}

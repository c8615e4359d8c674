package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"support-chat/contract"
	"support-chat/domain/chat"
	"support-chat/errors"
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

var (
	admin = chat.Actor{ID: "admin-1", Role: chat.RoleAdmin}
	buyer = chat.Actor{ID: "buyer-1", Role: chat.RoleBuyer}
)

type shellFixture struct {
	shell   *Shell
	out     *bytes.Buffer
	backend *services.Backend
	room    chat.Room
}

func newShell(t *testing.T, actor chat.Actor) shellFixture {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	moderator, err := moderation.NewDefaultModerator(log)
	require.NoError(t, err)

	backend := services.NewBackend(
		repositories.NewRoomRepository(db, log),
		repositories.NewMessageRepository(db, log, lo.ToPtr(50)),
		search.NewIndex(writer, log),
		moderator,
		services.BackendConfig{UploadDir: t.TempDir(), PublicURL: "http://localhost:8080/v1/files"},
		log,
	)
	room, err := backend.EnsureRFQRoom("rfq-1", buyer.ID, "Steel pipes")
	require.NoError(t, err)

	svc := services.NewChatService(actor, backend.As(actor), log, services.Options{Location: time.UTC})
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)

	out := &bytes.Buffer{}
	return shellFixture{shell: NewShell(svc, out, false), out: out, backend: backend, room: room}
}

func contractSend(room chat.RoomID, content string) contract.SendRequest {
	return contract.SendRequest{RoomID: room, Content: content}
}

func (f shellFixture) exec(t *testing.T, line string) {
	quit, err := f.shell.Execute(context.Background(), line)
	require.NoError(t, err, line)
	require.False(t, quit)
}

func TestShell_OpenAndSend(t *testing.T) {
	req := require.New(t)
	f := newShell(t, buyer)

	// Given the room list
	f.exec(t, "/rooms")
	req.Contains(f.out.String(), "RFQ-")
	req.Contains(f.out.String(), "Steel pipes")

	// When the buyer opens the room and types a two line message
	f.exec(t, "/open 1")
	f.exec(t, `200 units\`)
	f.exec(t, "grade B")

	// Then the message is sent once with both lines
	messages, err := f.backend.Messages(buyer, f.room.ID)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("200 units\ngrade B", *messages[0].Content)
	req.Contains(f.out.String(), "BUYER buyer-1")
	req.Contains(f.out.String(), "sent")
}

func TestShell_MessageActions(t *testing.T) {
	req := require.New(t)
	f := newShell(t, buyer)
	f.exec(t, "/open "+string(f.room.ID))
	f.exec(t, "Which delivery date?")

	f.exec(t, "/reply 1")
	f.exec(t, "Friday works")
	f.exec(t, "/edit 2 Friday morning works")
	f.exec(t, "/pin 2")
	f.exec(t, "/react 2 👍")
	f.exec(t, "/delete 1")

	messages, err := f.backend.Messages(buyer, f.room.ID)
	req.NoError(err)
	req.Len(messages, 2)
	req.True(messages[0].Deleted)
	reply := messages[1]
	req.Equal("Friday morning works", *reply.Content)
	req.True(reply.Edited)
	req.True(reply.Pinned)
	req.Len(reply.Reactions, 1)
	req.True(reply.ReplyTo.Deleted)

	f.out.Reset()
	f.exec(t, "/pinned")
	req.Contains(f.out.String(), "Friday morning works (edited) [pinned]")
}

func TestShell_FindAndRead(t *testing.T) {
	req := require.New(t)
	f := newShell(t, admin)
	_, err := f.backend.As(buyer).SendMessage(context.Background(), contractSend(f.room.ID, "invoice for march"))
	req.NoError(err)
	_, err = f.backend.As(buyer).SendMessage(context.Background(), contractSend(f.room.ID, "delivery address"))
	req.NoError(err)

	f.exec(t, "/rooms rfq")
	f.exec(t, "/open 1")
	req.Contains(f.out.String(), "2 unread")

	f.out.Reset()
	f.exec(t, "/find invoice --limit 5")
	req.Contains(f.out.String(), "1 found")
	req.Contains(f.out.String(), "invoice for march")

	f.out.Reset()
	f.exec(t, "/read")
	req.Contains(f.out.String(), "2 marked as read")
}

func TestShell_Attach(t *testing.T) {
	req := require.New(t)
	f := newShell(t, buyer)
	path := filepath.Join(t.TempDir(), "datasheet.pdf")
	req.NoError(os.WriteFile(path, []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n"), 0o600))

	f.exec(t, "/open 1")
	f.exec(t, "/attach "+path)
	f.exec(t, "")

	messages, err := f.backend.Messages(buyer, f.room.ID)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal(chat.AttachmentRaw, messages[0].Attachment.Type)
	req.Contains(f.out.String(), "[datasheet.pdf]")
}

func TestShell_Errors(t *testing.T) {
	req := require.New(t)
	f := newShell(t, buyer)
	ctx := context.Background()

	_, err := f.shell.Execute(ctx, "hello")
	req.ErrorIs(err, errors.ErrValidation)

	_, err = f.shell.Execute(ctx, "/open 3")
	req.ErrorIs(err, errors.ErrRoomNotFound)

	f.exec(t, "/open "+string(f.room.ID))
	_, err = f.shell.Execute(ctx, "/delete 7")
	req.ErrorIs(err, errors.ErrMessageNotFound)

	_, err = f.shell.Execute(ctx, "/dance")
	req.ErrorIs(err, errors.ErrValidation)

	quit, err := f.shell.Execute(ctx, "/quit")
	req.NoError(err)
	req.True(quit)
}

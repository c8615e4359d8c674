//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"support-chat/domain/chat"
)

// RoomScope filters the rooms a supplier returns. An empty CounterpartRole means any.
type RoomScope struct {
	Kind            chat.ContextKind
	CounterpartRole chat.Role
}

func (s RoomScope) Matches(room chat.Room) bool {
	if s.Kind != "" && room.Context.Kind != s.Kind {
		return false
	}
	return s.CounterpartRole == "" || room.CounterpartRole == s.CounterpartRole
}

type SendRequest struct {
	ClientID   chat.MessageID   `json:"clientId"`
	RoomID     chat.RoomID      `json:"roomId"`
	Content    string           `json:"content"`
	ReplyToID  *chat.MessageID  `json:"replyToId,omitempty"`
	Attachment *chat.Attachment `json:"attachment,omitempty"`
}

// IChatGateway is the collaborator that owns durable room and message state.
// The acting identity is bound to the gateway (session cookie or in-process binding).
// Every method answers with the message as stored after the mutation.
type IChatGateway interface {
	FetchRooms(ctx context.Context, scope RoomScope) ([]chat.Room, error)
	FetchMessages(ctx context.Context, roomID chat.RoomID) ([]chat.Message, error)
	SendMessage(ctx context.Context, req SendRequest) (chat.Message, error)
	EditMessage(ctx context.Context, id chat.MessageID, content string) (chat.Message, error)
	DeleteMessage(ctx context.Context, id chat.MessageID) (chat.Message, error)
	SetPinned(ctx context.Context, id chat.MessageID, pinned bool) (chat.Message, error)
	ToggleReaction(ctx context.Context, id chat.MessageID, emoji string) (chat.Message, error)
	MarkRead(ctx context.Context, id chat.MessageID) (chat.Message, error)
	UploadAttachment(ctx context.Context, filename string, data []byte) (chat.Attachment, error)
	SearchMessages(ctx context.Context, roomID chat.RoomID, query string, limit int) ([]chat.Message, error)
}

// Result is the outcome of one dispatched command.
type Result struct {
	Message chat.Message
	Err     error
}

// IDispatcher applies commands to room stores in issuance order.
type IDispatcher interface {
	Dispatch(cmd chat.Command) <-chan Result
	Lookup(roomID chat.RoomID, id chat.MessageID) (chat.Message, error)
}

// IRoomStore executes one command against the messages of a room.
type IRoomStore interface {
	Execute(ctx context.Context, cmd chat.Command) (chat.Message, error)
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
	Wait()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

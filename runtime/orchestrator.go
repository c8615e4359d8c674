// Package runtime holds the mutable side of the chat client: the room registry, one message
// store per room and the orchestrator that routes commands to per-room workers.
// Business rules live in domain/chat; nothing here decides who may do what.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"support-chat/contract"
	"support-chat/domain/chat"
	"support-chat/errors"
	"support-chat/runtime/workers"
)

const DefaultBufferSize = 64

// lane is the store of one room together with the queue feeding its worker.
type lane struct {
	mu    sync.Mutex
	store *MessageStore
	jobs  chan workers.Job
}

// Orchestrator routes commands to the room they address. Commands of one room are applied in
// the order Dispatch was called; rooms progress independently of each other. Opening another
// room never cancels work queued for the previous one.
type Orchestrator struct {
	mu         sync.Mutex
	log        *slog.Logger
	supervisor contract.ISupervisor
	gateway    contract.IChatGateway
	registry   *RoomRegistry
	lanes      map[chat.RoomID]*lane
	bufferSize int
	now        func() time.Time
	ctx        context.Context
	stopped    bool
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor, gateway contract.IChatGateway,
	registry *RoomRegistry, bufferSize int) *Orchestrator {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Orchestrator{
		log:        log,
		supervisor: supervisor,
		gateway:    gateway,
		registry:   registry,
		lanes:      make(map[chat.RoomID]*lane),
		bufferSize: bufferSize,
		now:        time.Now,
	}
}

// WithClock sets the time source handed to every store created afterwards.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Start binds room workers to ctx. Rooms are opened lazily afterwards.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ctx = ctx
	o.stopped = false
	o.log.Info("Orchestrator started")
}

// Stop cancels every room worker and waits for the commands they were running.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	o.stopped = true
	o.mu.Unlock()

	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
	o.supervisor.Wait()
	o.log.Debug("All room workers stopped")
}

// Open returns the store of the room, loading its messages from the supplier the first time.
func (o *Orchestrator) Open(ctx context.Context, roomID chat.RoomID) (*MessageStore, error) {
	l, err := o.lane(roomID)
	if err != nil {
		return nil, err
	}
	if l.store.Loaded() {
		return l.store, nil
	}
	if err = o.reload(ctx, l.store); err != nil {
		return nil, err
	}
	return l.store, nil
}

// Reload fetches the messages of an opened room again.
func (o *Orchestrator) Reload(ctx context.Context, roomID chat.RoomID) error {
	l, err := o.lane(roomID)
	if err != nil {
		return err
	}
	return o.reload(ctx, l.store)
}

func (o *Orchestrator) reload(ctx context.Context, store *MessageStore) error {
	room := store.Room()
	messages, err := o.gateway.FetchMessages(ctx, room.ID)
	if err != nil {
		o.log.Error("Unable to load messages", "room", room.ID, "error", err)
		return errors.Transport(err)
	}
	store.Load(messages)
	if n := len(messages); n > 0 {
		o.registry.Touch(room.ID, messages[n-1].SentAt)
	}
	o.log.Debug("Messages loaded", "room", room.ID, "count", len(messages))
	return nil
}

// Dispatch queues cmd on its room and returns a channel receiving exactly one Result.
// A send is staged before it is queued so the message shows up at once; every rejection that
// needs no network call is reported on the returned channel right away.
func (o *Orchestrator) Dispatch(cmd chat.Command) <-chan contract.Result {
	l, err := o.lane(cmd.RoomID())
	if err != nil {
		return resolved(err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if send, ok := cmd.(chat.SendCommand); ok {
		if _, err = l.store.Stage(send); err != nil {
			return resolved(err)
		}
	}
	job := workers.NewJob(cmd)
	l.jobs <- job
	return job.Reply
}

// Lookup reads a message from an opened room.
func (o *Orchestrator) Lookup(roomID chat.RoomID, id chat.MessageID) (chat.Message, error) {
	o.mu.Lock()
	l, ok := o.lanes[roomID]
	o.mu.Unlock()
	if !ok {
		return chat.Message{}, fmt.Errorf("%w %s", errors.ErrRoomNotFound, roomID)
	}
	return l.store.Message(id)
}

// Store returns the store of an opened room.
func (o *Orchestrator) Store(roomID chat.RoomID) (*MessageStore, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.lanes[roomID]
	if !ok {
		return nil, false
	}
	return l.store, true
}

func (o *Orchestrator) lane(roomID chat.RoomID) (*lane, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctx == nil || o.stopped {
		return nil, errors.ErrNotRunning
	}
	if l, ok := o.lanes[roomID]; ok {
		return l, nil
	}
	room, err := o.registry.Room(roomID)
	if err != nil {
		return nil, err
	}

	l := &lane{
		store: NewMessageStore(room, o.gateway, o.log).WithClock(o.now),
		jobs:  make(chan workers.Job, o.bufferSize),
	}
	worker := workers.NewRoomWorker(roomID, l.store, l.jobs, o.log).OnApplied(o.applied)
	o.supervisor.Start(o.ctx, worker)
	o.lanes[roomID] = l
	o.log.Debug("Room worker started", "room", roomID)
	return l, nil
}

func (o *Orchestrator) applied(cmd chat.Command, msg chat.Message) {
	if _, ok := cmd.(chat.SendCommand); ok {
		o.registry.Touch(cmd.RoomID(), msg.SentAt)
	}
}

func resolved(err error) <-chan contract.Result {
	ch := make(chan contract.Result, 1)
	ch <- contract.Result{Err: err}
	close(ch)
	return ch
}

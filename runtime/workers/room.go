package workers

import (
	"context"
	"log/slog"

	"support-chat/contract"
	"support-chat/domain/chat"
	"support-chat/errors"
)

// Job carries one command to a room worker. Reply is buffered so the worker never blocks on it.
type Job struct {
	Command chat.Command
	Reply   chan contract.Result
}

func NewJob(cmd chat.Command) Job {
	return Job{Command: cmd, Reply: make(chan contract.Result, 1)}
}

// RoomWorker applies the commands of one room one at a time, in the order they were queued.
// A command already taken from the queue runs to completion even if the worker is stopped.
type RoomWorker struct {
	room    chat.RoomID
	store   contract.IRoomStore
	jobs    <-chan Job
	applied func(chat.Command, chat.Message)
	log     *slog.Logger
}

func NewRoomWorker(room chat.RoomID, store contract.IRoomStore, jobs <-chan Job, log *slog.Logger) *RoomWorker {
	return &RoomWorker{room: room, store: store, jobs: jobs, log: log.With("room", room)}
}

// OnApplied registers a callback run after every successful command.
func (w *RoomWorker) OnApplied(fn func(chat.Command, chat.Message)) *RoomWorker {
	w.applied = fn
	return w
}

func (w *RoomWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping room worker")
			return ctx.Err()
		case job, ok := <-w.jobs:
			if !ok {
				return nil
			}
			w.handle(context.WithoutCancel(ctx), job)
		}
	}
}

func (w *RoomWorker) handle(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			job.Reply <- contract.Result{Err: errors.ErrWorkerPanic}
			close(job.Reply)
			panic(r)
		}
	}()

	msg, err := w.store.Execute(ctx, job.Command)
	if err == nil && w.applied != nil {
		w.applied(job.Command, msg)
	}
	job.Reply <- contract.Result{Message: msg, Err: err}
	close(job.Reply)
}

package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"support-chat/domain/chat"
	"support-chat/errors"
	"support-chat/mocks"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var admin = chat.Actor{ID: "admin-1", Role: chat.RoleAdmin}

func TestSupervisor_RoomWorkerRestartsAfterPanic(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIRoomStore(ctrl)

	broken := chat.PinCommand{Room: "r1", Actor: admin, Message: "m1", Pinned: true}
	next := chat.MarkReadCommand{Room: "r1", Actor: admin, Message: "m2"}

	// Given a store that panics on the first command
	gomock.InOrder(
		store.EXPECT().Execute(gomock.Any(), broken).DoAndReturn(func(context.Context, chat.Command) (chat.Message, error) {
			panic("corrupted snapshot")
		}),
		store.EXPECT().Execute(gomock.Any(), next).Return(chat.Message{ID: "m2", Read: true}, nil),
	)

	jobs := make(chan Job, 2)
	sup := NewSupervisor(log)
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		sup.Wait()
	}()
	sup.Start(ctx, NewRoomWorker("r1", store, jobs, log))

	// When both commands are queued
	j1, j2 := NewJob(broken), NewJob(next)
	jobs <- j1
	jobs <- j2

	// Then the panic is reported to its caller and the restarted worker serves the next one
	req.ErrorIs((<-j1.Reply).Err, errors.ErrWorkerPanic)
	select {
	case r := <-j2.Reply:
		req.NoError(r.Err)
		req.True(r.Message.Read)
	case <-time.After(2 * time.Second):
		req.Fail("room worker was not restarted")
	}
}

func TestSupervisor_ClosedQueueFinishesWorker(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := mocks.NewMockIRoomStore(gomock.NewController(t))

	// Given a room whose queue is already closed
	jobs := make(chan Job)
	close(jobs)

	done := make(chan struct{})
	go func() {
		NewSupervisor(log).Add(NewRoomWorker("r1", store, jobs, log)).Run(context.Background())
		close(done)
	}()

	// Then the worker is not restarted and Run returns
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		req.Fail("supervisor should stop once the room worker finished")
	}
}

func TestSupervisor_StopReachesRoomsOpenedLater(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := mocks.NewMockIRoomStore(gomock.NewController(t))

	// Given two rooms opened one after the other
	sup := NewSupervisor(log)
	sup.Start(context.Background(), NewRoomWorker("r1", store, make(chan Job), log))
	sup.Start(context.Background(), NewRoomWorker("r2", store, make(chan Job), log))

	// When stopping
	sup.Stop()

	done := make(chan struct{})
	go func() {
		sup.Wait()
		close(done)
	}()

	// Then both room workers returned
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		req.Fail("Stop should reach every room worker")
	}
}

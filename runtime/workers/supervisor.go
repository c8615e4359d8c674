package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"support-chat/contract"
	"support-chat/errors"
)

const waitTimeBeforeRestart = 200 * time.Millisecond

// Supervisor runs each worker in its own goroutine and restarts it after a panic or an error.
// Workers registered with Add start on Run; room workers are started later with Start as
// rooms get opened. Everything stops when the context given to Run (or Start) is cancelled.
type Supervisor struct {
	mu      sync.Mutex
	root    context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	log     *slog.Logger
	workers []contract.Worker
}

func NewSupervisor(log *slog.Logger) *Supervisor {
	return &Supervisor{log: log}
}

// Run starts the registered workers and blocks until all supervised goroutines returned.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx := s.bind(ctx)
	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Start runs one worker under supervision. A panic is recovered and reported as
// ErrWorkerPanic; a worker returning an error is restarted after a short delay; a worker
// returning nil is considered finished and never restarted.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	ctx = s.bind(ctx)
	s.wg.Add(1)
	name := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()
		for {
			if ctx.Err() != nil {
				s.log.Debug("Stopping worker", "name", name)
				return
			}

			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						s.log.Error("Worker panicked", "name", name, "panic", r)
						err = errors.ErrWorkerPanic
					}
				}()
				return worker.Run(ctx)
			}()

			if err == nil {
				s.log.Debug("Worker finished", "name", name)
				return
			}
			if ctx.Err() != nil {
				s.log.Debug("Worker stopped (context canceled)", "name", name)
				return
			}

			s.log.Warn("Worker crashed, restarting", "name", name, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(waitTimeBeforeRestart):
			}
		}
	}()
}

// Stop cancels every supervised worker. Use Wait to block until they returned.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// bind ties ctx to the supervision root so that Stop reaches workers started before and
// after Run. The first context bound becomes the root.
func (s *Supervisor) bind(ctx context.Context) context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root == nil {
		s.root, s.cancel = context.WithCancel(ctx)
		return s.root
	}
	if ctx == s.root {
		return ctx
	}
	bound, cancel := context.WithCancel(ctx)
	context.AfterFunc(s.root, cancel)
	return bound
}

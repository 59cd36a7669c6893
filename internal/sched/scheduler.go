package sched

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler runs independent periodic tasks. Each task gets its own goroutine
// and ticker, so a slow or panicking task never starves the others. Stop is
// deterministic: it cancels the shared context and waits for every task loop
// to drain.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	names []string
}

func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{ctx: ctx, cancel: cancel}
}

// Every schedules fn to run once per interval until Stop. The first run
// happens after one interval, not immediately.
func (s *Scheduler) Every(name string, interval time.Duration, fn func(ctx context.Context)) {
	s.mu.Lock()
	s.names = append(s.names, name)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.runOne(name, fn)
			}
		}
	}()
	slog.Debug("task scheduled", "task", name, "interval", interval)
}

// runOne executes a single tick, containing panics so one bad run cannot take
// the task loop (or its siblings) down.
func (s *Scheduler) runOne(name string, fn func(ctx context.Context)) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("task panicked", "task", name, "panic", rec)
		}
	}()
	fn(s.ctx)
}

// Tasks returns the names of the scheduled tasks.
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.names...)
}

// Stop cancels all tasks and waits for their loops to exit.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

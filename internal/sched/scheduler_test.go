package sched

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTasksRunIndependently(t *testing.T) {
	s := New()
	defer s.Stop()

	var healthy atomic.Int32
	s.Every("panicky", 10*time.Millisecond, func(ctx context.Context) {
		panic("boom")
	})
	s.Every("healthy", 10*time.Millisecond, func(ctx context.Context) {
		healthy.Add(1)
	})

	time.Sleep(120 * time.Millisecond)
	assert.GreaterOrEqual(t, healthy.Load(), int32(3),
		"a panicking sibling must not starve other tasks")
	assert.ElementsMatch(t, []string{"panicky", "healthy"}, s.Tasks())
}

func TestPanickingTaskKeepsRunning(t *testing.T) {
	s := New()
	defer s.Stop()

	var runs atomic.Int32
	s.Every("recoverer", 10*time.Millisecond, func(ctx context.Context) {
		runs.Add(1)
		panic("every run panics")
	})

	time.Sleep(100 * time.Millisecond)
	assert.GreaterOrEqual(t, runs.Load(), int32(2),
		"a panic must not kill the task's own loop")
}

func TestStopIsDeterministic(t *testing.T) {
	s := New()
	var runs atomic.Int32
	s.Every("ticker", 5*time.Millisecond, func(ctx context.Context) {
		runs.Add(1)
	})

	time.Sleep(30 * time.Millisecond)
	s.Stop()
	after := runs.Load()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no runs may happen after Stop returns")
}

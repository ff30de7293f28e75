package infra

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsTasksInDueOrder(t *testing.T) {
	s := NewScheduler()

	var mu sync.Mutex
	var order []string
	record := func(name string) *Task {
		return NewTask(func(_, _ time.Time) (time.Time, bool) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return time.Time{}, false
		})
	}

	now := time.Now()
	s.Schedule(record("c"), now.Add(30*time.Millisecond))
	s.Schedule(record("a"), now)
	s.Schedule(record("b"), now.Add(15*time.Millisecond))
	assert.Equal(t, 3, s.Len())

	runScheduler(t, s)
	require.Eventually(t, func() bool { return s.Fired() == 3 }, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 0, s.Len())
}

func TestScheduler_RepeatingTask(t *testing.T) {
	s := NewScheduler()
	runScheduler(t, s)

	done := make(chan struct{})
	runs := 0
	task := NewTask(func(due, _ time.Time) (time.Time, bool) {
		runs++
		if runs == 3 {
			close(done)
			return time.Time{}, false
		}
		return due.Add(5 * time.Millisecond), true
	})
	s.Schedule(task, time.Now())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not repeat")
	}
	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, time.Millisecond)
}

func TestScheduler_RescheduleAndCancel(t *testing.T) {
	s := NewScheduler()
	task := NewTask(func(_, _ time.Time) (time.Time, bool) { return time.Time{}, false })

	s.Schedule(task, time.Now().Add(time.Hour))
	s.Schedule(task, time.Now().Add(2*time.Hour))
	assert.Equal(t, 1, s.Len(), "scheduling a queued task only moves it")

	assert.True(t, s.Cancel(task))
	assert.False(t, s.Cancel(task))
	assert.Equal(t, 0, s.Len())
}

func TestScheduler_EarlierTaskWakesRunLoop(t *testing.T) {
	s := NewScheduler()
	runScheduler(t, s)

	s.Schedule(NewTask(func(_, _ time.Time) (time.Time, bool) { return time.Time{}, false }), time.Now().Add(time.Hour))

	fired := make(chan struct{})
	s.Schedule(NewTask(func(_, _ time.Time) (time.Time, bool) {
		close(fired)
		return time.Time{}, false
	}), time.Now())

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("run loop kept sleeping on the later task")
	}
}

func TestScheduler_RecoversFromPanic(t *testing.T) {
	s := NewScheduler()
	runScheduler(t, s)

	s.Schedule(NewTask(func(_, _ time.Time) (time.Time, bool) { panic("boom") }), time.Now())

	ok := make(chan struct{})
	s.Schedule(NewTask(func(_, _ time.Time) (time.Time, bool) {
		close(ok)
		return time.Time{}, false
	}), time.Now().Add(5*time.Millisecond))

	select {
	case <-ok:
	case <-time.After(time.Second):
		t.Fatal("scheduler stopped after a panicking task")
	}
}

func TestScheduler_SingleRunLoop(t *testing.T) {
	s := NewScheduler()
	runScheduler(t, s)
	require.Eventually(t, func() bool { return s.running.Load() }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, s.Run(ctx))
}

package engine

import (
	"testing"
	"time"
)

func TestTaskSchedulerFiresAfterDelay(t *testing.T) {
	clock := newManualClock()
	tasks := newTaskScheduler(clock)

	fired := 0
	tasks.Schedule("test.task", 100*time.Millisecond, func() { fired++ })

	clock.Advance(50 * time.Millisecond)
	if fired != 0 {
		t.Fatalf("task fired %d times before its delay elapsed", fired)
	}
	if !tasks.Pending("test.task") {
		t.Fatalf("expected task to be pending before its delay elapsed")
	}

	clock.Advance(50 * time.Millisecond)
	if fired != 1 {
		t.Fatalf("expected task to fire once, fired %d times", fired)
	}
	if tasks.Pending("test.task") {
		t.Fatalf("expected task key to be released after firing")
	}
}

func TestTaskSchedulerReplacesPendingTask(t *testing.T) {
	clock := newManualClock()
	tasks := newTaskScheduler(clock)

	var fired []string
	tasks.Schedule("test.task", 100*time.Millisecond, func() { fired = append(fired, "first") })
	tasks.Schedule("test.task", 200*time.Millisecond, func() { fired = append(fired, "second") })

	clock.Advance(300 * time.Millisecond)
	if len(fired) != 1 || fired[0] != "second" {
		t.Fatalf("expected only the replacement task to fire, got %v", fired)
	}
}

func TestTaskSchedulerCancelPreventsFire(t *testing.T) {
	clock := newManualClock()
	tasks := newTaskScheduler(clock)

	fired := false
	tasks.Schedule("test.task", 100*time.Millisecond, func() { fired = true })
	tasks.Cancel("test.task")

	clock.Advance(time.Second)
	if fired {
		t.Fatalf("canceled task fired anyway")
	}
}

func TestTaskSchedulerCancelAll(t *testing.T) {
	clock := newManualClock()
	tasks := newTaskScheduler(clock)

	fired := 0
	tasks.Schedule("test.first", 100*time.Millisecond, func() { fired++ })
	tasks.Schedule("test.second", 100*time.Millisecond, func() { fired++ })
	tasks.CancelAll()

	clock.Advance(time.Second)
	if fired != 0 {
		t.Fatalf("expected no tasks to fire after CancelAll, %d fired", fired)
	}
	if tasks.Pending("test.first") || tasks.Pending("test.second") {
		t.Fatalf("expected no pending tasks after CancelAll")
	}
}

func TestLoopSchedulerDefersFiredTask(t *testing.T) {
	clock := newManualClock()
	var posted []func()
	tasks := &loopScheduler{
		inner: newTaskScheduler(clock),
		post:  func(fn func()) { posted = append(posted, fn) },
	}

	fired := false
	tasks.Schedule("test.task", 100*time.Millisecond, func() { fired = true })

	clock.Advance(200 * time.Millisecond)
	if fired {
		t.Fatalf("task body ran directly on the timer goroutine")
	}
	if len(posted) != 1 {
		t.Fatalf("expected 1 posted closure, got %d", len(posted))
	}

	posted[0]()
	if !fired {
		t.Fatalf("posted closure did not run the task body")
	}
}

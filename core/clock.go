package engine

import (
	"sync"
	"time"
)

// clock abstracts time so the debounce and retry machinery can be driven
// deterministically in tests.
type clock interface {
	Now() time.Time
	AfterFunc(delay time.Duration, fn func()) timerHandle
}

type timerHandle interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(delay time.Duration, fn func()) timerHandle {
	return time.AfterFunc(delay, fn)
}

// Timer task keys. Each key holds at most one pending task; scheduling again
// replaces the previous one.
const (
	taskSilenceDebounce = "vad.silence_debounce"
	taskCommitRetry     = "vad.commit_retry"
	taskResponseRetry   = "response.retry"
)

// scheduler is the cancelable-task surface the gate and the aggregator
// schedule against.
type scheduler interface {
	Schedule(key string, delay time.Duration, fn func())
	Cancel(key string)
	Pending(key string) bool
	CancelAll()
}

type taskScheduler struct {
	clock clock

	mu    sync.Mutex
	tasks map[string]*scheduledTask
}

type scheduledTask struct {
	handle timerHandle
}

func newTaskScheduler(clock clock) *taskScheduler {
	return &taskScheduler{clock: clock, tasks: map[string]*scheduledTask{}}
}

func (s *taskScheduler) Schedule(key string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if previous, ok := s.tasks[key]; ok {
		previous.handle.Stop()
	}

	task := &scheduledTask{}
	task.handle = s.clock.AfterFunc(delay, func() {
		s.mu.Lock()
		if current, ok := s.tasks[key]; !ok || current != task {
			s.mu.Unlock()
			return
		}
		delete(s.tasks, key)
		s.mu.Unlock()

		fn()
	})
	s.tasks[key] = task
}

func (s *taskScheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task, ok := s.tasks[key]; ok {
		task.handle.Stop()
		delete(s.tasks, key)
	}
}

func (s *taskScheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.tasks[key]
	return ok
}

func (s *taskScheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, task := range s.tasks {
		task.handle.Stop()
		delete(s.tasks, key)
	}
}

// loopScheduler defers fired task bodies onto the engine's control loop so
// timer goroutines never touch engine state directly.
type loopScheduler struct {
	inner *taskScheduler
	post  func(fn func())
}

func (s *loopScheduler) Schedule(key string, delay time.Duration, fn func()) {
	s.inner.Schedule(key, delay, func() { s.post(fn) })
}

func (s *loopScheduler) Cancel(key string)       { s.inner.Cancel(key) }
func (s *loopScheduler) Pending(key string) bool { return s.inner.Pending(key) }
func (s *loopScheduler) CancelAll()              { s.inner.CancelAll() }

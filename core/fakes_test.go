package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mzoric/voxjournal/core/realtime"
)

// manualClock is a deterministic time source. Advance moves time forward and
// fires every timer whose deadline passes, in deadline order.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock    *manualClock
	deadline time.Time
	fn       func()
	stopped  bool
	fired    bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(delay time.Duration, fn func()) timerHandle {
	c.mu.Lock()
	defer c.mu.Unlock()

	timer := &manualTimer{clock: c, deadline: c.now.Add(delay), fn: fn}
	c.timers = append(c.timers, timer)
	return timer
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func (c *manualClock) Advance(delta time.Duration) {
	c.mu.Lock()
	target := c.now.Add(delta)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *manualTimer
		for _, timer := range c.timers {
			if timer.fired || timer.stopped || timer.deadline.After(target) {
				continue
			}
			if next == nil || timer.deadline.Before(next.deadline) {
				next = timer
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		if next.deadline.After(c.now) {
			c.now = next.deadline
		}
		fn := next.fn
		c.mu.Unlock()

		fn()
	}
}

// fakeTransport records outbound messages and lets tests feed inbound
// events.
type fakeTransport struct {
	mu     sync.Mutex
	sent   []any
	events chan realtime.ServerEvent
	err    error
	closed bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan realtime.ServerEvent, 32)}
}

func (t *fakeTransport) Send(msg any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return realtime.ErrTransportClosed
	}
	t.sent = append(t.sent, msg)
	return nil
}

func (t *fakeTransport) Events() <-chan realtime.ServerEvent { return t.events }

func (t *fakeTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	close(t.events)
	return nil
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *fakeTransport) sentMessages() []any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]any(nil), t.sent...)
}

func (t *fakeTransport) countSent(match func(msg any) bool) int {
	count := 0
	for _, msg := range t.sentMessages() {
		if match(msg) {
			count++
		}
	}
	return count
}

// failTransport drops the connection with a fixed error once the test closes
// the events channel.
type failTransport struct {
	*fakeTransport
	dropErr error
}

func (t *failTransport) drop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.closed {
		t.closed = true
		t.err = t.dropErr
		close(t.events)
	}
}

type fakeAudioInput struct {
	mu      sync.Mutex
	onFrame func(frame []float32)
	started bool
	stopped bool

	startErr error
}

func (i *fakeAudioInput) StartCapture(_ context.Context, onFrame func(frame []float32)) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.startErr != nil {
		return i.startErr
	}
	i.onFrame = onFrame
	i.started = true
	return nil
}

func (i *fakeAudioInput) StopCapture() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stopped = true
	return nil
}

func (i *fakeAudioInput) emit(frame []float32) {
	i.mu.Lock()
	onFrame := i.onFrame
	i.mu.Unlock()

	if onFrame != nil {
		onFrame(frame)
	}
}

type playCall struct {
	samples int
	at      time.Time
}

type fakeAudioOutput struct {
	mu      sync.Mutex
	calls   []playCall
	cleared bool
	playErr error
}

func (o *fakeAudioOutput) PlayAt(frame []float32, at time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.playErr != nil {
		return o.playErr
	}
	o.calls = append(o.calls, playCall{samples: len(frame), at: at})
	return nil
}

func (o *fakeAudioOutput) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cleared = true
}

func (o *fakeAudioOutput) playCalls() []playCall {
	o.mu.Lock()
	defer o.mu.Unlock()

	calls := append([]playCall(nil), o.calls...)
	sort.Slice(calls, func(i, j int) bool { return calls[i].at.Before(calls[j].at) })
	return calls
}

type savedTranscript struct {
	sessionType string
	entries     []TranscriptEntry
}

type fakePersistence struct {
	mu      sync.Mutex
	saved   []savedTranscript
	saveErr error
}

func (p *fakePersistence) SaveTranscript(_ context.Context, sessionType string, entries []TranscriptEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.saveErr != nil {
		return p.saveErr
	}
	p.saved = append(p.saved, savedTranscript{sessionType: sessionType, entries: entries})
	return nil
}

func (p *fakePersistence) savedTranscripts() []savedTranscript {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]savedTranscript(nil), p.saved...)
}

func speechFrame(samples int) []float32 {
	frame := make([]float32, samples)
	for i := range frame {
		frame[i] = 0.5
	}
	return frame
}

func silenceFrame(samples int) []float32 {
	return make([]float32, samples)
}

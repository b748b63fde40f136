package engine

import (
	"strings"
	"time"

	"github.com/mzoric/voxjournal/core/realtime"
)

const defaultResponseRetryTimeout = 2 * time.Second

// pendingResponse tracks one inbound assistant turn. The committed flag
// guarantees at most one transcript entry per turn, the requested flag at
// most one generate-reply request per committed buffer.
type pendingResponse struct {
	text      strings.Builder
	committed bool
	requested bool
	retried   bool
}

// responseAggregator folds the service's fragmented, multi-shape event
// stream into exactly one finalized text per assistant turn, and recovers
// silently-dropped generate-reply requests with a single bounded retry.
type responseAggregator struct {
	tasks        scheduler
	retryTimeout time.Duration

	pending pendingResponse

	requestReply func() error
	commitEntry  func(text string)
}

func newResponseAggregator(tasks scheduler, requestReply func() error, commitEntry func(string)) *responseAggregator {
	return &responseAggregator{
		tasks:        tasks,
		retryTimeout: defaultResponseRetryTimeout,
		requestReply: requestReply,
		commitEntry:  commitEntry,
	}
}

// BeginTurn resets the accumulator for a new assistant turn.
func (a *responseAggregator) BeginTurn() {
	a.tasks.Cancel(taskResponseRetry)
	a.pending = pendingResponse{}
}

// Append adds one extracted text fragment. Appending empty text is a no-op,
// so every delta shape can route through here unconditionally.
func (a *responseAggregator) Append(fragment string) {
	if fragment == "" {
		return
	}
	a.pending.text.WriteString(fragment)
}

// Finalize commits the turn's text once. If no fragments accumulated, the
// terminal event's own nested payload is the fallback source. Later
// terminal-shaped events for the same turn are absorbed by the committed
// flag.
func (a *responseAggregator) Finalize(event realtime.ServerEvent) {
	if a.pending.committed {
		return
	}

	text := strings.TrimSpace(a.pending.text.String())
	if text == "" {
		text = strings.TrimSpace(event.FinalText())
	}
	if text == "" {
		return
	}

	a.pending.committed = true
	a.commitEntry(text)
}

// RequestReply asks the remote side to generate a reply for the committed
// buffer. Both the local commit path and the remote committed ack call this;
// the requested flag keeps it to one request. A single retry is armed in
// case the request is silently dropped.
func (a *responseAggregator) RequestReply() {
	if a.pending.requested {
		return
	}
	a.pending.requested = true

	if err := a.requestReply(); err != nil {
		logger.Warn("failed to request reply generation", "error", err)
	}
	a.tasks.Schedule(taskResponseRetry, a.retryTimeout, a.handleRetryElapsed)
}

// ObserveActivity notes that an inbound event for the in-flight response
// arrived, which settles the retry.
func (a *responseAggregator) ObserveActivity() {
	a.tasks.Cancel(taskResponseRetry)
}

func (a *responseAggregator) handleRetryElapsed() {
	if a.pending.retried {
		return
	}
	a.pending.retried = true

	logger.Debug("no response activity before timeout, re-requesting reply")
	if err := a.requestReply(); err != nil {
		logger.Warn("failed to re-request reply generation", "error", err)
	}
}

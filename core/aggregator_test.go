package engine

import (
	"testing"
	"time"

	"github.com/mzoric/voxjournal/core/realtime"
)

func newTestAggregator(t *testing.T) (*responseAggregator, *manualClock, *int, *[]string) {
	t.Helper()

	clock := newManualClock()
	requests := new(int)
	committed := &[]string{}

	aggregator := newResponseAggregator(
		newTaskScheduler(clock),
		func() error {
			*requests++
			return nil
		},
		func(text string) { *committed = append(*committed, text) },
	)
	return aggregator, clock, requests, committed
}

func TestAggregatorRequestsReplyOnce(t *testing.T) {
	aggregator, _, requests, _ := newTestAggregator(t)
	aggregator.BeginTurn()

	aggregator.RequestReply()
	aggregator.RequestReply()
	aggregator.RequestReply()

	if *requests != 1 {
		t.Fatalf("expected exactly 1 reply request per turn, got %d", *requests)
	}
}

func TestAggregatorCommitsAccumulatedTextOnce(t *testing.T) {
	aggregator, _, _, committed := newTestAggregator(t)
	aggregator.BeginTurn()

	aggregator.Append("Good ")
	aggregator.Append("morning, ")
	aggregator.Append("")
	aggregator.Append("Mara.")

	aggregator.Finalize(realtime.ServerEvent{Type: realtime.EventTypeTextDone})
	aggregator.Finalize(realtime.ServerEvent{Type: realtime.EventTypeResponseDone})
	aggregator.Finalize(realtime.ServerEvent{Type: realtime.EventTypeResponseCompleted})

	if len(*committed) != 1 {
		t.Fatalf("expected 1 committed entry despite %d terminal events, got %d", 3, len(*committed))
	}
	if (*committed)[0] != "Good morning, Mara." {
		t.Fatalf("unexpected committed text %q", (*committed)[0])
	}
}

func TestAggregatorFallsBackToTerminalPayload(t *testing.T) {
	aggregator, _, _, committed := newTestAggregator(t)
	aggregator.BeginTurn()

	// No deltas arrived; the terminal event itself carries the full text.
	aggregator.Finalize(realtime.ServerEvent{
		Type: realtime.EventTypeAudioTranscriptDone,
		Transcript: "What would you like to reflect on today?",
	})

	if len(*committed) != 1 {
		t.Fatalf("expected the terminal payload to be committed, got %d entries", len(*committed))
	}
	if (*committed)[0] != "What would you like to reflect on today?" {
		t.Fatalf("unexpected committed text %q", (*committed)[0])
	}
}

func TestAggregatorEmptyTerminalKeepsTurnOpen(t *testing.T) {
	aggregator, _, _, committed := newTestAggregator(t)
	aggregator.BeginTurn()

	aggregator.Finalize(realtime.ServerEvent{Type: realtime.EventTypeTextDone})
	if len(*committed) != 0 {
		t.Fatalf("an empty terminal committed an entry: %v", *committed)
	}

	// A later terminal with actual content still lands.
	aggregator.Append("Take a breath first.")
	aggregator.Finalize(realtime.ServerEvent{Type: realtime.EventTypeResponseDone})
	if len(*committed) != 1 || (*committed)[0] != "Take a breath first." {
		t.Fatalf("expected the populated terminal to commit, got %v", *committed)
	}
}

func TestAggregatorRetriesDroppedRequestOnce(t *testing.T) {
	aggregator, clock, requests, _ := newTestAggregator(t)
	aggregator.BeginTurn()

	aggregator.RequestReply()
	if *requests != 1 {
		t.Fatalf("expected 1 initial request, got %d", *requests)
	}

	clock.Advance(aggregator.retryTimeout)
	if *requests != 2 {
		t.Fatalf("expected a single retry after silence, got %d requests", *requests)
	}

	clock.Advance(10 * aggregator.retryTimeout)
	if *requests != 2 {
		t.Fatalf("retry repeated beyond its bound, got %d requests", *requests)
	}
}

func TestAggregatorActivitySettlesRetry(t *testing.T) {
	aggregator, clock, requests, _ := newTestAggregator(t)
	aggregator.BeginTurn()

	aggregator.RequestReply()
	aggregator.ObserveActivity()

	clock.Advance(10 * aggregator.retryTimeout)
	if *requests != 1 {
		t.Fatalf("retry fired despite observed response activity, got %d requests", *requests)
	}
}

func TestAggregatorBeginTurnResetsState(t *testing.T) {
	aggregator, clock, requests, committed := newTestAggregator(t)

	aggregator.BeginTurn()
	aggregator.Append("First turn.")
	aggregator.RequestReply()
	aggregator.ObserveActivity()
	aggregator.Finalize(realtime.ServerEvent{Type: realtime.EventTypeTextDone})

	aggregator.BeginTurn()
	aggregator.Append("Second turn.")
	aggregator.RequestReply()
	aggregator.ObserveActivity()
	aggregator.Finalize(realtime.ServerEvent{Type: realtime.EventTypeTextDone})

	if *requests != 2 {
		t.Fatalf("expected one request per turn, got %d", *requests)
	}
	if len(*committed) != 2 || (*committed)[1] != "Second turn." {
		t.Fatalf("unexpected committed entries %v", *committed)
	}

	clock.Advance(time.Minute)
	if *requests != 2 {
		t.Fatalf("stale retry fired across turns, got %d requests", *requests)
	}
}

package engine

import (
	"fmt"
	"time"

	"github.com/mzoric/voxjournal/core/audio"
)

const defaultPlaybackLeadIn = 50 * time.Millisecond

// playbackScheduler lines decoded audio chunks up back-to-back on the output
// clock so the assistant's reply plays without gaps or overlaps.
type playbackScheduler struct {
	clock  clock
	output AudioOutput
	info   audio.EncodingInfo
	leadIn time.Duration

	// cursor is the next scheduled start time; the zero value means unset.
	cursor time.Time
}

func newPlaybackScheduler(clock clock, output AudioOutput, info audio.EncodingInfo) *playbackScheduler {
	return &playbackScheduler{
		clock:  clock,
		output: output,
		info:   info,
		leadIn: defaultPlaybackLeadIn,
	}
}

// Play decodes one chunk and schedules it to start the instant the previous
// chunk ends. A chunk arriving after its deadline starts late, which leaves
// an audible gap but never an overlap.
func (p *playbackScheduler) Play(chunk string) error {
	if p.output == nil {
		return nil
	}

	frame, err := audio.DecodeChunk(chunk)
	if err != nil {
		return fmt.Errorf("failed to decode audio chunk: %w", err)
	}
	if len(frame) == 0 {
		return nil
	}

	now := p.clock.Now()
	if p.cursor.IsZero() {
		// A small lead-in absorbs scheduling jitter on the first chunk.
		p.cursor = now.Add(p.leadIn)
	} else if p.cursor.Before(now) {
		p.cursor = now
	}

	start := p.cursor
	if err := p.output.PlayAt(frame, start); err != nil {
		return fmt.Errorf("failed to schedule audio chunk: %w", err)
	}

	p.cursor = start.Add(p.info.SamplesDuration(len(frame)))
	return nil
}

// Reset forgets the cursor so the next assistant turn starts a fresh
// timeline instead of inheriting cross-turn drift.
func (p *playbackScheduler) Reset() {
	p.cursor = time.Time{}
}

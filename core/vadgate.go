package engine

import (
	"time"

	"github.com/mzoric/voxjournal/core/audio"
)

const (
	defaultSilenceThreshold = 0.015
	defaultSilenceDebounce  = time.Second
	defaultMinCommitBytes   = 4800 // ~100ms of PCM16 at 24kHz
	defaultCommitRetryDelay = 250 * time.Millisecond
	defaultMaxCommitRetries = 3
)

// turnBuffer tracks one outbound turn while the user is speaking. Reset
// after every commit attempt that completes.
type turnBuffer struct {
	pendingBytes  int
	hasAudio      bool
	retryAttempts int
}

// voiceActivityGate watches the outbound frame stream and decides when a
// spoken turn has ended. It emits at most one commit decision per turn.
//
// Two thresholds work together: the silence debounce avoids committing on a
// brief pause, and the minimum-bytes retry avoids clipping the tail of a
// very short utterance.
type voiceActivityGate struct {
	tasks scheduler

	silenceThreshold float64
	silenceDebounce  time.Duration
	minCommitBytes   int
	commitRetryDelay time.Duration
	maxCommitRetries int

	buffer turnBuffer

	sendChunk func(chunk string) error
	commit    func()
}

func newVoiceActivityGate(tasks scheduler, sendChunk func(string) error, commit func()) *voiceActivityGate {
	return &voiceActivityGate{
		tasks:            tasks,
		silenceThreshold: defaultSilenceThreshold,
		silenceDebounce:  defaultSilenceDebounce,
		minCommitBytes:   defaultMinCommitBytes,
		commitRetryDelay: defaultCommitRetryDelay,
		maxCommitRetries: defaultMaxCommitRetries,
		sendChunk:        sendChunk,
		commit:           commit,
	}
}

// HandleFrame classifies one capture frame and advances the turn state.
func (g *voiceActivityGate) HandleFrame(frame []float32) {
	if audio.Peak(frame) > g.silenceThreshold {
		g.handleSpeechFrame(frame)
		return
	}

	if !g.buffer.hasAudio {
		return
	}
	if g.tasks.Pending(taskSilenceDebounce) || g.tasks.Pending(taskCommitRetry) {
		return
	}

	g.tasks.Schedule(taskSilenceDebounce, g.silenceDebounce, g.tryCommit)
}

func (g *voiceActivityGate) handleSpeechFrame(frame []float32) {
	g.tasks.Cancel(taskSilenceDebounce)
	g.tasks.Cancel(taskCommitRetry)
	g.buffer.retryAttempts = 0

	chunk := audio.EncodeFrame(frame)
	if chunk == "" {
		return
	}
	if err := g.sendChunk(chunk); err != nil {
		logger.Warn("failed to transmit audio frame", "error", err)
		return
	}

	g.buffer.pendingBytes += len(frame) * 2
	g.buffer.hasAudio = true
}

// tryCommit runs when the silence debounce or a commit retry fires. Too
// little audio does not discard the buffer: late frames may still arrive, so
// the same decision is retried a bounded number of times before the fragment
// is dropped.
func (g *voiceActivityGate) tryCommit() {
	if !g.buffer.hasAudio || g.buffer.pendingBytes < g.minCommitBytes {
		if g.buffer.retryAttempts >= g.maxCommitRetries {
			logger.Debug("discarding short audio fragment after exhausted commit retries",
				"bytes", g.buffer.pendingBytes)
			g.Reset()
			return
		}

		g.buffer.retryAttempts++
		g.tasks.Schedule(taskCommitRetry, g.commitRetryDelay, g.tryCommit)
		return
	}

	commit := g.commit
	g.Reset()
	commit()
}

// Reset clears the turn buffer and both timers unconditionally.
func (g *voiceActivityGate) Reset() {
	g.tasks.Cancel(taskSilenceDebounce)
	g.tasks.Cancel(taskCommitRetry)
	g.buffer = turnBuffer{}
}

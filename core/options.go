package engine

import (
	"context"
	"time"

	"github.com/mzoric/voxjournal/core/audio"
	"github.com/mzoric/voxjournal/core/realtime"
)

// Session defaults, matching what the relay negotiates with the
// conversational service.
const (
	DefaultVoice              = "coral"
	DefaultTemperature        = 0.7
	DefaultMaxResponseTokens  = 300
	DefaultTranscriptionModel = "whisper-1"
	DefaultSessionType        = "reflection"

	wireAudioFormat = "pcm16"
)

// AudioInput is the capture collaborator: it delivers normalized mono frames
// at the engine's sample rate until capture stops.
type AudioInput interface {
	StartCapture(ctx context.Context, onFrame func(frame []float32)) error
	StopCapture() error
}

// AudioOutput is the playback sink. PlayAt renders a frame starting at the
// given output-clock time; frames are handed over in schedule order and
// never overlap.
type AudioOutput interface {
	PlayAt(frame []float32, at time.Time) error
	Clear()
}

// Transport is one live bidirectional channel to the relay.
type Transport interface {
	Send(msg any) error
	Events() <-chan realtime.ServerEvent
	Err() error
	Close() error
}

// DialFunc opens the transport when the session starts.
type DialFunc func(ctx context.Context) (Transport, error)

// Persistence receives the finalized transcript when the session ends.
// Failures are logged and never affect the session outcome.
type Persistence interface {
	SaveTranscript(ctx context.Context, sessionType string, entries []TranscriptEntry) error
}

type EngineOption func(*Engine)

func WithDialer(dial DialFunc) EngineOption {
	return func(e *Engine) { e.dial = dial }
}

// WithRelayClient wires a websocket relay client as the transport source.
func WithRelayClient(client *realtime.Client) EngineOption {
	return func(e *Engine) {
		e.dial = func(ctx context.Context) (Transport, error) {
			return client.Dial(ctx)
		}
	}
}

func WithAudioInput(input AudioInput) EngineOption {
	return func(e *Engine) { e.input = input }
}

func WithAudioOutput(output AudioOutput) EngineOption {
	return func(e *Engine) {
		e.output = output
		e.playback.output = output
	}
}

func WithPersistence(persistence Persistence) EngineOption {
	return func(e *Engine) { e.persistence = persistence }
}

// WithSessionType tags the session (reflection, planning, notes, goals).
func WithSessionType(sessionType string) EngineOption {
	return func(e *Engine) { e.sessionType = sessionType }
}

// WithInstructions sets the system instructions sent during session
// negotiation.
func WithInstructions(instructions string) EngineOption {
	return func(e *Engine) { e.instructions = instructions }
}

func WithVoice(voice string) EngineOption {
	return func(e *Engine) { e.voice = voice }
}

func WithTemperature(temperature float64) EngineOption {
	return func(e *Engine) { e.temperature = temperature }
}

func WithMaxResponseTokens(maxTokens int) EngineOption {
	return func(e *Engine) { e.maxResponseTokens = maxTokens }
}

func WithEncodingInfo(info audio.EncodingInfo) EngineOption {
	return func(e *Engine) {
		e.encodingInfo = info
		e.playback.info = info
	}
}

func WithSilenceThreshold(threshold float64) EngineOption {
	return func(e *Engine) { e.gate.silenceThreshold = threshold }
}

func WithSilenceDebounce(debounce time.Duration) EngineOption {
	return func(e *Engine) { e.gate.silenceDebounce = debounce }
}

func WithMinCommitBytes(minBytes int) EngineOption {
	return func(e *Engine) { e.gate.minCommitBytes = minBytes }
}

// WithCommitRetry tunes how often a too-short turn is retried before the
// fragment is discarded.
func WithCommitRetry(delay time.Duration, maxRetries int) EngineOption {
	return func(e *Engine) {
		e.gate.commitRetryDelay = delay
		e.gate.maxCommitRetries = maxRetries
	}
}

func WithResponseRetryTimeout(timeout time.Duration) EngineOption {
	return func(e *Engine) { e.aggregator.retryTimeout = timeout }
}

func WithPlaybackLeadIn(leadIn time.Duration) EngineOption {
	return func(e *Engine) { e.playback.leadIn = leadIn }
}

// withClock swaps the time source; tests use it to drive timers manually.
func withClock(c clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
		e.tasks.inner.clock = c
		e.playback.clock = c
	}
}

// RunOptions are the per-session callbacks, all invoked from the control
// loop.
type RunOptions struct {
	onStateChanged       func(state State)
	onUserTranscript     func(transcript string)
	onAssistantTextDelta func(fragment string)
	onAssistantResponse  func(text string)
	onSessionError       func(err error)
}

type RunOption func(*RunOptions)

func WithOnStateChanged(callback func(State)) RunOption {
	return func(o *RunOptions) { o.onStateChanged = callback }
}

func WithOnUserTranscript(callback func(string)) RunOption {
	return func(o *RunOptions) { o.onUserTranscript = callback }
}

func WithOnAssistantTextDelta(callback func(string)) RunOption {
	return func(o *RunOptions) { o.onAssistantTextDelta = callback }
}

func WithOnAssistantResponse(callback func(string)) RunOption {
	return func(o *RunOptions) { o.onAssistantResponse = callback }
}

func WithOnSessionError(callback func(error)) RunOption {
	return func(o *RunOptions) { o.onSessionError = callback }
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/mzoric/voxjournal/core/audio"
	"github.com/mzoric/voxjournal/core/realtime"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// State is the engine's position in the turn state machine.
type State string

const (
	StateIdle             State = "idle"
	StateConnecting       State = "connecting"
	StateConfiguring      State = "configuring"
	StateListening        State = "listening"
	StateCommitting       State = "committing"
	StateAwaitingResponse State = "awaiting_response"
	StateSpeaking         State = "speaking"
	StateEnded            State = "ended"
	StateError            State = "error"
)

var ErrNoTransport = errors.New("no transport dialer configured")

// Engine drives one spoken session against the relay: it streams microphone
// audio out, decides when the user's turn ended, reconstructs the
// assistant's fragmented reply, schedules its audio gaplessly, and records
// the transcript.
//
// All engine state is mutated on a single control goroutine; capture frames,
// inbound events, timer fires and control calls are serialized through one
// channel.
type Engine struct {
	sessionID   string
	sessionType string

	instructions       string
	voice              string
	temperature        float64
	maxResponseTokens  int
	transcriptionModel string
	encodingInfo       audio.EncodingInfo

	clock clock
	tasks *loopScheduler

	gate       *voiceActivityGate
	aggregator *responseAggregator
	playback   *playbackScheduler
	transcript *transcriptLog

	dial        DialFunc
	transport   Transport
	input       AudioInput
	output      AudioOutput
	persistence Persistence

	runOptions  RunOptions
	baseContext context.Context

	commands    chan func()
	done        chan struct{}
	closeOnce   sync.Once
	loopRunning atomic.Bool

	stateMu sync.Mutex
	state   State
	termErr error
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		sessionID:          uuid.NewString(),
		sessionType:        DefaultSessionType,
		voice:              DefaultVoice,
		temperature:        DefaultTemperature,
		maxResponseTokens:  DefaultMaxResponseTokens,
		transcriptionModel: DefaultTranscriptionModel,
		encodingInfo:       audio.GetDefaultEncodingInfo(),
		clock:              systemClock{},
		transcript:         newTranscriptLog(),
		baseContext:        context.Background(),
		commands:           make(chan func(), 128),
		done:               make(chan struct{}),
		state:              StateIdle,
	}

	e.tasks = &loopScheduler{inner: newTaskScheduler(e.clock), post: e.post}
	e.gate = newVoiceActivityGate(e.tasks, e.sendAudioChunk, e.handleGateCommit)
	e.aggregator = newResponseAggregator(e.tasks, e.sendResponseCreate, e.commitAssistantEntry)
	e.playback = newPlaybackScheduler(e.clock, nil, e.encodingInfo)

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Run connects, negotiates the session, and processes events until the
// session ends. It returns nil on a graceful end and the terminal failure
// otherwise.
func (e *Engine) Run(ctx context.Context, opts ...RunOption) error {
	e.runOptions = RunOptions{}
	for _, opt := range opts {
		opt(&e.runOptions)
	}

	if e.dial == nil {
		return ErrNoTransport
	}

	ctx, span := tracer.Start(ctx, "voice session")
	defer span.End()
	e.baseContext = ctx

	e.setState(StateConnecting)
	transport, err := e.dial(ctx)
	if err != nil {
		err = fmt.Errorf("failed to open relay transport: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.finish(err)
		return err
	}
	e.transport = transport

	e.setState(StateConfiguring)
	update := realtime.NewSessionUpdate(e.sessionConfig())
	update.SessionType = e.sessionType
	if err := transport.Send(update); err != nil {
		err = fmt.Errorf("failed to send session configuration: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.finish(err)
		return err
	}

	e.loopRunning.Store(true)
	defer e.loopRunning.Store(false)
	e.loop(ctx)

	if e.termErr != nil {
		span.RecordError(e.termErr)
		span.SetStatus(codes.Error, e.termErr.Error())
		return e.termErr
	}
	return nil
}

// End finishes the session gracefully: the transcript is flushed to the
// persistence collaborator and all resources are released.
func (e *Engine) End() {
	e.post(func() { e.finish(nil) })
}

// Close releases every session resource regardless of state. Safe to call
// more than once.
func (e *Engine) Close() {
	if e.loopRunning.Load() {
		e.End()
		return
	}
	e.teardown()
}

func (e *Engine) SessionID() string { return e.sessionID }

func (e *Engine) State() State {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state
}

// Transcript returns a snapshot of the entries recorded so far.
func (e *Engine) Transcript() []TranscriptEntry {
	return e.transcript.Entries()
}

func (e *Engine) loop(ctx context.Context) {
	events := e.transport.Events()
	for {
		select {
		case <-ctx.Done():
			e.finish(nil)
		case cmd := <-e.commands:
			cmd()
		case event, ok := <-events:
			if !ok {
				events = nil
				if !e.isTerminal() {
					cause := e.transport.Err()
					if cause == nil {
						cause = errors.New("relay connection closed unexpectedly")
					}
					e.finish(fmt.Errorf("transport lost: %w", cause))
				}
			} else {
				e.handleServerEvent(event)
			}
		}

		if e.isTerminal() {
			return
		}
	}
}

// post hands a closure to the control loop. Used by capture callbacks and
// fired timers; drops the work once the session is torn down.
func (e *Engine) post(fn func()) {
	select {
	case <-e.done:
	case e.commands <- fn:
	}
}

func (e *Engine) handleServerEvent(event realtime.ServerEvent) {
	if event.IsResponseActivity() {
		e.aggregator.ObserveActivity()
	}

	switch event.Type {
	case realtime.EventTypeReady:
		e.setState(StateListening)
		e.startCapture()
		return

	case realtime.EventTypeSessionCreated, realtime.EventTypeSessionUpdated,
		realtime.EventTypeItemCreated, realtime.EventTypeResponseCreated:
		// Lifecycle acks carry nothing the engine acts on.
		return

	case realtime.EventTypeSpeechStarted, realtime.EventTypeSpeechStopped:
		// Informational only; the local gate decides turn boundaries.
		logger.Debug("remote speech boundary notice", "type", event.Type)
		return

	case realtime.EventTypeBufferCommitted:
		// The relay may auto-request a reply on commit; the requested flag
		// keeps this to one request either way.
		e.aggregator.RequestReply()
		return

	case realtime.EventTypeInputTranscriptionDone:
		if text := strings.TrimSpace(event.Transcript); text != "" {
			e.transcript.Append(TranscriptEntry{Role: RoleUser, Text: text, Timestamp: e.clock.Now()})
			if e.runOptions.onUserTranscript != nil {
				e.runOptions.onUserTranscript(text)
			}
		}
		return

	case realtime.EventTypeError:
		message := event.ErrorMessage()
		if message == "" {
			message = "remote service reported an error"
		}
		e.finish(errors.New(message))
		return
	}

	switch event.Effect() {
	case realtime.EffectAppendText:
		fragment := event.TextFragment()
		e.aggregator.Append(fragment)
		if fragment != "" && e.runOptions.onAssistantTextDelta != nil {
			e.runOptions.onAssistantTextDelta(fragment)
		}

	case realtime.EffectPlayAudio:
		if e.State() == StateAwaitingResponse {
			e.setState(StateSpeaking)
		}
		if err := e.playback.Play(event.AudioChunk()); err != nil {
			logger.Warn("failed to play audio chunk", "error", err)
		}

	case realtime.EffectFinalizeTurn:
		e.aggregator.Finalize(event)
		if event.Type == realtime.EventTypeResponseDone || event.Type == realtime.EventTypeResponseCompleted {
			e.playback.Reset()
			e.setState(StateListening)
		}

	default:
		logger.Debug("ignoring inbound event", "type", event.Type)
	}
}

func (e *Engine) startCapture() {
	if e.input == nil {
		return
	}

	err := e.input.StartCapture(e.baseContext, func(frame []float32) {
		e.post(func() { e.gate.HandleFrame(frame) })
	})
	if err != nil {
		e.finish(fmt.Errorf("failed to acquire microphone: %w", err))
	}
}

func (e *Engine) sendAudioChunk(chunk string) error {
	if e.transport == nil {
		return ErrNoTransport
	}
	return e.transport.Send(realtime.NewBufferAppend(chunk))
}

func (e *Engine) sendResponseCreate() error {
	if e.transport == nil {
		return ErrNoTransport
	}
	return e.transport.Send(realtime.NewResponseCreate("text", "audio"))
}

// handleGateCommit closes the outbound buffer and opens the inbound turn.
func (e *Engine) handleGateCommit() {
	if e.isTerminal() {
		return
	}

	e.setState(StateCommitting)
	if err := e.transport.Send(realtime.NewBufferCommit()); err != nil {
		e.finish(fmt.Errorf("failed to commit audio buffer: %w", err))
		return
	}

	e.aggregator.BeginTurn()
	e.playback.Reset()
	e.aggregator.RequestReply()
	e.setState(StateAwaitingResponse)
}

func (e *Engine) commitAssistantEntry(text string) {
	e.transcript.Append(TranscriptEntry{Role: RoleAssistant, Text: text, Timestamp: e.clock.Now()})
	if e.runOptions.onAssistantResponse != nil {
		e.runOptions.onAssistantResponse(text)
	}
}

func (e *Engine) sessionConfig() realtime.SessionConfig {
	return realtime.SessionConfig{
		Modalities:              []string{"text", "audio"},
		Instructions:            e.instructions,
		Voice:                   e.voice,
		InputAudioFormat:        wireAudioFormat,
		OutputAudioFormat:       wireAudioFormat,
		InputAudioTranscription: &realtime.TranscriptionModel{Model: e.transcriptionModel},
		Temperature:             e.temperature,
		MaxResponseOutputTokens: e.maxResponseTokens,
	}
}

// finish moves the machine to a terminal state exactly once, offers the
// transcript to the persistence collaborator, and tears everything down.
// Entries recorded before a failure are preserved and still offered.
func (e *Engine) finish(err error) {
	if e.isTerminal() {
		return
	}

	if err != nil {
		e.stateMu.Lock()
		e.termErr = err
		e.stateMu.Unlock()
		e.setState(StateError)
		if e.runOptions.onSessionError != nil {
			e.runOptions.onSessionError(err)
		}
	} else {
		e.setState(StateEnded)
	}

	e.flushTranscript()
	e.teardown()
}

// teardown stops pending timers, closes the transport and releases the
// microphone, in that order. Idempotent.
func (e *Engine) teardown() {
	e.closeOnce.Do(func() {
		e.tasks.CancelAll()

		if e.transport != nil {
			if err := e.transport.Close(); err != nil {
				span := trace.SpanFromContext(e.baseContext)
				span.RecordError(fmt.Errorf("failed to close transport: %w", err))
			}
		}

		if e.input != nil {
			if err := e.input.StopCapture(); err != nil {
				span := trace.SpanFromContext(e.baseContext)
				span.RecordError(fmt.Errorf("failed to release microphone: %w", err))
			}
		}

		e.playback.Reset()
		if e.output != nil {
			e.output.Clear()
		}

		close(e.done)
	})
}

func (e *Engine) flushTranscript() {
	if e.persistence == nil || e.transcript.Len() == 0 {
		return
	}
	// Only sessions where the user actually said something are worth saving.
	if strings.TrimSpace(e.transcript.UserText()) == "" {
		return
	}

	ctx := context.WithoutCancel(e.baseContext)
	tag := "voice_" + e.sessionType
	if err := e.persistence.SaveTranscript(ctx, tag, e.transcript.Entries()); err != nil {
		logger.Warn("failed to persist session transcript",
			"session_id", e.sessionID, "error", err)
	}
}

func (e *Engine) setState(state State) {
	e.stateMu.Lock()
	if e.state == state {
		e.stateMu.Unlock()
		return
	}
	e.state = state
	e.stateMu.Unlock()

	logger.Debug("session state changed", "session_id", e.sessionID, "state", string(state))
	if e.runOptions.onStateChanged != nil {
		e.runOptions.onStateChanged(state)
	}
}

func (e *Engine) isTerminal() bool {
	state := e.State()
	return state == StateEnded || state == StateError
}

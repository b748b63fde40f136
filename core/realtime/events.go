package realtime

import (
	"encoding/json"
	"strings"
)

// Inbound event types. The service reports an assistant turn through any mix
// of these, and the set varies between protocol generations, so each kind is
// mapped onto one of three effects instead of being handled by name at the
// call sites.
const (
	EventTypeReady          = "ready"
	EventTypeSessionCreated = "session.created"
	EventTypeSessionUpdated = "session.updated"

	EventTypeBufferCommitted = "input_audio_buffer.committed"
	EventTypeSpeechStarted   = "input_audio_buffer.speech_started"
	EventTypeSpeechStopped   = "input_audio_buffer.speech_stopped"

	EventTypeItemCreated             = "conversation.item.created"
	EventTypeInputTranscriptionDone  = "conversation.item.input_audio_transcription.completed"
	EventTypeResponseCreated         = "response.created"
	EventTypeTextDelta               = "response.text.delta"
	EventTypeOutputTextDelta         = "response.output_text.delta"
	EventTypeAudioTranscriptDelta    = "response.audio_transcript.delta"
	EventTypeOutputTranscriptDelta   = "response.output_audio_transcript.delta"
	EventTypeContentPartAdded        = "response.content_part.added"
	EventTypeContentPartDone         = "response.content_part.done"
	EventTypeOutputItemAdded         = "response.output_item.added"
	EventTypeOutputItemDone          = "response.output_item.done"
	EventTypeAudioDelta              = "response.audio.delta"
	EventTypeOutputAudioDelta        = "response.output_audio.delta"
	EventTypeTextDone                = "response.text.done"
	EventTypeOutputTextDone          = "response.output_text.done"
	EventTypeAudioTranscriptDone     = "response.audio_transcript.done"
	EventTypeOutputTranscriptDone    = "response.output_audio_transcript.done"
	EventTypeAudioDone               = "response.audio.done"
	EventTypeOutputAudioDone         = "response.output_audio.done"
	EventTypeResponseDone            = "response.done"
	EventTypeResponseCompleted       = "response.completed"
	EventTypeError                   = "error"
)

// Effect is what an inbound event means to the engine. New event kinds are
// supported by adding them to the effect table, not by new branches in the
// engine.
type Effect int

const (
	EffectNone Effect = iota
	EffectAppendText
	EffectFinalizeTurn
	EffectPlayAudio
)

var eventEffects = map[string]Effect{
	EventTypeTextDelta:             EffectAppendText,
	EventTypeOutputTextDelta:       EffectAppendText,
	EventTypeAudioTranscriptDelta:  EffectAppendText,
	EventTypeOutputTranscriptDelta: EffectAppendText,
	EventTypeContentPartAdded:      EffectAppendText,
	EventTypeContentPartDone:       EffectAppendText,
	EventTypeOutputItemAdded:       EffectAppendText,

	EventTypeTextDone:             EffectFinalizeTurn,
	EventTypeOutputTextDone:       EffectFinalizeTurn,
	EventTypeAudioTranscriptDone:  EffectFinalizeTurn,
	EventTypeOutputTranscriptDone: EffectFinalizeTurn,
	EventTypeOutputItemDone:       EffectFinalizeTurn,
	EventTypeResponseDone:         EffectFinalizeTurn,
	EventTypeResponseCompleted:    EffectFinalizeTurn,

	EventTypeAudioDelta:       EffectPlayAudio,
	EventTypeOutputAudioDelta: EffectPlayAudio,
}

// ServerEvent is the parsed inbound envelope. Only the fields relevant to
// the recognized kinds are unmarshalled; Raw retains the full payload.
type ServerEvent struct {
	Type       string          `json:"type"`
	Delta      string          `json:"delta"`
	Text       string          `json:"text"`
	Transcript string          `json:"transcript"`
	Message    string          `json:"message"`
	Part       *ContentPart    `json:"part"`
	Item       *OutputItem     `json:"item"`
	Response   *Response       `json:"response"`
	Err        *ErrorDetail    `json:"error"`
	Raw        json.RawMessage `json:"-"`
}

type ContentPart struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	Transcript string `json:"transcript"`
}

type OutputItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

type Response struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Output []OutputItem `json:"output"`
}

type ErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParseServerEvent decodes one inbound message. Unknown types parse fine and
// map to EffectNone; only envelopes without a type discriminator fail.
func ParseServerEvent(payload []byte) (ServerEvent, error) {
	var event ServerEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return ServerEvent{}, err
	}
	if event.Type == "" {
		return ServerEvent{}, ErrMissingEventType
	}

	event.Raw = append(json.RawMessage(nil), payload...)
	return event, nil
}

func (e ServerEvent) Effect() Effect {
	return eventEffects[e.Type]
}

// IsResponseActivity reports whether the event relates to an in-flight
// response, which is what cancels a pending generate-reply retry.
func (e ServerEvent) IsResponseActivity() bool {
	return strings.HasPrefix(e.Type, "response.") || e.Type == EventTypeBufferCommitted
}

// TextFragment extracts the incremental text carried by an append-text
// shaped event, whichever field the protocol generation used.
func (e ServerEvent) TextFragment() string {
	if e.Delta != "" {
		return e.Delta
	}
	if e.Part != nil {
		if e.Part.Text != "" {
			return e.Part.Text
		}
		return e.Part.Transcript
	}
	if e.Item != nil {
		return e.Item.JoinedText()
	}
	return ""
}

// FinalText extracts the full text a terminal-shaped event carries on its
// own, before falling back to the nested response payload.
func (e ServerEvent) FinalText() string {
	if e.Text != "" {
		return e.Text
	}
	if e.Transcript != "" {
		return e.Transcript
	}
	if e.Item != nil {
		return e.Item.JoinedText()
	}
	if e.Response != nil {
		return e.Response.JoinedText()
	}
	return ""
}

// AudioChunk returns the base64 audio payload of a play-audio shaped event.
func (e ServerEvent) AudioChunk() string {
	return e.Delta
}

// ErrorMessage returns the human-readable failure reason of an error event.
func (e ServerEvent) ErrorMessage() string {
	if e.Err != nil && e.Err.Message != "" {
		return e.Err.Message
	}
	return e.Message
}

func (i OutputItem) JoinedText() string {
	var parts []string
	for _, part := range i.Content {
		if part.Text != "" {
			parts = append(parts, part.Text)
		} else if part.Transcript != "" {
			parts = append(parts, part.Transcript)
		}
	}
	return strings.Join(parts, "")
}

func (r Response) JoinedText() string {
	var parts []string
	for _, item := range r.Output {
		if text := item.JoinedText(); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

package realtime

// Client message types understood by the relay and forwarded to the
// conversational service.
const (
	MessageTypeSessionUpdate  = "session.update"
	MessageTypeBufferAppend   = "input_audio_buffer.append"
	MessageTypeBufferCommit   = "input_audio_buffer.commit"
	MessageTypeResponseCreate = "response.create"
)

// SessionConfig carries the negotiated session parameters sent right after
// the transport opens.
type SessionConfig struct {
	Modalities              []string            `json:"modalities"`
	Instructions            string              `json:"instructions"`
	Voice                   string              `json:"voice"`
	InputAudioFormat        string              `json:"input_audio_format"`
	OutputAudioFormat       string              `json:"output_audio_format"`
	InputAudioTranscription *TranscriptionModel `json:"input_audio_transcription,omitempty"`
	Temperature             float64             `json:"temperature"`
	MaxResponseOutputTokens int                 `json:"max_response_output_tokens"`
}

type TranscriptionModel struct {
	Model string `json:"model"`
}

type SessionUpdateMessage struct {
	Type    string        `json:"type"`
	Session SessionConfig `json:"session"`

	// SessionType rides along for relays that pick the stored-entry kind
	// from the first client message.
	SessionType string `json:"session_type,omitempty"`
}

func NewSessionUpdate(config SessionConfig) SessionUpdateMessage {
	return SessionUpdateMessage{Type: MessageTypeSessionUpdate, Session: config}
}

type BufferAppendMessage struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

func NewBufferAppend(audio string) BufferAppendMessage {
	return BufferAppendMessage{Type: MessageTypeBufferAppend, Audio: audio}
}

type BufferCommitMessage struct {
	Type string `json:"type"`
}

func NewBufferCommit() BufferCommitMessage {
	return BufferCommitMessage{Type: MessageTypeBufferCommit}
}

type ResponseCreateMessage struct {
	Type     string         `json:"type"`
	Response ResponseParams `json:"response"`
}

type ResponseParams struct {
	Modalities []string `json:"modalities"`
}

func NewResponseCreate(modalities ...string) ResponseCreateMessage {
	if len(modalities) == 0 {
		modalities = []string{"text", "audio"}
	}
	return ResponseCreateMessage{
		Type:     MessageTypeResponseCreate,
		Response: ResponseParams{Modalities: modalities},
	}
}

package journal

// Session types the journal understands. Voice entries are stored with a
// "voice_" prefix on these so text and spoken sessions of the same kind can
// be browsed together.
const (
	SessionReflection = "reflection"
	SessionPlanning   = "planning"
	SessionNotes      = "notes"
	SessionGoals      = "goals"
)

var voiceInstructions = map[string]string{
	SessionReflection: "You are a thoughtful journaling assistant helping someone reflect on their day while they're driving. " +
		"Keep responses conversational and concise. Ask one question at a time. Be empathetic and encouraging. " +
		"Help them process their thoughts safely while driving.",

	SessionPlanning: "You are a planning assistant helping someone organize their thoughts for upcoming days while driving. " +
		"Keep responses brief and focused. Help them set realistic goals and think through challenges. " +
		"Ask clarifying questions one at a time.",

	SessionNotes: "You are a note-taking assistant helping someone do a brain dump while driving. " +
		"Help them organize their thoughts clearly. Acknowledge what they've shared and ask for clarification when needed. " +
		"Keep responses short and conversational.",

	SessionGoals: "You are a goal-tracking assistant helping someone review and set goals while driving. " +
		"Be encouraging and realistic. Keep responses brief and ask one question at a time. " +
		"Help them think through their objectives safely.",
}

var openingMessages = map[string]string{
	SessionReflection: "Hi! I'm here to help you reflect on your day. What's been on your mind today?",
	SessionPlanning:   "Let's plan ahead! What are you thinking about for tomorrow or the coming days?",
	SessionNotes:      "Ready for a brain dump! Tell me everything that's on your mind - I'll help you organize it.",
	SessionGoals:      "Let's talk about your goals. What would you like to work on or review?",
}

// VoiceInstructions returns the system instructions for a spoken session of
// the given type, falling back to reflection for unknown types.
func VoiceInstructions(sessionType string) string {
	if instructions, ok := voiceInstructions[sessionType]; ok {
		return instructions
	}
	return voiceInstructions[SessionReflection]
}

// OpeningMessage returns the greeting shown when a session of the given type
// starts, falling back to reflection for unknown types.
func OpeningMessage(sessionType string) string {
	if message, ok := openingMessages[sessionType]; ok {
		return message
	}
	return openingMessages[SessionReflection]
}

// IsKnownSessionType reports whether the type maps to a dedicated prompt.
func IsKnownSessionType(sessionType string) bool {
	_, ok := voiceInstructions[sessionType]
	return ok
}

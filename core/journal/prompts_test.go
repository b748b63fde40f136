package journal

import (
	"strings"
	"testing"
)

func TestVoiceInstructionsPerSessionType(t *testing.T) {
	for _, sessionType := range []string{SessionReflection, SessionPlanning, SessionNotes, SessionGoals} {
		if VoiceInstructions(sessionType) == "" {
			t.Fatalf("no voice instructions for session type %q", sessionType)
		}
		if OpeningMessage(sessionType) == "" {
			t.Fatalf("no opening message for session type %q", sessionType)
		}
	}
}

func TestUnknownSessionTypeFallsBackToReflection(t *testing.T) {
	if got := VoiceInstructions("standup"); got != VoiceInstructions(SessionReflection) {
		t.Fatalf("unexpected fallback instructions: %q", got)
	}
	if got := OpeningMessage("standup"); got != OpeningMessage(SessionReflection) {
		t.Fatalf("unexpected fallback opening: %q", got)
	}
	if IsKnownSessionType("standup") {
		t.Fatalf("expected %q to be unknown", "standup")
	}
}

func TestVoiceInstructionsAreSpokenStyle(t *testing.T) {
	for sessionType, instructions := range voiceInstructions {
		if !strings.Contains(instructions, "driving") {
			t.Fatalf("voice instructions for %q lost their hands-free framing", sessionType)
		}
	}
}

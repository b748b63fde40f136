package engine

import (
	"testing"
	"time"
)

func TestTranscriptLogSnapshotsAreIsolated(t *testing.T) {
	log := newTranscriptLog()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	log.Append(TranscriptEntry{Role: RoleUser, Text: "I want to talk about work", Timestamp: now})
	log.Append(TranscriptEntry{Role: RoleAssistant, Text: "Go on.", Timestamp: now.Add(time.Second)})

	entries := log.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	entries[0].Text = "mutated"
	if fresh := log.Entries(); fresh[0].Text != "I want to talk about work" {
		t.Fatalf("mutating a snapshot leaked into the log: %q", fresh[0].Text)
	}
}

func TestTranscriptLogUserTextJoinsOnlyUserEntries(t *testing.T) {
	log := newTranscriptLog()
	now := time.Now()

	log.Append(TranscriptEntry{Role: RoleUser, Text: "Today was hard.", Timestamp: now})
	log.Append(TranscriptEntry{Role: RoleAssistant, Text: "What made it hard?", Timestamp: now})
	log.Append(TranscriptEntry{Role: RoleUser, Text: "The deadline slipped.", Timestamp: now})

	if got, want := log.UserText(), "Today was hard. The deadline slipped."; got != want {
		t.Fatalf("UserText() = %q, want %q", got, want)
	}
}

func TestTranscriptLogEmpty(t *testing.T) {
	log := newTranscriptLog()

	if log.Len() != 0 {
		t.Fatalf("expected an empty log, got %d entries", log.Len())
	}
	if log.UserText() != "" {
		t.Fatalf("expected empty user text, got %q", log.UserText())
	}
	if entries := log.Entries(); len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

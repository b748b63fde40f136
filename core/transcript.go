package engine

import (
	"strings"
	"sync"
	"time"

	"github.com/jinzhu/copier"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TranscriptEntry is one finalized turn of the conversation. Immutable once
// appended.
type TranscriptEntry struct {
	Role      string    `json:"role"`
	Text      string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// transcriptLog is the ordered, append-only record of the session, handed to
// the persistence collaborator when the session ends.
type transcriptLog struct {
	mu      sync.Mutex
	entries []TranscriptEntry
}

func newTranscriptLog() *transcriptLog {
	return &transcriptLog{}
}

func (l *transcriptLog) Append(entry TranscriptEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entry)
}

// Entries returns a copy of the full sequence in append order.
func (l *transcriptLog) Entries() []TranscriptEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var entries []TranscriptEntry
	copier.Copy(&entries, l.entries)
	return entries
}

// UserText joins everything the user said, in order, with single spaces.
func (l *transcriptLog) UserText() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var parts []string
	for _, entry := range l.entries {
		if entry.Role == RoleUser {
			parts = append(parts, entry.Text)
		}
	}
	return strings.Join(parts, " ")
}

func (l *transcriptLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries)
}

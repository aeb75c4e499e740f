package live

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies who or what produced a transcript entry.
type Role string

const (
	// Interview variant roles.
	RoleInterviewer Role = "interviewer"
	RoleCandidate   Role = "candidate"

	// Training variant roles.
	RoleContent  Role = "content"
	RoleAnalysis Role = "analysis"
	RoleAnswer   Role = "answer"
)

// Entry is one exchange in the session transcript. Entries are never mutated
// once appended.
type Entry struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Transcript is an append-only ordered log of exchange entries. Insertion
// order is display order; concurrent appends resolve in call order.
type Transcript struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds one entry and returns it. Every call produces exactly one
// entry; no deduplication is performed.
func (t *Transcript) Append(role Role, content string) Entry {
	entry := Entry{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}

	t.mu.Lock()
	t.entries = append(t.entries, entry)
	t.mu.Unlock()

	return entry
}

// Snapshot returns a copy of all entries in insertion order.
func (t *Transcript) Snapshot() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

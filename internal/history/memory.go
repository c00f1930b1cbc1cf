// Package history stores answered questions per chat session.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/domain"
)

const defaultMaxPerSession = 50

// Entry is one answered question.
type Entry struct {
	Question   string
	Answer     *domain.Answer
	AnsweredAt time.Time
}

// MemoryStore implements domain.HistoryStore in memory. Each session keeps
// its most recent entries, oldest dropped first.
type MemoryStore struct {
	mu            sync.RWMutex
	sessions      map[string][]Entry
	maxPerSession int
	now           func() time.Time
}

// NewMemoryStore creates an in-memory history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:      make(map[string][]Entry),
		maxPerSession: defaultMaxPerSession,
		now:           time.Now,
	}
}

// Save appends the answer to the session's history.
func (m *MemoryStore) Save(_ context.Context, sessionID, question string, answer *domain.Answer) error {
	if sessionID == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entries := append(m.sessions[sessionID], Entry{
		Question:   question,
		Answer:     answer,
		AnsweredAt: m.now(),
	})
	if len(entries) > m.maxPerSession {
		entries = entries[len(entries)-m.maxPerSession:]
	}
	m.sessions[sessionID] = entries

	return nil
}

// Recent returns up to limit most recent entries for the session, newest last.
func (m *MemoryStore) Recent(_ context.Context, sessionID string, limit int) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.sessions[sessionID]
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

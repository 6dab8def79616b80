package wizard

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Key identifies one conversation: a user inside a chat.
type Key struct {
	ChatID int64
	UserID int64
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%d", k.ChatID, k.UserID)
}

// SessionStore persists wizard sessions between chat events.
type SessionStore interface {
	// Load returns the session for k, or an idle session when none exists.
	Load(ctx context.Context, k Key) (Session, error)
	Save(ctx context.Context, k Key, s Session) error
	Discard(ctx context.Context, k Key) error
}

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory with a sliding TTL.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[Key]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[Key]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryStore) Load(_ context.Context, k Key) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[k]
	if !ok {
		return Session{}, nil
	}
	if m.ttl > 0 && m.now().After(e.expiresAt) {
		delete(m.entries, k)
		return Session{}, nil
	}
	return e.session, nil
}

func (m *MemoryStore) Save(_ context.Context, k Key, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !s.Active() {
		delete(m.entries, k)
		return nil
	}
	m.entries[k] = memoryEntry{session: s, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Discard(_ context.Context, k Key) error {
	m.mu.Lock()
	delete(m.entries, k)
	m.mu.Unlock()
	return nil
}

// Len reports stored sessions, expired ones included until next access.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

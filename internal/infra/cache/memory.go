package cache

import (
	"context"
	"sync"
	"time"

	"agent-radar/internal/domain"
)

type memoryEntry struct {
	token    string
	expireAt time.Time
}

// Memory хранит токены в памяти процесса. Теряется при рестарте.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

var _ domain.TokenCache = (*Memory)(nil)

// NewMemory создаёт пустой кэш.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry), now: time.Now}
}

// GetToken возвращает токен, если он ещё не истёк.
func (m *Memory) GetToken(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if !m.now().Before(entry.expireAt) {
		delete(m.entries, key)
		return "", false, nil
	}
	return entry.token, true, nil
}

// SetToken сохраняет токен.
func (m *Memory) SetToken(_ context.Context, key, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{token: token, expireAt: m.now().Add(ttl)}
	return nil
}

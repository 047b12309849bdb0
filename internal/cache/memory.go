package cache

import (
	"context"
	"sync"
	"time"

	"github.com/tbourn/go-powboard/internal/domain"
)

type memEntry struct {
	post    *domain.Post
	expires time.Time
}

// Memory is an in-process PostCache with per-entry TTL and a size cap.
// When full, expired entries are swept first and, failing that, the entry
// closest to expiry is evicted.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	entries map[string]memEntry
	now     func() time.Time
}

// NewMemory returns a Memory cache. ttl <= 0 means entries never expire;
// max <= 0 means no size cap.
func NewMemory(ttl time.Duration, max int) *Memory {
	return &Memory{
		ttl:     ttl,
		max:     max,
		entries: make(map[string]memEntry),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, txID string) (*domain.Post, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[txID]
	if !ok {
		return nil, false
	}
	if m.expired(e) {
		delete(m.entries, txID)
		return nil, false
	}
	return clone(e.post), true
}

func (m *Memory) Set(_ context.Context, p *domain.Post) {
	if p == nil || p.TxID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[p.TxID]; !exists && m.max > 0 && len(m.entries) >= m.max {
		m.evictLocked()
	}
	e := memEntry{post: clone(p)}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.entries[p.TxID] = e
}

func (m *Memory) Invalidate(_ context.Context, txIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range txIDs {
		delete(m.entries, id)
	}
}

// Len reports the number of entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) expired(e memEntry) bool {
	return !e.expires.IsZero() && !m.now().Before(e.expires)
}

func (m *Memory) evictLocked() {
	var (
		victim string
		soon   time.Time
	)
	for id, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, id)
			continue
		}
		if victim == "" || e.expires.Before(soon) {
			victim, soon = id, e.expires
		}
	}
	if len(m.entries) >= m.max && victim != "" {
		delete(m.entries, victim)
	}
}

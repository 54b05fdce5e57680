package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps encoded snapshots in a map. It backs tests and
// storage.type "memory".
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
	order    map[string]int
	seq      int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]byte),
		order:    make(map[string]int),
	}
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.sessions[s.ID] = data
	m.order[s.ID] = m.seq
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	data, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return decode(data)
}

func (m *MemoryStore) Latest(_ context.Context) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latestID, latestSeq := "", 0
	for id, seq := range m.order {
		if seq > latestSeq {
			latestID, latestSeq = id, seq
		}
	}
	if latestID == "" {
		return nil, ErrSessionNotFound
	}
	return decode(m.sessions[latestID])
}

func (m *MemoryStore) List(_ context.Context) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return m.order[ids[i]] > m.order[ids[j]] })

	summaries := make([]Summary, 0, len(ids))
	for _, id := range ids {
		s, err := decode(m.sessions[id])
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, SummaryOf(s))
	}
	return summaries, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(m.sessions, id)
	delete(m.order, id)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func decode(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &s, nil
}

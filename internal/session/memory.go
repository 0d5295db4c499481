package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory for the process lifetime.
type MemoryStore struct {
	locks *keyLocker

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:    newKeyLocker(),
		sessions: make(map[string]*Session),
	}
}

// Update implements Store.
func (m *MemoryStore) Update(ctx context.Context, id Identity, fn func(s *Session) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := id.Key()
	unlock := m.locks.Lock(key)
	defer unlock()

	m.mu.RLock()
	cur, ok := m.sessions[key]
	m.mu.RUnlock()

	var work Session
	if ok {
		work = cur.Clone()
	} else {
		work = *New(id)
	}
	if err := fn(&work); err != nil {
		return err
	}

	m.mu.Lock()
	m.sessions[key] = &work
	m.mu.Unlock()
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, id Identity) (Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id.Key()]
	if !ok {
		return Session{}, false, nil
	}
	return s.Clone(), true, nil
}

// List implements Store. Sessions are ordered by key.
func (m *MemoryStore) List(ctx context.Context) ([]Session, error) {
	m.mu.RLock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Identity.Key() < out[j].Identity.Key()
	})
	return out, nil
}

// ExpireIdle implements Store.
func (m *MemoryStore) ExpireIdle(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.RLock()
	var stale []Identity
	for _, s := range m.sessions {
		if s.Stage.Collecting() && s.LastSeen.Before(cutoff) {
			stale = append(stale, s.Identity)
		}
	}
	m.mu.RUnlock()

	n := 0
	for _, id := range stale {
		err := m.Update(ctx, id, func(s *Session) error {
			// Re-check under the identity lock; a turn may have landed.
			if s.Stage.Collecting() && s.LastSeen.Before(cutoff) {
				s.Reset()
				n++
			}
			return nil
		})
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

package state

import (
	"sync"
	"time"
)

// Manager stores sessions keyed by user id. Sessions are copied in and out,
// so callers never share a buffer with another update.
type Manager[T any] struct {
	mu       sync.Mutex
	sessions map[int64]Session[T]
	locks    map[int64]*userLock
	now      func() time.Time
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager returns an empty in-memory manager.
func NewManager[T any]() *Manager[T] {
	return &Manager[T]{
		sessions: make(map[int64]Session[T]),
		locks:    make(map[int64]*userLock),
		now:      time.Now,
	}
}

// Get returns the user's session, or an idle one.
func (m *Manager[T]) Get(userID int64) (Session[T], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// Set stores s. An idle session clears the entry instead.
func (m *Manager[T]) Set(userID int64, s Session[T]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !s.Active() {
		delete(m.sessions, userID)
		return
	}
	s.UpdatedAt = m.now()
	m.sessions[userID] = s
}

// Clear discards the user's session.
func (m *Manager[T]) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// InProgress reports whether the user has an active session.
func (m *Manager[T]) InProgress(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[userID]
	return ok
}

// Len returns the number of active sessions.
func (m *Manager[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Expire removes sessions untouched for longer than idle and returns how many were dropped.
func (m *Manager[T]) Expire(idle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-idle)
	n := 0
	for id, s := range m.sessions {
		if s.UpdatedAt.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Lock serializes handling for a single user and returns the unlock func.
// Updates from different users never block each other.
func (m *Manager[T]) Lock(userID int64) func() {
	m.mu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &userLock{}
		m.locks[userID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, userID)
		}
		m.mu.Unlock()
	}
}

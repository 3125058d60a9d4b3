package store

import (
	"context"
	"sync"
)

// Memory keeps users in process. Used for local runs and tests.
type Memory struct {
	mu    sync.RWMutex
	users []User
	fail  error
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) InsertUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail != nil {
		return m.fail
	}

	stored := *u
	if u.Extra != nil {
		stored.Extra = make(map[string]string, len(u.Extra))
		for k, v := range u.Extra {
			stored.Extra[k] = v
		}
	}
	m.users = append(m.users, stored)
	return nil
}

// FailWith makes every later InsertUser and Ping return err; nil restores
// normal behaviour.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Users returns a snapshot of the stored users in insertion order.
func (m *Memory) Users() []User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]User, len(m.users))
	copy(out, m.users)
	return out
}

func (m *Memory) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fail
}

func (m *Memory) Close(context.Context) error {
	return nil
}

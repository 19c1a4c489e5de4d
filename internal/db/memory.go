package db

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is a Store kept in process memory.
type Memory struct {
	mu        sync.RWMutex
	resources map[string]Resource
	users     map[string]User
	seq       int64
	order     map[string]int64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		resources: map[string]Resource{},
		users:     map[string]User{},
		order:     map[string]int64{},
	}
}

func (m *Memory) GetResource(_ context.Context, uri string) (Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.resources[uri]
	if !ok {
		return Resource{}, ErrNotFound
	}
	return copyResource(r)
}

func (m *Memory) ListResources(_ context.Context, class, parent string) ([]Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Resource{}
	for _, r := range m.resources {
		if r.Class != class || (parent != "" && r.Parent != parent) {
			continue
		}
		c, err := copyResource(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return m.order[out[i].URI] < m.order[out[j].URI] })
	return out, nil
}

func (m *Memory) PutResource(_ context.Context, r Resource) error {
	c, err := copyResource(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.resources[r.URI]; ok {
		c.CreatedAt = old.CreatedAt
	} else {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now().UTC()
		}
		m.seq++
		m.order[r.URI] = m.seq
	}
	m.resources[r.URI] = c
	return nil
}

func (m *Memory) DeleteResource(_ context.Context, uri string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.resources[uri]; !ok {
		return ErrNotFound
	}
	delete(m.resources, uri)
	delete(m.order, uri)
	return nil
}

func (m *Memory) FindResourceByName(ctx context.Context, class, parent, name string) (Resource, error) {
	rs, err := m.ListResources(ctx, class, parent)
	if err != nil {
		return Resource{}, err
	}
	for _, r := range rs {
		if r.Name() == name {
			return r, nil
		}
	}
	return Resource{}, ErrNotFound
}

func (m *Memory) GetUser(_ context.Context, userID string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) PutUser(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	m.users[u.UserID] = u
	return nil
}

func (m *Memory) Close() error { return nil }

func copyResource(r Resource) (Resource, error) {
	props, err := cloneProperties(r.Properties)
	if err != nil {
		return Resource{}, err
	}
	r.Properties = props
	return r, nil
}

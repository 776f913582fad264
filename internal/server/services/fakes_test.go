package services

import (
	"context"
	"sort"
	"sync"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/store"
	"github.com/google/uuid"
)

// memStore is an in-memory store.Store with error injection.
type memStore struct {
	mu    sync.Mutex
	users map[string]*models.User
	hook  store.MutationHook

	findErr   error
	insertErr error
	updateErr error
	removeErr error
	countErr  error

	findOneCalls int
	countCalls   int
}

var _ store.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{users: map[string]*models.User{}}
}

func (m *memStore) match(u *models.User, f store.Filter) bool {
	if f.ID != "" && u.ID != f.ID {
		return false
	}
	if f.Username != "" && u.Username != f.Username {
		return false
	}
	if f.ExcludeID != "" && u.ID == f.ExcludeID {
		return false
	}
	return true
}

func (m *memStore) Find(_ context.Context, f store.Filter) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}

	var out []*models.User
	for _, u := range m.users {
		if m.match(u, f) {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })

	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) FindOne(_ context.Context, f store.Filter) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findOneCalls++
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, u := range m.users {
		if m.match(u, f) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (m *memStore) Insert(ctx context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	if m.insertErr != nil {
		m.mu.Unlock()
		return nil, m.insertErr
	}
	for _, existing := range m.users {
		if existing.Username == u.Username {
			m.mu.Unlock()
			return nil, common.ErrConflict
		}
	}
	rec := *u
	rec.ID = uuid.NewString()
	m.users[rec.ID] = &rec
	m.mu.Unlock()

	if m.hook != nil {
		m.hook(ctx, store.Created, &rec)
	}
	cp := rec
	return &cp, nil
}

func (m *memStore) UpdateByID(ctx context.Context, id string, p store.Patch) (*models.User, error) {
	m.mu.Lock()
	if m.updateErr != nil {
		m.mu.Unlock()
		return nil, m.updateErr
	}
	u, ok := m.users[id]
	if !ok {
		m.mu.Unlock()
		return nil, common.ErrNotFound
	}
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Password != nil {
		u.Password = *p.Password
	}
	if p.UpdatedAt != nil {
		t := *p.UpdatedAt
		u.UpdatedAt = &t
	}
	cp := *u
	m.mu.Unlock()

	if m.hook != nil {
		m.hook(ctx, store.Updated, &cp)
	}
	return &cp, nil
}

func (m *memStore) RemoveByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	if m.removeErr != nil {
		m.mu.Unlock()
		return nil, m.removeErr
	}
	u, ok := m.users[id]
	if !ok {
		m.mu.Unlock()
		return nil, common.ErrNotFound
	}
	delete(m.users, id)
	m.mu.Unlock()

	if m.hook != nil {
		m.hook(ctx, store.Removed, u)
	}
	return u, nil
}

func (m *memStore) Count(_ context.Context, f store.Filter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.countCalls++
	if m.countErr != nil {
		return 0, m.countErr
	}
	n := 0
	for _, u := range m.users {
		if m.match(u, f) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) Close() error { return nil }

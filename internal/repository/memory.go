package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/atinyakov/observer/internal/models"
)

// MemoryStore keeps users, sessions, products and likes in memory. It backs
// the server when no database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]models.User
	sessions map[string]models.Session
	products map[int64]models.Product
	// likes maps user id to liked product ids in like order.
	likes map[string][]int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]models.User),
		sessions: make(map[string]models.Session),
		products: make(map[int64]models.Product),
		likes:    make(map[string][]int64),
	}
}

func (m *MemoryStore) CreateUser(_ context.Context, u models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.ID == u.ID || existing.Username == u.Username ||
			(u.Subject != "" && existing.Subject == u.Subject) {
			return ErrConflict
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *MemoryStore) UserExists(_ context.Context, username string) (bool, error) {
	_, err := m.findUser(func(u models.User) bool { return u.Username == username })
	return err == nil, nil
}

func (m *MemoryStore) GetUserByID(_ context.Context, id string) (models.User, error) {
	return m.findUser(func(u models.User) bool { return u.ID == id })
}

func (m *MemoryStore) GetUserByUsername(_ context.Context, username string) (models.User, error) {
	return m.findUser(func(u models.User) bool { return u.Username == username })
}

func (m *MemoryStore) GetUserBySubject(_ context.Context, subject string) (models.User, error) {
	return m.findUser(func(u models.User) bool { return u.Subject != "" && u.Subject == subject })
}

func (m *MemoryStore) findUser(match func(models.User) bool) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if match(u) {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

// DeleteUser removes the user with its sessions and likes.
func (m *MemoryStore) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	delete(m.likes, id)
	for token, s := range m.sessions {
		if s.UserID == id {
			delete(m.sessions, token)
		}
	}
	return nil
}

func (m *MemoryStore) CreateSession(_ context.Context, s models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Token] = s
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, token string) (models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[token]
	if !ok {
		return models.Session{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *MemoryStore) UpsertProduct(_ context.Context, p models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
	return nil
}

func (m *MemoryStore) SearchProducts(_ context.Context, query string, offset, limit int) ([]models.Product, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q := strings.ToLower(query)
	var matched []models.Product
	for _, p := range m.products {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Brand), q) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return page(matched, offset, limit), len(matched), nil
}

func (m *MemoryStore) GetProduct(_ context.Context, id int64) (models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return models.Product{}, ErrNotFound
	}
	return p, nil
}

func (m *MemoryStore) AddLike(_ context.Context, userID string, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[productID]; !ok {
		return ErrNotFound
	}
	for _, id := range m.likes[userID] {
		if id == productID {
			return nil
		}
	}
	m.likes[userID] = append(m.likes[userID], productID)
	return nil
}

func (m *MemoryStore) RemoveLike(_ context.Context, userID string, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.likes[userID]
	for i, id := range ids {
		if id == productID {
			m.likes[userID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// LikedProducts returns a page of liked products, newest like first.
func (m *MemoryStore) LikedProducts(_ context.Context, userID string, offset, limit int) ([]models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.likes[userID]
	products := make([]models.Product, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if p, ok := m.products[ids[i]]; ok {
			products = append(products, p)
		}
	}
	return page(products, offset, limit), nil
}

func page(products []models.Product, offset, limit int) []models.Product {
	if offset >= len(products) {
		return []models.Product{}
	}
	end := offset + limit
	if end > len(products) {
		end = len(products)
	}
	return products[offset:end]
}

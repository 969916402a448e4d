package likes

import (
	"context"
	"errors"
	"sync"

	"github.com/atinyakov/observer/internal/client/api"
	"github.com/atinyakov/observer/internal/client/catalog"
)

var (
	// ErrNoUser is returned when toggling without a signed-in user.
	ErrNoUser = errors.New("likes: no signed-in user")
	// ErrBusy is returned while a toggle for the same product is in flight.
	ErrBusy = errors.New("likes: toggle in progress")
)

// Manager keeps the liked list and the set of liked product ids.
// Toggles are applied optimistically and rolled back on failure.
type Manager struct {
	svc   Service
	limit int

	mu       sync.Mutex
	products []catalog.Product
	liked    map[int64]bool
	pending  map[int64]bool
	done     bool
	err      string
}

// NewManager returns an empty manager. limit <= 0 uses DefaultLimit.
func NewManager(svc Service, limit int) *Manager {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Manager{
		svc:     svc,
		limit:   limit,
		liked:   make(map[int64]bool),
		pending: make(map[int64]bool),
	}
}

// Reload replaces the list with the first page.
func (m *Manager) Reload(ctx context.Context) error {
	page, err := m.svc.Liked(ctx, 0, m.limit)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.err = api.UserMessage(err)
		return err
	}
	m.err = ""
	m.products = page
	m.done = len(page) < m.limit
	m.liked = make(map[int64]bool, len(page))
	for _, p := range page {
		m.liked[p.ID] = true
	}
	return nil
}

// More appends the next page. It reports false once the list is exhausted.
func (m *Manager) More(ctx context.Context) (bool, error) {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return false, nil
	}
	offset := len(m.products)
	m.mu.Unlock()

	page, err := m.svc.Liked(ctx, offset, m.limit)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.err = api.UserMessage(err)
		return true, err
	}
	m.err = ""
	for _, p := range page {
		if m.liked[p.ID] {
			continue
		}
		m.liked[p.ID] = true
		m.products = append(m.products, p)
	}
	m.done = len(page) < m.limit
	return !m.done, nil
}

// Products returns a copy of the loaded list.
func (m *Manager) Products() []catalog.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]catalog.Product(nil), m.products...)
}

// Err returns the message of the last failed load or toggle.
func (m *Manager) Err() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// IsLiked reports the local like state of a product.
func (m *Manager) IsLiked(productID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liked[productID]
}

// Toggle flips the like state of p for userID and returns the new state.
func (m *Manager) Toggle(ctx context.Context, userID string, p catalog.Product) (bool, error) {
	if userID == "" {
		return false, ErrNoUser
	}

	m.mu.Lock()
	if m.pending[p.ID] {
		m.mu.Unlock()
		return m.IsLiked(p.ID), ErrBusy
	}
	was := m.liked[p.ID]
	m.pending[p.ID] = true
	m.set(p, !was)
	m.mu.Unlock()

	var err error
	if was {
		_, err = m.svc.Unlike(ctx, userID, p.ID)
	} else {
		_, err = m.svc.Like(ctx, userID, p.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, p.ID)
	if err != nil {
		m.set(p, was)
		m.err = api.UserMessage(err)
		return was, err
	}
	m.err = ""
	return !was, nil
}

func (m *Manager) set(p catalog.Product, liked bool) {
	if liked {
		m.liked[p.ID] = true
		m.products = append(m.products, p)
		return
	}
	delete(m.liked, p.ID)
	for i := range m.products {
		if m.products[i].ID == p.ID {
			m.products = append(m.products[:i:i], m.products[i+1:]...)
			break
		}
	}
}

package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

// MemoryStore keeps users, products and orders in process memory with the
// same semantics as the postgres repositories.
//
// Lock order: an order entry, then the store lock (briefly), then a product
// entry. The store lock is never held while waiting on an entry lock, and
// stock for different products never shares a lock.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]*domain.User
	products map[uuid.UUID]*productEntry
	orders   map[uuid.UUID]*orderEntry
}

type productEntry struct {
	mu      sync.Mutex
	product domain.Product
	deleted bool
}

type orderEntry struct {
	mu    sync.Mutex
	order domain.Order
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[uuid.UUID]*domain.User),
		products: make(map[uuid.UUID]*productEntry),
		orders:   make(map[uuid.UUID]*orderEntry),
	}
}

// Users returns a UserRepository view of the store
func (s *MemoryStore) Users() UserRepository { return &memoryUsers{s} }

// Products returns a ProductRepository view of the store
func (s *MemoryStore) Products() ProductRepository { return &memoryProducts{s} }

// Orders returns an OrderRepository view of the store
func (s *MemoryStore) Orders() OrderRepository { return &memoryOrders{s} }

func (s *MemoryStore) productEntry(id uuid.UUID) (*productEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.products[id]
	return e, ok
}

func (s *MemoryStore) orderEntry(id uuid.UUID) (*orderEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.orders[id]
	return e, ok
}

type memoryUsers struct{ s *MemoryStore }

func (r *memoryUsers) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return ErrUserAlreadyExists
		}
		if existing.Username == user.Username {
			return ErrUsernameTaken
		}
	}

	stored := *user
	r.s.users[user.ID] = &stored
	return nil
}

func (r *memoryUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			found := *u
			return &found, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *memoryUsers) FindByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	found := *u
	return &found, nil
}

func (r *memoryUsers) Count(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.users), nil
}

type memoryProducts struct{ s *MemoryStore }

func (r *memoryProducts) Create(_ context.Context, product *domain.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.products[product.ID]; exists {
		return fmt.Errorf("failed to create product: duplicate id %s", product.ID)
	}
	r.s.products[product.ID] = &productEntry{product: *product}
	return nil
}

func (r *memoryProducts) Update(_ context.Context, product *domain.Product) error {
	e, ok := r.s.productEntry(product.ID)
	if !ok {
		return ErrProductNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return ErrProductNotFound
	}

	product.CreatedAt = e.product.CreatedAt
	e.product = *product
	return nil
}

func (r *memoryProducts) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	e, ok := r.s.products[id]
	delete(r.s.products, id)
	r.s.mu.Unlock()

	if !ok {
		return ErrProductNotFound
	}

	// A reservation already holding the entry finishes first; later ones see it gone.
	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()
	return nil
}

func (r *memoryProducts) FindByID(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	e, ok := r.s.productEntry(id)
	if !ok {
		return nil, ErrProductNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, ErrProductNotFound
	}
	found := e.product
	return &found, nil
}

func (r *memoryProducts) List(_ context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	products := []*domain.Product{}
	for _, e := range r.snapshot() {
		e.mu.Lock()
		p, deleted := e.product, e.deleted
		e.mu.Unlock()

		if !deleted && filter.Matches(&p) {
			products = append(products, &p)
		}
	}

	sort.Slice(products, func(i, j int) bool {
		if !products[i].CreatedAt.Equal(products[j].CreatedAt) {
			return products[i].CreatedAt.Before(products[j].CreatedAt)
		}
		return products[i].ID.String() < products[j].ID.String()
	})
	return products, nil
}

func (r *memoryProducts) Categories(ctx context.Context) ([]string, error) {
	products, err := r.List(ctx, domain.ProductFilter{})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	categories := []string{}
	for _, p := range products {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		categories = append(categories, p.Category)
	}
	sort.Strings(categories)
	return categories, nil
}

func (r *memoryProducts) Count(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.products), nil
}

func (r *memoryProducts) snapshot() []*productEntry {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	entries := make([]*productEntry, 0, len(r.s.products))
	for _, e := range r.s.products {
		entries = append(entries, e)
	}
	return entries
}

type memoryOrders struct{ s *MemoryStore }

// Place checks and decrements stock inside the product's critical section,
// and publishes the order before leaving it.
func (r *memoryOrders) Place(_ context.Context, order *domain.Order) error {
	e, ok := r.s.productEntry(order.ProductID)
	if !ok {
		return ErrProductNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return ErrProductNotFound
	}

	if order.Quantity > e.product.Quantity {
		return fmt.Errorf("%w: requested %d, available %d", domain.ErrInsufficientStock, order.Quantity, e.product.Quantity)
	}

	if err := order.Price(&e.product); err != nil {
		return err
	}
	e.product.Quantity -= order.Quantity
	e.product.UpdatedAt = order.CreatedAt

	r.s.mu.Lock()
	r.s.orders[order.ID] = &orderEntry{order: *order}
	r.s.mu.Unlock()
	return nil
}

func (r *memoryOrders) FindByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	e, ok := r.s.orderEntry(id)
	if !ok {
		return nil, ErrOrderNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	found := e.order
	return &found, nil
}

func (r *memoryOrders) List(_ context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	r.s.mu.RLock()
	entries := make([]*orderEntry, 0, len(r.s.orders))
	for _, e := range r.s.orders {
		entries = append(entries, e)
	}
	r.s.mu.RUnlock()

	orders := []*domain.Order{}
	for _, e := range entries {
		e.mu.Lock()
		o := e.order
		e.mu.Unlock()

		if filter.Matches(&o) {
			orders = append(orders, &o)
		}
	}

	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID.String() < orders[j].ID.String()
	})
	return orders, nil
}

// TransitionStatus holds the order's lock for the whole check-and-set, and
// the product's lock while releasing stock.
func (r *memoryOrders) TransitionStatus(_ context.Context, id uuid.UUID, to domain.OrderStatus) (*domain.Order, domain.OrderStatus, error) {
	e, ok := r.s.orderEntry(id)
	if !ok {
		return nil, "", ErrOrderNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := domain.CheckTransition(e.order.Status, to); err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	if to.ReleasesStock() {
		if p, ok := r.s.productEntry(e.order.ProductID); ok {
			p.mu.Lock()
			if !p.deleted {
				p.product.Quantity += e.order.Quantity
				p.product.UpdatedAt = now
			}
			p.mu.Unlock()
		}
	}

	from := e.order.Status
	e.order.Status = to
	e.order.UpdatedAt = now
	updated := e.order
	return &updated, from, nil
}

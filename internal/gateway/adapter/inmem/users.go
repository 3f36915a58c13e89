package inmem

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"holistica/internal/domain"
)

// UserRepository keeps users in memory. It backs DB_DRIVER=memory and tests.
type UserRepository struct {
	now func() time.Time

	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]domain.User
	byEmail map[string]int64
}

// NewUserRepository returns an empty repository.
func NewUserRepository(clock func() time.Time) *UserRepository {
	return &UserRepository{
		now:     clock,
		nextID:  1,
		byID:    make(map[int64]domain.User),
		byEmail: make(map[string]int64),
	}
}

// Create stores u and fills in its ID and CreatedAt.
func (r *UserRepository) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[u.Email]; taken {
		return domain.ErrEmailTaken
	}
	u.ID = r.nextID
	u.CreatedAt = r.now()
	r.nextID++
	r.byID[u.ID] = *u
	r.byEmail[u.Email] = u.ID
	return nil
}

// GetByID returns the user with the given id.
func (r *UserRepository) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

// GetByEmail returns the user registered with email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	id, ok := r.byEmail[email]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return r.GetByID(ctx, id)
}

// List returns every user ordered by id.
func (r *UserRepository) List(_ context.Context) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]domain.User, 0, len(r.byID))
	for _, u := range r.byID {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.User) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return users, nil
}

// UpdateRole changes the role of user id.
func (r *UserRepository) UpdateRole(_ context.Context, id int64, role domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Role = role
	r.byID[id] = u
	return nil
}

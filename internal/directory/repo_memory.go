package directory

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is a simple in-memory directory for tests and early development.
type MemoryRepo struct {
	mu     sync.Mutex
	nextID int64
	users  []User
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{nextID: 1} }

func (r *MemoryRepo) Create(ctx context.Context, u User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username || existing.Email == u.Email || existing.Phone == u.Phone {
			return User{}, ErrInvalidArgument
		}
	}
	u.ID = r.nextID
	r.nextID++
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	r.users = append(r.users, u)
	return u, nil
}

func (r *MemoryRepo) ByID(ctx context.Context, id int64) (User, error) {
	return r.find(func(u User) bool { return u.ID == id })
}

func (r *MemoryRepo) ByUsername(ctx context.Context, username string) (User, error) {
	return r.find(func(u User) bool { return u.Username == username })
}

func (r *MemoryRepo) ByEmail(ctx context.Context, email string) (User, error) {
	return r.find(func(u User) bool { return u.Email == email })
}

func (r *MemoryRepo) ByPhone(ctx context.Context, phone string) (User, error) {
	return r.find(func(u User) bool { return u.Phone == phone })
}

func (r *MemoryRepo) List(ctx context.Context) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]User, len(r.users))
	copy(out, r.users)
	return out, nil
}

func (r *MemoryRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

func (r *MemoryRepo) find(match func(User) bool) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

package commlog

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is a mutex-guarded in-memory communication log for tests and
// early development.
type MemoryRepo struct {
	mu       sync.Mutex
	nextID   int64
	messages []Message
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{nextID: 1} }

func (r *MemoryRepo) Insert(ctx context.Context, m Message) (Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = r.nextID
	r.nextID++
	r.messages = append(r.messages, m)
	return m, nil
}

func (r *MemoryRepo) ByID(ctx context.Context, id int64) (Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return Message{}, ErrNotFound
}

func (r *MemoryRepo) AdvanceStatus(ctx context.Context, id int64, from, to Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		if r.messages[i].ID == id {
			if r.messages[i].Status != from {
				return false, nil
			}
			r.messages[i].Status = to
			return true, nil
		}
	}
	return false, ErrNotFound
}

func (r *MemoryRepo) ListForUser(ctx context.Context, userID int64, channel Channel) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, 0)
	for _, m := range r.messages {
		if !m.Involves(userID) {
			continue
		}
		if channel != "" && m.Channel != channel {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

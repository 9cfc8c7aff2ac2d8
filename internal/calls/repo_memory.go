package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is a mutex-guarded in-memory call store for tests and early
// development.
type MemoryRepo struct {
	mu     sync.Mutex
	nextID int64
	calls  []Call
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{nextID: 1} }

func (r *MemoryRepo) Insert(ctx context.Context, c Call) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = r.nextID
	r.nextID++
	r.calls = append(r.calls, c)
	return c, nil
}

func (r *MemoryRepo) ByID(ctx context.Context, id int64) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c.ID == id {
			return c, nil
		}
	}
	return Call{}, ErrNotFound
}

func (r *MemoryRepo) ByProviderCallID(ctx context.Context, providerCallID string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c.ProviderCallID != "" && c.ProviderCallID == providerCallID {
			return c, nil
		}
	}
	return Call{}, ErrNotFound
}

func (r *MemoryRepo) Terminate(ctx context.Context, id int64, outcome Status, endTime time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.calls {
		if r.calls[i].ID == id {
			if r.calls[i].Status != StatusOngoing {
				return false, nil
			}
			r.calls[i].Status = outcome
			end := endTime
			r.calls[i].EndTime = &end
			return true, nil
		}
	}
	return false, ErrNotFound
}

func (r *MemoryRepo) ListForUser(ctx context.Context, userID int64, direction Direction) ([]Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, 0)
	for _, c := range r.calls {
		if !c.Involves(userID) {
			continue
		}
		if direction != "" && c.Direction != direction {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.After(out[j].StartTime)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

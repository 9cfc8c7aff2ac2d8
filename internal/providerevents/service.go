package providerevents

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidEvent = errors.New("providerevents: invalid event")

// Repository is the persistence contract for the journal.
// Append-only: no update or delete methods exist.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service journals accepted provider deliveries.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("providerevents: repository not configured")
	}
	if e.EventID == "" || e.Kind == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

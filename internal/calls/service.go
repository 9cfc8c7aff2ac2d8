package calls

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ARPaule28/omnichannel/internal/directory"
	"github.com/ARPaule28/omnichannel/pkg/logger"
)

var (
	ErrNotFound          = errors.New("calls: call not found")
	ErrValidation        = errors.New("calls: invalid request")
	ErrInvalidTransition = errors.New("calls: invalid state transition")
	ErrDialFailed        = errors.New("calls: dial failed")
)

// Repository is the persistence contract for call records.
type Repository interface {
	Insert(ctx context.Context, c Call) (Call, error)
	ByID(ctx context.Context, id int64) (Call, error)
	ByProviderCallID(ctx context.Context, providerCallID string) (Call, error)

	// Terminate sets the terminal status and end time atomically, guarded on
	// the call still being ongoing. Returns false when the guard failed.
	Terminate(ctx context.Context, id int64, outcome Status, endTime time.Time) (bool, error)

	// ListForUser returns calls where the user is a party, optionally
	// filtered by direction, newest first with id as tie-break.
	ListForUser(ctx context.Context, userID int64, direction Direction) ([]Call, error)
}

// Directory is the subset of directory lookups used for weak party resolution.
type Directory interface {
	ByID(ctx context.Context, id int64) (directory.User, error)
	ByPhone(ctx context.Context, phone string) (directory.User, error)
}

// Dialer places and tears down calls at the telephony provider.
// Implemented by the telephony adapter; no provider types leak in here.
type Dialer interface {
	PlaceCall(ctx context.Context, from, to string) (providerCallID string, err error)
	EndCall(ctx context.Context, providerCallID string) error
}

// Service drives the call lifecycle.
type Service struct {
	repo   Repository
	dir    Directory
	dialer Dialer
	clock  func() time.Time
}

func NewService(repo Repository, dir Directory, dialer Dialer) *Service {
	return &Service{repo: repo, dir: dir, dialer: dialer, clock: time.Now}
}

// Originate places an outbound call from a member to a destination number.
//
// Dispatch-then-log policy: the provider is asked to place the call first and
// exactly one record is written reflecting the outcome. A failed dial is
// recorded as missed with the end time set, and ErrDialFailed is surfaced
// wrapping the provider error.
func (s *Service) Originate(ctx context.Context, callerID int64, destination string) (Call, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return Call{}, fmt.Errorf("%w: destination is required", ErrValidation)
	}

	caller, err := s.dir.ByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return Call{}, fmt.Errorf("%w: caller %d", ErrNotFound, callerID)
		}
		return Call{}, err
	}

	now := s.clock().UTC()
	c := Call{
		CallerID:        &caller.ID,
		CallerAddress:   caller.Phone,
		ReceiverAddress: destination,
		StartTime:       now,
		Status:          StatusOngoing,
		Direction:       DirectionOutbound,
		CreatedAt:       now,
	}
	if u, err := s.dir.ByPhone(ctx, destination); err == nil {
		c.ReceiverID = &u.ID
	}

	providerCallID, dialErr := s.dialer.PlaceCall(ctx, caller.Phone, destination)
	if dialErr != nil {
		end := now
		c.Status = StatusMissed
		c.EndTime = &end
		if stored, err := s.repo.Insert(ctx, c); err == nil {
			c = stored
		} else {
			return Call{}, err
		}
		return c, fmt.Errorf("%w: %v", ErrDialFailed, dialErr)
	}
	c.ProviderCallID = providerCallID

	return s.repo.Insert(ctx, c)
}

// NotifyInbound records a ringing inbound call reported by the provider
// webhook. Both legs are resolved weakly; an unknown caller keeps only the
// raw number.
func (s *Service) NotifyInbound(ctx context.Context, fromAddr, toAddr, providerCallID string) (Call, error) {
	fromAddr = strings.TrimSpace(fromAddr)
	toAddr = strings.TrimSpace(toAddr)
	if fromAddr == "" || toAddr == "" {
		return Call{}, fmt.Errorf("%w: caller and callee numbers are required", ErrValidation)
	}

	now := s.clock().UTC()
	c := Call{
		CallerAddress:   fromAddr,
		ReceiverAddress: toAddr,
		StartTime:       now,
		Status:          StatusOngoing,
		Direction:       DirectionInbound,
		ProviderCallID:  providerCallID,
		CreatedAt:       now,
	}
	if u, err := s.dir.ByPhone(ctx, fromAddr); err == nil {
		c.CallerID = &u.ID
	}
	if u, err := s.dir.ByPhone(ctx, toAddr); err == nil {
		c.ReceiverID = &u.ID
	}

	return s.repo.Insert(ctx, c)
}

// Terminate moves an ongoing call to a terminal outcome. Calling it on an
// already-terminal call fails with ErrInvalidTransition; the first outcome
// always wins.
func (s *Service) Terminate(ctx context.Context, id int64, outcome Status) (Call, error) {
	if !outcome.TerminalOutcome() {
		return Call{}, fmt.Errorf("%w: outcome must be completed or missed, got %q", ErrValidation, outcome)
	}
	c, err := s.repo.ByID(ctx, id)
	if err != nil {
		return Call{}, err
	}
	if c.Terminal() {
		return Call{}, fmt.Errorf("%w: call %d already %s", ErrInvalidTransition, id, c.Status)
	}

	end := s.clock().UTC()
	ok, err := s.repo.Terminate(ctx, id, outcome, end)
	if err != nil {
		return Call{}, err
	}
	if !ok {
		cur, err := s.repo.ByID(ctx, id)
		if err != nil {
			return Call{}, err
		}
		return Call{}, fmt.Errorf("%w: call %d already %s", ErrInvalidTransition, id, cur.Status)
	}
	c.Status = outcome
	c.EndTime = &end
	return c, nil
}

// Decline rejects an ongoing call, recording it as missed.
func (s *Service) Decline(ctx context.Context, id int64) (Call, error) {
	return s.Terminate(ctx, id, StatusMissed)
}

// HangUp completes an ongoing call and asks the provider to tear down the
// leg when a provider call id is known. Provider teardown is best-effort:
// the local record is terminal either way.
func (s *Service) HangUp(ctx context.Context, id int64) (Call, error) {
	c, err := s.Terminate(ctx, id, StatusCompleted)
	if err != nil {
		return Call{}, err
	}
	if c.ProviderCallID != "" {
		if err := s.dialer.EndCall(ctx, c.ProviderCallID); err != nil {
			logger.From(ctx).Warn("provider end_call failed", "call_id", c.ID, "err", err)
		}
	}
	return c, nil
}

// TerminateByProviderID resolves a provider call id to the local record and
// terminates it. Used by the voice status webhook.
func (s *Service) TerminateByProviderID(ctx context.Context, providerCallID string, outcome Status) (Call, error) {
	if strings.TrimSpace(providerCallID) == "" {
		return Call{}, fmt.Errorf("%w: provider call id is required", ErrValidation)
	}
	c, err := s.repo.ByProviderCallID(ctx, providerCallID)
	if err != nil {
		return Call{}, err
	}
	return s.Terminate(ctx, c.ID, outcome)
}

// ByProviderID resolves a provider call id to the local record.
func (s *Service) ByProviderID(ctx context.Context, providerCallID string) (Call, error) {
	if strings.TrimSpace(providerCallID) == "" {
		return Call{}, fmt.Errorf("%w: provider call id is required", ErrValidation)
	}
	return s.repo.ByProviderCallID(ctx, providerCallID)
}

// ListForUser returns the user's call history, newest first.
func (s *Service) ListForUser(ctx context.Context, userID int64, direction Direction) ([]Call, error) {
	if direction != "" && !direction.Valid() {
		return nil, fmt.Errorf("%w: unknown direction %q", ErrValidation, direction)
	}
	return s.repo.ListForUser(ctx, userID, direction)
}

package commlog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ARPaule28/omnichannel/internal/directory"
)

var (
	ErrNotFound          = errors.New("commlog: message not found")
	ErrValidation        = errors.New("commlog: invalid message")
	ErrInvalidTransition = errors.New("commlog: invalid status transition")
)

// Repository is the persistence contract for the communication log.
// Append-mostly: Insert plus a compare-and-set status advance, nothing else.
type Repository interface {
	Insert(ctx context.Context, m Message) (Message, error)
	ByID(ctx context.Context, id int64) (Message, error)

	// AdvanceStatus moves a message from one status to another atomically.
	// Returns false when the message no longer holds the expected status.
	AdvanceStatus(ctx context.Context, id int64, from, to Status) (bool, error)

	// ListForUser returns messages where the user is sender or receiver,
	// optionally filtered by channel, newest first with id as tie-break.
	ListForUser(ctx context.Context, userID int64, channel Channel) ([]Message, error)
}

// Directory is the subset of directory lookups the log needs for weak
// counterparty resolution.
type Directory interface {
	ByID(ctx context.Context, id int64) (directory.User, error)
	ByEmail(ctx context.Context, email string) (directory.User, error)
	ByPhone(ctx context.Context, phone string) (directory.User, error)
}

// Service owns all writes to the message half of the communication log.
type Service struct {
	repo  Repository
	dir   Directory
	clock func() time.Time
}

func NewService(repo Repository, dir Directory) *Service {
	return &Service{repo: repo, dir: dir, clock: time.Now}
}

// RecordRequest describes one outbound send event.
// Status is supplied by the channel adapter and reflects the dispatch
// outcome: sent when the external call succeeded, failed when it did not.
// Chat has no external dispatch and always records sent.
type RecordRequest struct {
	SenderID      int64
	To            string
	Channel       Channel
	Subject       string
	Body          string
	AttachmentKey string
	Status        Status
}

// ValidateOutbound runs Record's validation without writing anything.
// Channel adapters call it before dispatching so that a request that can
// never be logged is also never sent.
func (s *Service) ValidateOutbound(ctx context.Context, req RecordRequest) error {
	if !req.Channel.Valid() {
		return fmt.Errorf("%w: unknown channel %q", ErrValidation, req.Channel)
	}
	if strings.TrimSpace(req.To) == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if strings.TrimSpace(req.Body) == "" && req.AttachmentKey == "" {
		return fmt.Errorf("%w: empty body", ErrValidation)
	}
	if req.Status != "" && req.Status != StatusSent && req.Status != StatusFailed {
		return fmt.Errorf("%w: outbound status must be sent or failed", ErrValidation)
	}

	if _, err := s.dir.ByID(ctx, req.SenderID); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return fmt.Errorf("%w: sender %d", ErrNotFound, req.SenderID)
		}
		return err
	}

	if req.Channel == ChannelChat {
		// Chat has no external network; the receiver must be a member.
		if _, ok := s.resolve(ctx, req.Channel, strings.TrimSpace(req.To)); !ok {
			return fmt.Errorf("%w: chat receiver %q is not a member", ErrValidation, req.To)
		}
	}
	return nil
}

// Record validates and appends one outbound message.
// The sender must be a directory member; the receiver is resolved weakly and
// kept as a raw address when unknown.
func (s *Service) Record(ctx context.Context, req RecordRequest) (Message, error) {
	if err := s.ValidateOutbound(ctx, req); err != nil {
		return Message{}, err
	}
	if req.Status == "" {
		req.Status = StatusSent
	}

	sender, err := s.dir.ByID(ctx, req.SenderID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return Message{}, fmt.Errorf("%w: sender %d", ErrNotFound, req.SenderID)
		}
		return Message{}, err
	}

	m := Message{
		SenderID:        &sender.ID,
		SenderAddress:   senderAddress(sender, req.Channel),
		ReceiverAddress: strings.TrimSpace(req.To),
		Channel:         req.Channel,
		Subject:         strings.TrimSpace(req.Subject),
		Body:            req.Body,
		AttachmentKey:   req.AttachmentKey,
		Status:          req.Status,
		CreatedAt:       s.clock().UTC(),
	}

	if u, ok := s.resolve(ctx, req.Channel, m.ReceiverAddress); ok {
		m.ReceiverID = &u.ID
	}

	return s.repo.Insert(ctx, m)
}

// InboundRequest describes one externally received message (webhook or
// provider pull). Both parties are resolved weakly.
type InboundRequest struct {
	From          string
	To            string
	Channel       Channel
	Subject       string
	Body          string
	AttachmentKey string
}

// RecordInbound appends a received message. Unknown senders are legal: the
// raw external address is stored and the member reference stays nil.
func (s *Service) RecordInbound(ctx context.Context, req InboundRequest) (Message, error) {
	if !req.Channel.Valid() {
		return Message{}, fmt.Errorf("%w: unknown channel %q", ErrValidation, req.Channel)
	}
	if strings.TrimSpace(req.From) == "" {
		return Message{}, fmt.Errorf("%w: sender address is required", ErrValidation)
	}
	if strings.TrimSpace(req.Body) == "" && req.AttachmentKey == "" {
		return Message{}, fmt.Errorf("%w: empty body", ErrValidation)
	}

	m := Message{
		SenderAddress:   strings.TrimSpace(req.From),
		ReceiverAddress: strings.TrimSpace(req.To),
		Channel:         req.Channel,
		Subject:         strings.TrimSpace(req.Subject),
		Body:            req.Body,
		AttachmentKey:   req.AttachmentKey,
		Status:          StatusReceived,
		CreatedAt:       s.clock().UTC(),
	}
	if u, ok := s.resolve(ctx, req.Channel, m.SenderAddress); ok {
		m.SenderID = &u.ID
	}
	if u, ok := s.resolve(ctx, req.Channel, m.ReceiverAddress); ok {
		m.ReceiverID = &u.ID
	}

	return s.repo.Insert(ctx, m)
}

// Get returns one message by id.
func (s *Service) Get(ctx context.Context, id int64) (Message, error) {
	return s.repo.ByID(ctx, id)
}

// AdvanceStatus moves a message along sent -> delivered -> read.
// Any other transition fails with ErrInvalidTransition.
func (s *Service) AdvanceStatus(ctx context.Context, id int64, next Status) (Message, error) {
	if !next.Valid() {
		return Message{}, fmt.Errorf("%w: unknown status %q", ErrValidation, next)
	}
	m, err := s.repo.ByID(ctx, id)
	if err != nil {
		return Message{}, err
	}
	if !m.Status.CanAdvanceTo(next) {
		return Message{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.Status, next)
	}
	ok, err := s.repo.AdvanceStatus(ctx, id, m.Status, next)
	if err != nil {
		return Message{}, err
	}
	if !ok {
		// Lost a race with another writer; re-read to report the real state.
		cur, err := s.repo.ByID(ctx, id)
		if err != nil {
			return Message{}, err
		}
		return Message{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, next)
	}
	m.Status = next
	return m, nil
}

// List returns the user's messages, optionally filtered by channel,
// newest first.
func (s *Service) List(ctx context.Context, userID int64, channel Channel) ([]Message, error) {
	if channel != "" && !channel.Valid() {
		return nil, fmt.Errorf("%w: unknown channel %q", ErrValidation, channel)
	}
	return s.repo.ListForUser(ctx, userID, channel)
}

// resolve maps a channel address to a member, when one exists.
func (s *Service) resolve(ctx context.Context, ch Channel, addr string) (directory.User, bool) {
	if addr == "" {
		return directory.User{}, false
	}
	var (
		u   directory.User
		err error
	)
	switch ch {
	case ChannelEmail:
		u, err = s.dir.ByEmail(ctx, addr)
	default:
		u, err = s.dir.ByPhone(ctx, addr)
	}
	if err != nil {
		return directory.User{}, false
	}
	return u, true
}

func senderAddress(u directory.User, ch Channel) string {
	if ch == ChannelEmail {
		return u.Email
	}
	return u.Phone
}

package timeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ARPaule28/omnichannel/internal/calls"
	"github.com/ARPaule28/omnichannel/internal/commlog"
	"github.com/ARPaule28/omnichannel/internal/directory"
)

var ErrInvalidRequest = errors.New("timeline: invalid request")

const summaryLimit = 80

// MessageSource supplies the message half of the communication log.
type MessageSource interface {
	List(ctx context.Context, userID int64, channel commlog.Channel) ([]commlog.Message, error)
}

// CallSource supplies the call half of the communication log.
type CallSource interface {
	ListForUser(ctx context.Context, userID int64, direction calls.Direction) ([]calls.Call, error)
}

// Directory resolves member ids to display names.
type Directory interface {
	ByID(ctx context.Context, id int64) (directory.User, error)
}

// Service builds the unified per-user timeline. Pure read-side projection,
// recomputed on every call.
type Service struct {
	messages MessageSource
	calls    CallSource
	dir      Directory
}

func NewService(messages MessageSource, callSource CallSource, dir Directory) *Service {
	return &Service{messages: messages, calls: callSource, dir: dir}
}

// Build merges all messages and calls the user is a party to into one view
// sorted by timestamp descending, insertion id as tie-break.
func (s *Service) Build(ctx context.Context, userID int64) ([]Entry, error) {
	if userID <= 0 {
		return nil, ErrInvalidRequest
	}

	msgs, err := s.messages.List(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	callRows, err := s.calls.ListForUser(ctx, userID, "")
	if err != nil {
		return nil, err
	}

	// Display names are cached per build; the same two parties dominate.
	names := map[int64]string{}

	out := make([]Entry, 0, len(msgs)+len(callRows))
	for _, m := range msgs {
		out = append(out, s.messageEntry(ctx, userID, m, names))
	}
	for _, c := range callRows {
		out = append(out, s.callEntry(ctx, userID, c, names))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].RecordID > out[j].RecordID
	})
	return out, nil
}

func (s *Service) messageEntry(ctx context.Context, userID int64, m commlog.Message, names map[int64]string) Entry {
	var partyID *int64
	var partyAddr string
	if m.SenderID != nil && *m.SenderID == userID {
		partyID, partyAddr = m.ReceiverID, m.ReceiverAddress
	} else {
		partyID, partyAddr = m.SenderID, m.SenderAddress
	}

	summary := m.Body
	if m.Channel == commlog.ChannelEmail && m.Subject != "" {
		summary = m.Subject
	}

	return Entry{
		Kind:          Kind(m.Channel),
		Counterparty:  s.displayName(ctx, partyID, partyAddr, names),
		Summary:       truncate(summary, summaryLimit),
		Timestamp:     m.CreatedAt,
		HasAttachment: m.HasAttachment(),
		Outcome:       string(m.Status),
		RecordID:      m.ID,
	}
}

func (s *Service) callEntry(ctx context.Context, userID int64, c calls.Call, names map[int64]string) Entry {
	var partyID *int64
	var partyAddr string
	if c.CallerID != nil && *c.CallerID == userID {
		partyID, partyAddr = c.ReceiverID, c.ReceiverAddress
	} else {
		partyID, partyAddr = c.CallerID, c.CallerAddress
	}

	summary := fmt.Sprintf("%s call", c.Direction)
	if d := c.Duration(); d > 0 {
		summary = fmt.Sprintf("%s call, %s", c.Direction, d.Round(time.Second))
	}

	return Entry{
		Kind:         KindCall,
		Counterparty: s.displayName(ctx, partyID, partyAddr, names),
		Summary:      summary,
		Timestamp:    c.StartTime,
		Outcome:      string(c.Status),
		RecordID:     c.ID,
	}
}

func (s *Service) displayName(ctx context.Context, id *int64, rawAddr string, names map[int64]string) string {
	if id == nil {
		return rawAddr
	}
	if name, ok := names[*id]; ok {
		return name
	}
	u, err := s.dir.ByID(ctx, *id)
	if err != nil {
		// Weak reference: a missing member falls back to the raw address.
		return rawAddr
	}
	names[*id] = u.Username
	return u.Username
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

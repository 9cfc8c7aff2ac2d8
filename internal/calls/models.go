package calls

import "time"

// Call is one voice call record in the communication log.
//
// Caller and receiver are weak references, same policy as messages: the raw
// phone number is always stored and the member id is filled in only when the
// number belongs to a directory entry. This makes external parties first-class
// on both inbound and outbound legs.
//
// State machine: ongoing -> completed | missed. Terminal states never change
// and EndTime, once set, is never unset.
type Call struct {
	ID int64 `json:"id" db:"id"`

	CallerID      *int64 `json:"caller_id,omitempty" db:"caller_id"`
	CallerAddress string `json:"caller_address" db:"caller_address"`

	ReceiverID      *int64 `json:"receiver_id,omitempty" db:"receiver_id"`
	ReceiverAddress string `json:"receiver_address" db:"receiver_address"`

	StartTime time.Time  `json:"start_time" db:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty" db:"end_time"`

	Status    Status    `json:"status" db:"status"`
	Direction Direction `json:"direction" db:"direction"`

	// ProviderCallID correlates with the telephony provider's own call
	// identifier, used for later control operations such as hang-up.
	ProviderCallID string `json:"provider_call_id,omitempty" db:"provider_call_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Terminal reports whether the call reached a final state.
func (c Call) Terminal() bool {
	return c.Status == StatusCompleted || c.Status == StatusMissed
}

// Involves reports whether the given user is a party to the call.
func (c Call) Involves(userID int64) bool {
	if c.CallerID != nil && *c.CallerID == userID {
		return true
	}
	if c.ReceiverID != nil && *c.ReceiverID == userID {
		return true
	}
	return false
}

// Duration returns the call duration, zero while the call is ongoing.
func (c Call) Duration() time.Duration {
	if c.EndTime == nil {
		return 0
	}
	return c.EndTime.Sub(c.StartTime)
}

type Status string

const (
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusMissed    Status = "missed"
)

// TerminalOutcome reports whether s is a legal terminate outcome.
func (s Status) TerminalOutcome() bool {
	return s == StatusCompleted || s == StatusMissed
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

func (d Direction) Valid() bool {
	return d == DirectionInbound || d == DirectionOutbound
}

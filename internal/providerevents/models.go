package providerevents

import "time"

// Event is an immutable journal record of one accepted provider webhook
// delivery.
//
// Invariants:
// - Events are never updated or deleted.
// - Writes are best-effort; the main webhook flow never blocks on them.
//
// The journal backstops the Redis idempotency claims: replay disputes and
// provider-side debugging read from here.
type Event struct {
	ID string `json:"id" db:"id"`

	// EventID is the provider's own identifier for the delivery
	// (MessageSid, CallSid plus status, ...). Unique per kind.
	EventID string `json:"event_id" db:"event_id"`

	Kind EventKind `json:"kind" db:"kind"`

	FromAddr string `json:"from_addr,omitempty" db:"from_addr"`
	ToAddr   string `json:"to_addr,omitempty" db:"to_addr"`

	// Payload is the raw provider form, re-encoded as JSON.
	Payload string `json:"payload,omitempty" db:"payload"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventKind string

const (
	EventKindSMSReceived EventKind = "sms_received"
	EventKindCallRing    EventKind = "call_ring"
	EventKindCallStatus  EventKind = "call_status"
)

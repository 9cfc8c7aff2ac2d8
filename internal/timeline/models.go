package timeline

import "time"

// Entry is one row of the unified timeline: every channel normalized into a
// single shape, newest first.
type Entry struct {
	Kind Kind `json:"kind"`

	// Counterparty is the display name of the other party, or the raw
	// external address when they are not a directory member.
	Counterparty string `json:"counterparty"`

	Summary       string    `json:"summary"`
	Timestamp     time.Time `json:"timestamp"`
	HasAttachment bool      `json:"has_attachment"`

	// Outcome carries the message status or the call status.
	Outcome string `json:"outcome"`

	// RecordID is the insertion id of the underlying record; it breaks
	// ordering ties between entries with equal timestamps.
	RecordID int64 `json:"record_id"`
}

type Kind string

const (
	KindEmail Kind = "email"
	KindSMS   Kind = "sms"
	KindChat  Kind = "chat"
	KindCall  Kind = "call"
)

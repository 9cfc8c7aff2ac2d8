package commlog

import "time"

// Message is one append-only communication log record for the email, sms and
// chat channels. Voice calls live in internal/calls; the timeline merges both.
//
// Invariants:
// - Rows are never deleted; the only mutation is status advancement.
// - Sender and receiver are weak references: a nil id means the counterparty
//   is not a directory member and the raw address column carries the identity.
// - Attachments are stored out of row and referenced by an opaque key.
type Message struct {
	ID int64 `json:"id" db:"id"`

	SenderID      *int64 `json:"sender_id,omitempty" db:"sender_id"`
	SenderAddress string `json:"sender_address,omitempty" db:"sender_address"`

	ReceiverID      *int64 `json:"receiver_id,omitempty" db:"receiver_id"`
	ReceiverAddress string `json:"receiver_address,omitempty" db:"receiver_address"`

	Channel Channel `json:"channel" db:"channel"`

	// Subject is used by the email channel only.
	Subject string `json:"subject,omitempty" db:"subject"`
	Body    string `json:"body" db:"body"`

	// AttachmentKey is an opaque attachment store reference, never a raw path.
	AttachmentKey string `json:"attachment_key,omitempty" db:"attachment_key"`

	Status Status `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// HasAttachment reports whether an attachment is referenced.
func (m Message) HasAttachment() bool { return m.AttachmentKey != "" }

// Involves reports whether the given user is a party to the message.
func (m Message) Involves(userID int64) bool {
	if m.SenderID != nil && *m.SenderID == userID {
		return true
	}
	if m.ReceiverID != nil && *m.ReceiverID == userID {
		return true
	}
	return false
}

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelChat  Channel = "chat"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelChat:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusReceived  Status = "received"
	StatusFailed    Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusSent, StatusDelivered, StatusRead, StatusReceived, StatusFailed:
		return true
	default:
		return false
	}
}

// CanAdvanceTo reports whether the status may move to next.
// The only legal chain is sent -> delivered -> read; received and failed are
// terminal from creation.
func (s Status) CanAdvanceTo(next Status) bool {
	switch s {
	case StatusSent:
		return next == StatusDelivered
	case StatusDelivered:
		return next == StatusRead
	default:
		return false
	}
}

package directory

import "time"

// User is a directory entry. Username, email and phone are unique; any of
// them can be used to weakly resolve a counterparty on a message or call.
//
// Users are provisioned at seed time (or registration) and immutable except
// for the credential.
type User struct {
	ID       int64  `json:"id" db:"id"`
	Username string `json:"username" db:"username"`
	Email    string `json:"email" db:"email"`
	Phone    string `json:"phone" db:"phone_number"`

	// PasswordHash is a bcrypt hash. Never serialized.
	PasswordHash string `json:"-" db:"password_hash"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

package auth

import "time"

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// User is a sign-in account. Every user maps to exactly one person in the
// directory; the person record carries the workforce data, the user record
// carries credentials.
type User struct {
	ID           string    `json:"id"`
	PersonID     string    `json:"person_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RefreshToken is the persisted half of an opaque refresh credential. Only a
// hash of the client-held secret is stored.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}

package core

import "time"

// Session represents an authenticated wallet session
type Session struct {
	Address   string    // Ethereum address of the user
	IssuedAt  time.Time // When the session was created
	ExpiresAt time.Time // When the session expires
}

// DefaultSessionTTL is how long a session token stays valid. Expiry is
// the only termination path; there is no server-side revocation list.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Expired reports whether the session is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

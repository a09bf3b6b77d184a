package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims are the standard claims carried by a session token.
// The wallet address is the subject.
type SessionClaims struct {
	jwt.RegisteredClaims
}

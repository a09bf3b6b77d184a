package tokenizer

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/ports"
)

// AudienceSession scopes session tokens so they cannot be confused
// with other token kinds signed by the same key.
const AudienceSession = "tollgate:session"

// JWTTokenizer implements the SessionTokenizer interface using JWT
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey) ports.SessionTokenizer {
	return &JWTTokenizer{signKey: signKey}
}

// Issue converts a Session to a signed JWT token
func (j *JWTTokenizer) Issue(session *core.Session) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.Address,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signedToken, nil
}

// Verify parses a session token and returns the session it carries.
// Absent, malformed and expired tokens all map to ErrUnauthenticated.
func (j *JWTTokenizer) Verify(tokenStr string) (*core.Session, error) {
	if tokenStr == "" {
		return nil, core.ErrUnauthenticated
	}

	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	}, jwt.WithAudience(AudienceSession))

	if err != nil || !token.Valid {
		return nil, core.ErrUnauthenticated
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, core.ErrUnauthenticated
	}

	session := &core.Session{
		Address:   claims.Subject,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}

	return session, nil
}

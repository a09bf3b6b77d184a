package ports

import "github.com/layer-3/tollgate/core"

// SessionTokenizer converts between sessions and opaque signed tokens
type SessionTokenizer interface {
	// Issue mints a signed token for the session
	Issue(session *core.Session) (string, error)

	// Verify validates a token and returns the session it carries
	Verify(token string) (*core.Session, error)
}

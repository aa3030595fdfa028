package session

import (
	"context"

	"github.com/duetapp/duet/internal/couple"
	"github.com/duetapp/duet/internal/user"
)

// Session is the resolved identity state for one request: the signed-in user
// and, when paired, the partner profile and couple record. A zero Session
// means unauthenticated. The couple reference may lag behind the database
// (pairing completes asynchronously); callers that need it fresh go through
// Service.RefreshCoupleData.
type Session struct {
	User    *user.User
	Partner *user.User
	Couple  *couple.Couple
}

// Authenticated reports whether a user is signed in.
func (s *Session) Authenticated() bool {
	return s != nil && s.User != nil
}

type contextKey int

const sessionContextKey contextKey = iota

// ContextWithSession returns a new context carrying the given session.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// FromContext extracts the session from the context. It never returns nil;
// requests outside the middleware see an unauthenticated session.
func FromContext(ctx context.Context) *Session {
	if sess, ok := ctx.Value(sessionContextKey).(*Session); ok && sess != nil {
		return sess
	}
	return &Session{}
}

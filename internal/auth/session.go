package auth

import (
	"context"
	"time"
)

type sessionContextKey struct{}

// ValidAt reports whether t falls within [NotBefore, ExpiresAt).
func (s Session) ValidAt(t time.Time) bool {
	return !t.Before(s.NotBefore) && t.Before(s.ExpiresAt)
}

// WithSession returns a copy of ctx carrying session.
func WithSession(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, session)
}

// SessionFromContext returns the session injected by the authorization
// middleware, if any.
func SessionFromContext(ctx context.Context) (Session, bool) {
	session, ok := ctx.Value(sessionContextKey{}).(Session)
	if !ok || session.AccountID < 1 {
		return Session{}, false
	}
	return session, true
}

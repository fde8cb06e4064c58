// Package session implements server-side sessions for the web boundary.
//
// HOW A REQUEST FINDS ITS SESSION:
//
//	Cookie: sid=<HS256 JWT, sub = session id>
//	        │
//	        ▼ Signer.Verify
//	session id ──► Store.Get ──► *Session (or anonymous)
//	        │
//	        ▼ Manager.Middleware
//	*Handle on the request context
//
// The cookie carries only a signed pointer; the state itself (who is logged
// in, the pending flash) stays on the server. Expiry is absolute: a session
// lives at most TTL from issuance, activity does not extend it.
package session

import (
	"maps"
	"time"
)

// DefaultTTL is the absolute lifetime of a session.
const DefaultTTL = 24 * time.Hour

// Flash is a one-shot notice for the next page render.
// FormData holds the fields to refill a form with. It never holds a password.
type Flash struct {
	Error    string
	FormData map[string]string
}

// Session is the server-side state behind one cookie.
// UserID 0 means anonymous: such a session exists only to carry a Flash.
type Session struct {
	ID        string
	UserID    int64
	UserName  string
	Flash     *Flash
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpiredAt reports whether the session is past its absolute expiry at t.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// IsAuthenticated reports whether the session carries a user.
func (s *Session) IsAuthenticated() bool {
	return s.UserID != 0
}

// clone returns a deep copy so that stored state is never shared between
// concurrent requests.
func (s *Session) clone() *Session {
	out := *s
	if s.Flash != nil {
		f := *s.Flash
		f.FormData = maps.Clone(s.Flash.FormData)
		out.Flash = &f
	}
	return &out
}

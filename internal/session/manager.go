package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/oops"
)

// DefaultCookieName is the name of the session cookie.
const DefaultCookieName = "sid"

// idBytes is the entropy of a session id before hex encoding.
const idBytes = 32

// Options configure a Manager.
type Options struct {
	CookieName string
	TTL        time.Duration
	// Secure sets the cookie's Secure attribute. True in production only,
	// so local development over plain HTTP keeps working.
	Secure bool
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Manager binds sessions to requests through a signed cookie.
type Manager struct {
	store  Store
	signer *Signer
	opts   Options
	logger *slog.Logger
}

func NewManager(store Store, signer *Signer, opts Options, logger *slog.Logger) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		store:  store,
		signer: signer,
		opts:   opts,
		logger: logger,
	}
}

// Store exposes the backing store (the metrics gauge reads Len from it).
func (m *Manager) Store() Store {
	return m.store
}

// contextKey is an unexported type so no other package can collide with
// or read the handle key.
type contextKey string

const handleKey contextKey = "session"

// Middleware resolves the session cookie and puts a *Handle on the context.
//
// A missing, tampered, expired or unknown cookie all yield an anonymous
// handle. The request is never rejected here; that is the gate's job.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := &Handle{m: m, w: w}
		h.sess = m.load(r)

		ctx := context.WithValue(r.Context(), handleKey, h)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Manager) load(r *http.Request) *Session {
	cookie, err := r.Cookie(m.opts.CookieName)
	if err != nil {
		// http.ErrNoCookie: anonymous, not an error
		return nil
	}

	id, err := m.signer.VerifyAt(cookie.Value, m.opts.Now())
	if err != nil {
		m.logger.Debug("rejected session cookie", "error", err)
		return nil
	}

	s, err := m.store.Get(r.Context(), id)
	if err != nil {
		return nil
	}
	return s
}

// FromContext returns the handle installed by Manager.Middleware.
func FromContext(ctx context.Context) (*Handle, bool) {
	h, ok := ctx.Value(handleKey).(*Handle)
	return h, ok
}

// Handle is the per-request view of a session.
// It is owned by one request goroutine and is not safe for concurrent use.
type Handle struct {
	m    *Manager
	w    http.ResponseWriter
	sess *Session
}

// Session returns a copy of the current session, if any.
func (h *Handle) Session() (Session, bool) {
	if h.sess == nil {
		return Session{}, false
	}
	return *h.sess.clone(), true
}

// UserID returns the authenticated user's id, or 0 for an anonymous request.
func (h *Handle) UserID() int64 {
	if h.sess == nil {
		return 0
	}
	return h.sess.UserID
}

// IsAuthenticated reports whether the request carries a logged-in session.
func (h *Handle) IsAuthenticated() bool {
	return h.sess != nil && h.sess.IsAuthenticated()
}

// Establish starts an authenticated session for userID.
//
// SESSION FIXATION:
// A fresh id is always issued and any previous session is discarded, so an
// id planted before login can never become an authenticated one.
func (h *Handle) Establish(ctx context.Context, userID int64, userName string) error {
	if h.sess != nil {
		if err := h.m.store.Delete(ctx, h.sess.ID); err != nil {
			return oops.Code("SESSION_DELETE_FAILED").Wrap(err)
		}
		h.sess = nil
	}

	s, err := h.m.newSession()
	if err != nil {
		return err
	}
	s.UserID = userID
	s.UserName = userName

	return h.persist(ctx, s)
}

// SetFlash stores a one-shot notice, creating an anonymous session if the
// request has none.
func (h *Handle) SetFlash(ctx context.Context, f Flash) error {
	s := h.sess
	if s == nil {
		var err error
		if s, err = h.m.newSession(); err != nil {
			return err
		}
	} else {
		s = s.clone()
	}
	s.Flash = &f

	return h.persist(ctx, s)
}

// PopFlash returns the pending flash and clears it. A second call returns nil.
func (h *Handle) PopFlash(ctx context.Context) *Flash {
	if h.sess == nil || h.sess.Flash == nil {
		return nil
	}

	f := h.sess.Flash
	h.sess.Flash = nil
	if err := h.m.store.Save(ctx, h.sess); err != nil {
		h.m.logger.Error("failed to clear flash", "error", err)
	}
	return f
}

// Destroy removes the session and expires the cookie. Safe to call on an
// anonymous request.
func (h *Handle) Destroy(ctx context.Context) error {
	if h.sess != nil {
		if err := h.m.store.Delete(ctx, h.sess.ID); err != nil {
			return oops.Code("SESSION_DELETE_FAILED").Wrap(err)
		}
		h.sess = nil
	}

	http.SetCookie(h.w, &http.Cookie{
		Name:     h.m.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// persist saves s, issues its cookie and makes it the handle's session.
func (h *Handle) persist(ctx context.Context, s *Session) error {
	token, err := h.m.signer.Sign(s.ID, s.CreatedAt, s.ExpiresAt)
	if err != nil {
		return err
	}
	if err := h.m.store.Save(ctx, s); err != nil {
		return oops.Code("SESSION_SAVE_FAILED").Wrap(err)
	}

	maxAge := int(s.ExpiresAt.Sub(h.m.opts.Now()).Seconds())
	http.SetCookie(h.w, &http.Cookie{
		Name:     h.m.opts.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	h.sess = s
	return nil
}

func (m *Manager) newSession() (*Session, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	now := m.opts.Now()
	return &Session{
		ID:        id,
		CreatedAt: now,
		ExpiresAt: now.Add(m.opts.TTL),
	}, nil
}

// newID returns 32 bytes from crypto/rand, hex encoded.
func newID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("SESSION_ID_FAILED").Wrapf(err, "reading random bytes")
	}
	return hex.EncodeToString(b), nil
}

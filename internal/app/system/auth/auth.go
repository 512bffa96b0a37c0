// Package auth resolves the per-request principal.
//
// Two credential paths feed the same models.Session:
//
//   - Browser traffic carries a signed session cookie holding the identity
//     ID. The SessionFetcher re-resolves the account and memberships on
//     every request so flag changes, disables, and revocations take effect
//     immediately.
//   - API traffic carries HTTP basic auth with an access key ID and secret.
//     The fetcher verifies the secret against the stored hash and builds a
//     session for the key's account.
//
// Requests with neither credential proceed with a nil session (anonymous).
package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/mlanders/datahub/internal/domain/models"
)

const (
	identityIDKey = "identity_id"
)

// SessionFetcher resolves credentials into a fully populated session.
// The store layer provides the implementation.
type SessionFetcher interface {
	// SessionByIdentity builds a session for a cookie-authenticated
	// identity. Returns a session with a nil Account when the identity has
	// not created an account yet.
	SessionByIdentity(ctx context.Context, identityID string) (*models.Session, error)

	// SessionByAPIKey verifies the secret and builds a session for the
	// key's account. Returns nil with no error for unknown, disabled, or
	// expired keys and wrong secrets; the request then proceeds anonymous.
	SessionByAPIKey(ctx context.Context, accessKeyID, secret string) (*models.Session, error)
}

// SessionManager issues and resolves session cookies and API credentials.
type SessionManager struct {
	store   *sessions.CookieStore
	name    string
	fetcher SessionFetcher
	log     *zap.Logger
}

// NewSessionManager builds a SessionManager. The session key signs cookies;
// an independent random block key encrypts them so identity IDs are never
// readable client-side.
func NewSessionManager(sessionKey, name, domain string, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide 32+ random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}

	store := sessions.NewCookieStore([]byte(sessionKey), securecookie.GenerateRandomKey(32))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts

	logger.Info("session manager initialized",
		zap.Bool("secure", secure),
		zap.String("domain", domain))

	return &SessionManager{store: store, name: name, log: logger}, nil
}

// SetSessionFetcher installs the store-backed resolver. Must be called
// before the middleware serves traffic.
func (m *SessionManager) SetSessionFetcher(f SessionFetcher) {
	m.fetcher = f
}

// SignIn writes the identity into the session cookie.
func (m *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, identityID string) error {
	sess, _ := m.store.Get(r, m.name)
	sess.Values[identityIDKey] = identityID
	return sess.Save(r, w)
}

// SignOut clears the session cookie.
func (m *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, _ := m.store.Get(r, m.name)
	sess.Options.MaxAge = -1
	delete(sess.Values, identityIDKey)
	return sess.Save(r, w)
}

type ctxKey string

const sessionCtxKey ctxKey = "session"

// CurrentSession returns the request's session, or nil for anonymous.
func CurrentSession(r *http.Request) *models.Session {
	s, _ := r.Context().Value(sessionCtxKey).(*models.Session)
	return s
}

// WithSession returns a request carrying the given session.
// Exposed for tests that bypass the middleware.
func WithSession(r *http.Request, s *models.Session) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), sessionCtxKey, s))
}

// LoadSession is the global middleware that resolves the principal.
// API key credentials win over the cookie when both are present.
func (m *SessionManager) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.fetcher == nil {
			next.ServeHTTP(w, r)
			return
		}

		if keyID, secret, ok := r.BasicAuth(); ok {
			sess, err := m.fetcher.SessionByAPIKey(r.Context(), keyID, secret)
			if err != nil {
				m.log.Error("api key session resolve failed", zap.Error(err))
			} else if sess != nil {
				next.ServeHTTP(w, WithSession(r, sess))
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		cookieSess, _ := m.store.Get(r, m.name)
		identityID, _ := cookieSess.Values[identityIDKey].(string)
		if identityID == "" {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := m.fetcher.SessionByIdentity(r.Context(), identityID)
		if err != nil {
			m.log.Error("session resolve failed",
				zap.String("identity_id", identityID),
				zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, WithSession(r, sess))
	})
}

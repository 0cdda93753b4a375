package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/desertthunder/esifleet/internal/shared"
	"github.com/golang-jwt/jwt/v5"
)

const sessionCookie = "esifleet_session"

// Session identifies the Discord user behind a request.
type Session struct {
	DiscordID string `json:"discord_id"`
	Username  string `json:"username"`
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

type sessionKey struct{}

// Sessions issues and verifies HS256-signed session cookies.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewSessions creates a cookie signer. secure marks cookies HTTPS-only.
func NewSessions(secret string, ttl time.Duration, secure bool) (*Sessions, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: server.session_secret", shared.ErrMissingConfig)
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Sessions{secret: []byte(secret), ttl: ttl, secure: secure, now: time.Now}, nil
}

// Issue sets a session cookie for the Discord user.
func (s *Sessions) Issue(w http.ResponseWriter, discordID, username string) error {
	now := s.now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   discordID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Username: username,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return fmt.Errorf("failed to sign session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    signed,
		Path:     "/",
		Expires:  now.Add(s.ttl),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear expires the session cookie.
func (s *Sessions) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
}

// Parse verifies the request's session cookie.
func (s *Sessions) Parse(r *http.Request) (Session, error) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return Session{}, shared.ErrNotAuthenticated
	}

	var claims sessionClaims
	_, err = jwt.ParseWithClaims(cookie.Value, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
	}
	if claims.Subject == "" {
		return Session{}, fmt.Errorf("%w: session has no subject", shared.ErrNotAuthenticated)
	}
	return Session{DiscordID: claims.Subject, Username: claims.Username}, nil
}

// Require rejects requests without a valid session with 401 and stores the session in the request context.
func (s *Sessions) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.Parse(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "login required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, session)))
	})
}

// SessionFrom returns the session stored by [Sessions.Require].
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

// stateStore holds pending OAuth states and the Discord id each was issued for.
type stateStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	pending map[string]pendingState
}

type pendingState struct {
	discordID string
	expires   time.Time
}

func newStateStore(ttl time.Duration) *stateStore {
	return &stateStore{ttl: ttl, now: time.Now, pending: map[string]pendingState{}}
}

func (s *stateStore) Put(state, discordID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, p := range s.pending {
		if now.After(p.expires) {
			delete(s.pending, k)
		}
	}
	s.pending[state] = pendingState{discordID: discordID, expires: now.Add(s.ttl)}
}

// Take consumes state. It reports false for unknown or expired states.
func (s *stateStore) Take(state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[state]
	if !ok {
		return "", false
	}
	delete(s.pending, state)
	if s.now().After(p.expires) {
		return "", false
	}
	return p.discordID, true
}

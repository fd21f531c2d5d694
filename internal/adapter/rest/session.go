package rest

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrSessionExpired is returned by Session.Check once the token's exp claim
// has passed.
var ErrSessionExpired = errors.New("session expired")

// Claims carries the marketplace user id next to the registered claims.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Session holds the bearer token sent with every request. The token is only
// inspected, never verified: the backend owns the signing key.
type Session struct {
	mu        sync.RWMutex
	token     string
	userID    string
	expiresAt time.Time
	now       func() time.Time
}

func NewSession(token string) *Session {
	s := &Session{now: time.Now}
	s.SetToken(token)
	return s
}

// SetToken replaces the token. Tokens that are not JWTs are sent as-is and
// never expire client-side.
func (s *Session) SetToken(token string) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))

	var (
		userID    string
		expiresAt time.Time
	)
	if token != "" {
		claims := &Claims{}
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
			userID = claims.UserID
			if userID == "" {
				userID = claims.Subject
			}
			if claims.ExpiresAt != nil {
				expiresAt = claims.ExpiresAt.Time
			}
		}
	}

	s.mu.Lock()
	s.token = token
	s.userID = userID
	s.expiresAt = expiresAt
	s.mu.Unlock()
}

// UserID returns the user the token was issued for, if known.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Check returns ErrSessionExpired when the token carries an exp in the past.
func (s *Session) Check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || s.expiresAt.IsZero() {
		return nil
	}
	if !s.now().Before(s.expiresAt) {
		return ErrSessionExpired
	}
	return nil
}

// Apply sets the Authorization header when a token is present.
func (s *Session) Apply(req *http.Request) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

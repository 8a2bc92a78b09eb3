package jwt

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// JWTManagerInterface defines methods to hold the current access token.
type JWTManagerInterface interface {
	SaveJWT(token string, expire time.Time) error
	GetJWT() string
	ExpiresAt() time.Time
	IsJWTValid() bool
	Clear()
}

// JWTManager keeps the access token in memory. Tokens are opaque to the
// client; when one happens to be a JWT its exp claim is used as a fallback
// expiry.
type JWTManager struct {
	mu      sync.RWMutex
	token   string
	expire  time.Time
	timeNow func() time.Time
}

// NewJWTManager creates an empty JWTManager.
func NewJWTManager() *JWTManager {
	return &JWTManager{timeNow: time.Now}
}

// SaveJWT stores token. A zero expire is resolved from the token's exp
// claim when present; otherwise the token is treated as non-expiring.
func (jm *JWTManager) SaveJWT(token string, expire time.Time) error {
	if token == "" {
		return errors.New("empty token")
	}
	if expire.IsZero() {
		expire = ExpiryFromClaims(token)
	}

	jm.mu.Lock()
	defer jm.mu.Unlock()
	jm.token = token
	jm.expire = expire
	return nil
}

// GetJWT returns the current token, or "" if there is none.
func (jm *JWTManager) GetJWT() string {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	return jm.token
}

// ExpiresAt returns the token expiry; zero means unknown.
func (jm *JWTManager) ExpiresAt() time.Time {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	return jm.expire
}

// IsJWTValid reports whether a token is held and has not expired.
func (jm *JWTManager) IsJWTValid() bool {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	if jm.token == "" {
		return false
	}
	return jm.expire.IsZero() || jm.timeNow().Before(jm.expire)
}

// Clear forgets the current token.
func (jm *JWTManager) Clear() {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	jm.token = ""
	jm.expire = time.Time{}
}

// ExpiryFromClaims reads the exp claim without verifying the signature; the
// client has no key and only uses it to schedule a refresh. It returns the
// zero time when the token is not a JWT or carries no exp.
func ExpiryFromClaims(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return time.Time{}
	}
	return time.Unix(int64(exp), 0)
}

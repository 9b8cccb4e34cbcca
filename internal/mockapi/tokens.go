package mockapi

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims carries the standard registered claims plus the user id.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"uid"`
}

// Tokens issues HS256 access tokens and opaque rotating refresh tokens.
type Tokens struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      clockwork.Clock

	mu      sync.Mutex
	refresh map[string]refreshEntry
}

type refreshEntry struct {
	userID    int64
	expiresAt time.Time
}

func NewTokens(secret []byte, accessTTL, refreshTTL time.Duration, clock clockwork.Clock) *Tokens {
	return &Tokens{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		clock:      clock,
		refresh:    make(map[string]refreshEntry),
	}
}

func (t *Tokens) IssueAccess(userID int64) (string, error) {
	now := t.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.accessTTL)),
		},
		UserID: userID,
	})

	return token.SignedString(t.secret)
}

// VerifyAccess returns the user id of a valid, unexpired access token.
func (t *Tokens) VerifyAccess(tokenString string) (int64, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, ErrInvalidToken
	}
	if !token.Valid {
		return 0, ErrInvalidToken
	}

	return claims.UserID, nil
}

func (t *Tokens) IssueRefresh(userID int64) string {
	token := uuid.NewString()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.refresh[token] = refreshEntry{userID: userID, expiresAt: t.clock.Now().Add(t.refreshTTL)}
	return token
}

// Rotate consumes a refresh token and returns a new one for the same user.
// A token can be rotated only once.
func (t *Tokens) Rotate(token string) (int64, string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.refresh[token]
	if !ok {
		return 0, "", ErrInvalidToken
	}
	delete(t.refresh, token)

	now := t.clock.Now()
	if !now.Before(entry.expiresAt) {
		return 0, "", ErrTokenExpired
	}

	next := uuid.NewString()
	t.refresh[next] = refreshEntry{userID: entry.userID, expiresAt: now.Add(t.refreshTTL)}
	return entry.userID, next, nil
}

func (t *Tokens) Revoke(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.refresh, token)
}

// RevokeAll drops every refresh token, forcing clients to log in again.
func (t *Tokens) RevokeAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.refresh)
}

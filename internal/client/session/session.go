// Package session holds the authenticated session of the client: the access
// token and the signed-in user, persisted between runs, and the
// deduplicated token refresh shared by every in-flight request.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrijs2005/invoicedesk/internal/client/client"
	"github.com/dmitrijs2005/invoicedesk/internal/client/metrics"
	"github.com/dmitrijs2005/invoicedesk/internal/client/models"
	"github.com/dmitrijs2005/invoicedesk/internal/logging"
)

const (
	// Namespace and SnapshotKey locate the persisted snapshot in the store.
	Namespace   = "auth"
	SnapshotKey = "session"

	DefaultRefreshTimeout = 10 * time.Second

	refreshKey = "refresh"
)

// ErrSuperseded is returned by Refresh when the session was cleared or
// replaced while the refresh call was outstanding.
var ErrSuperseded = errors.New("session changed during refresh")

// AuthAPI is the part of the invoice service the session talks to.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*models.LoginResult, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) (string, error)
	CurrentUser(ctx context.Context) (*models.User, error)
}

// Store persists the session snapshot. Get returns (nil, nil) when nothing
// is stored.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// CredentialStore holds whatever else the service issued with the session,
// such as the refresh cookie. Clear is called whenever the session is cleared.
type CredentialStore interface {
	Clear(ctx context.Context) error
}

type snapshot struct {
	AccessToken string       `json:"accessToken"`
	User        *models.User `json:"user"`
}

// refreshCall is present exactly while a refresh network call is outstanding.
type refreshCall struct {
	startedAt time.Time
}

var _ client.TokenSource = (*Session)(nil)

// Session is safe for concurrent use.
type Session struct {
	api            AuthAPI
	store          Store
	credentials    CredentialStore
	logger         logging.Logger
	clock          clockwork.Clock
	metrics        *metrics.Metrics
	refreshTimeout time.Duration

	mu          sync.RWMutex
	accessToken string
	user        *models.User
	inflight    *refreshCall
	// generation changes on every login and clear; a refresh that started
	// under an older generation must not write its result.
	generation uint64

	group singleflight.Group

	// persistMu orders snapshot writes so the store ends up with the latest
	// in-memory state.
	persistMu sync.Mutex
}

type Option func(*Session)

func WithLogger(l logging.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func WithClock(c clockwork.Clock) Option {
	return func(s *Session) { s.clock = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithCredentials makes Clear also drop the credentials kept outside the
// snapshot.
func WithCredentials(c CredentialStore) Option {
	return func(s *Session) { s.credentials = c }
}

// WithRefreshTimeout bounds the refresh network call. Non-positive values
// keep the default.
func WithRefreshTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.refreshTimeout = d
		}
	}
}

// New creates an empty session. A nil store keeps the session in memory only.
func New(api AuthAPI, store Store, opts ...Option) *Session {
	s := &Session{
		api:            api,
		store:          store,
		logger:         logging.Nop(),
		clock:          clockwork.NewRealClock(),
		refreshTimeout: DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *Session) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) IsLoggedIn() bool {
	return s.AccessToken() != ""
}

// IsRefreshing reports whether a refresh network call is outstanding.
func (s *Session) IsRefreshing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight != nil
}

// TokenExpiry returns the exp claim of the access token, or the zero time
// when there is no token or it is not a JWT carrying one. The signature is
// not verified; the client only uses this for display and hints.
func (s *Session) TokenExpiry() time.Time {
	token := s.AccessToken()
	if token == "" {
		return time.Time{}
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// Expired reports whether the access token carries an exp claim that has
// passed.
func (s *Session) Expired() bool {
	exp := s.TokenExpiry()
	return !exp.IsZero() && !s.clock.Now().Before(exp)
}

// Login authenticates with the service. On success the token and user are
// stored and persisted. On failure the session is left as it was.
func (s *Session) Login(ctx context.Context, email, password string) error {
	res, err := s.api.Login(ctx, email, password)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.accessToken = res.AccessToken
	s.user = res.User
	s.generation++
	s.mu.Unlock()

	s.persist(ctx)
	s.logger.Info(ctx, "logged in", "email", email)
	return nil
}

// Logout tells the service to end the session and clears local state. The
// remote call is best effort: its failure is logged and ignored.
func (s *Session) Logout(ctx context.Context) {
	if err := s.api.Logout(ctx); err != nil {
		s.logger.Warn(ctx, "logout request failed, clearing local session anyway", "error", err)
	}
	s.Clear(ctx)
	s.logger.Info(ctx, "logged out")
}

// Clear drops the token and user, removes the persisted snapshot and any
// credentials kept alongside it. A refresh still outstanding is discarded.
func (s *Session) Clear(ctx context.Context) {
	s.mu.Lock()
	s.accessToken = ""
	s.user = nil
	s.generation++
	s.mu.Unlock()

	s.persist(ctx)
	s.clearCredentials(ctx)
}

// clearIfCurrent clears the session unless it changed since generation gen.
func (s *Session) clearIfCurrent(ctx context.Context, gen uint64) {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return
	}
	s.accessToken = ""
	s.user = nil
	s.generation++
	s.mu.Unlock()

	s.persist(ctx)
	s.clearCredentials(ctx)
}

func (s *Session) clearCredentials(ctx context.Context) {
	if s.credentials == nil {
		return
	}
	if err := s.credentials.Clear(ctx); err != nil {
		s.logger.Error(ctx, "cannot clear stored credentials", "error", err)
	}
}

// Refresh obtains a new access token. Concurrent callers share a single
// network call and all receive its outcome. On failure the whole session is
// cleared. A caller whose ctx ends stops waiting; the shared call carries on
// for the others, bounded by the refresh timeout.
func (s *Session) Refresh(ctx context.Context) (string, error) {
	leader := false
	ch := s.group.DoChan(refreshKey, func() (any, error) {
		leader = true
		return s.refresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if !leader {
			s.metrics.ObserveRefresh(metrics.RefreshShared)
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Session) refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	s.inflight = &refreshCall{startedAt: s.clock.Now()}
	gen := s.generation
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		started := s.inflight.startedAt
		s.inflight = nil
		s.mu.Unlock()
		s.logger.Debug(ctx, "refresh settled", "took", s.clock.Since(started))
	}()

	callCtx, cancel := clockwork.WithTimeout(ctx, s.clock, s.refreshTimeout)
	defer cancel()

	token, err := s.api.Refresh(callCtx)
	if err == nil && token == "" {
		err = errors.New("empty access token")
	}
	if err != nil {
		s.metrics.ObserveRefresh(metrics.RefreshFailure)
		s.logger.Warn(ctx, "session refresh failed, clearing session", "error", err)
		s.clearIfCurrent(ctx, gen)
		return "", fmt.Errorf("refresh session: %w", err)
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		s.metrics.ObserveRefresh(metrics.RefreshFailure)
		s.logger.Info(ctx, "dropping refreshed token, session changed meanwhile")
		return "", fmt.Errorf("refresh session: %w", ErrSuperseded)
	}
	s.accessToken = token
	s.mu.Unlock()

	s.persist(ctx)
	s.metrics.ObserveRefresh(metrics.RefreshSuccess)
	s.logger.Debug(ctx, "session refreshed")
	return token, nil
}

// FetchUser reloads the signed-in user's profile. Any failure clears the
// session.
func (s *Session) FetchUser(ctx context.Context) (*models.User, error) {
	if !s.IsLoggedIn() {
		return nil, client.ErrNotLoggedIn
	}

	u, err := s.api.CurrentUser(ctx)
	if err != nil {
		s.logger.Warn(ctx, "fetching user failed, clearing session", "error", err)
		s.Clear(ctx)
		return nil, err
	}

	s.mu.Lock()
	s.user = u
	s.mu.Unlock()

	s.persist(ctx)
	return u, nil
}

// Restore loads the persisted snapshot. A missing snapshot leaves the
// session empty. A snapshot that cannot be decoded is discarded.
func (s *Session) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	raw, err := s.store.Get(ctx, SnapshotKey)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if raw == nil {
		return nil
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		s.logger.Warn(ctx, "discarding unreadable session snapshot", "error", err)
		if err := s.store.Delete(ctx, SnapshotKey); err != nil {
			s.logger.Warn(ctx, "cannot remove session snapshot", "error", err)
		}
		return nil
	}

	s.mu.Lock()
	s.accessToken = snap.AccessToken
	s.user = snap.User
	s.generation++
	s.mu.Unlock()

	s.logger.Debug(ctx, "session restored", "logged_in", snap.AccessToken != "")
	return nil
}

// persist writes the current state to the store, or removes the snapshot
// when the session is empty. Store errors are logged.
func (s *Session) persist(ctx context.Context) {
	if s.store == nil {
		return
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	snap := snapshot{AccessToken: s.accessToken, User: s.user}
	s.mu.RUnlock()

	if snap.AccessToken == "" && snap.User == nil {
		if err := s.store.Delete(ctx, SnapshotKey); err != nil {
			s.logger.Error(ctx, "cannot remove session snapshot", "error", err)
		}
		return
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		s.logger.Error(ctx, "cannot encode session snapshot", "error", err)
		return
	}
	if err := s.store.Set(ctx, SnapshotKey, raw); err != nil {
		s.logger.Error(ctx, "cannot persist session snapshot", "error", err)
	}
}

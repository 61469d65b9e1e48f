package client

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/devilmonastery/taskboard/internal/pkg/logger"
	"github.com/devilmonastery/taskboard/internal/pkg/metrics"
)

const (
	// ExpirySkew is how long before its literal expiry a token is treated as expired
	ExpirySkew = 5 * time.Second

	// DefaultRefreshTimeout bounds a single refresh round trip
	DefaultRefreshTimeout = 10 * time.Second
)

// AuthBackend is the subset of the REST API the token manager talks to.
type AuthBackend interface {
	Login(ctx context.Context, in LoginRequest) (*AuthResponse, error)
	Register(ctx context.Context, in RegisterRequest) (*AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error)
	Logout(ctx context.Context, header http.Header, refreshToken string) error
	Profile(ctx context.Context, header http.Header) (*Profile, error)
}

// State is the lifecycle state of the current session
type State int

const (
	NoCredential State = iota
	Fresh
	Stale
	Refreshing
	Invalid
)

func (s State) String() string {
	switch s {
	case NoCredential:
		return "no_credential"
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	case Refreshing:
		return "refreshing"
	case Invalid:
		return "invalid"
	}
	return "unknown"
}

// Option configures a TokenManager
type Option func(*TokenManager)

// WithClock overrides the time source used for expiry checks
func WithClock(now func() time.Time) Option {
	return func(m *TokenManager) {
		m.now = now
	}
}

// WithLogger sets the logger used for diagnostics
func WithLogger(log *slog.Logger) Option {
	return func(m *TokenManager) {
		m.log = log
	}
}

// WithRefreshTimeout bounds the refresh network call
func WithRefreshTimeout(d time.Duration) Option {
	return func(m *TokenManager) {
		if d > 0 {
			m.refreshTimeout = d
		}
	}
}

// TokenManager tracks an access/refresh token pair across a primary cache and
// a read-only fallback, detects expiry, and coalesces concurrent refreshes
// into a single backend call.
type TokenManager struct {
	cache          Cache
	fallback       Fallback
	backend        AuthBackend
	now            func() time.Time
	log            *slog.Logger
	refreshTimeout time.Duration

	refresh refreshState

	// mu guards invalid and generation. generation changes whenever the
	// credential is replaced or forgotten, so an older refresh cannot
	// write over it.
	mu         sync.Mutex
	invalid    bool
	generation uint64
}

// NewTokenManager creates a token manager. A nil cache is replaced by a
// MemoryCache and a nil fallback by NoFallback.
func NewTokenManager(cache Cache, fallback Fallback, backend AuthBackend, opts ...Option) *TokenManager {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if fallback == nil {
		fallback = NoFallback{}
	}
	m := &TokenManager{
		cache:          cache,
		fallback:       fallback,
		backend:        backend,
		now:            time.Now,
		log:            logger.Component("token_manager"),
		refreshTimeout: DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// lookup reads one field, primary cache first, then the fallback.
func (m *TokenManager) lookup(f Field) string {
	v, err := m.cache.Get(f)
	if err != nil {
		m.log.Warn("credential cache read failed",
			slog.String("field", string(f)),
			slog.String("error", err.Error()))
	}
	if v != "" {
		return v
	}
	return m.fallback.Get(f)
}

// AccessToken returns the current access token, or "" if there is none
func (m *TokenManager) AccessToken() string {
	return m.lookup(FieldAccessToken)
}

// RefreshToken returns the current refresh token, or "" if there is none
func (m *TokenManager) RefreshToken() string {
	return m.lookup(FieldRefreshToken)
}

// ExpiresAt returns the raw expiry timestamp, or "" if there is none
func (m *TokenManager) ExpiresAt() string {
	return m.lookup(FieldExpiresAt)
}

// Email returns the cached account email
func (m *TokenManager) Email() string {
	return m.lookup(FieldEmail)
}

// Credential returns a snapshot of every field as currently visible
func (m *TokenManager) Credential() Credential {
	var c Credential
	for _, f := range Fields {
		c.Set(f, m.lookup(f))
	}
	return c
}

// IsExpired reports whether the access token should be considered expired.
// A missing or unparsable expiry counts as expired.
func (m *TokenManager) IsExpired() bool {
	raw := m.ExpiresAt()
	if raw == "" {
		return true
	}
	expiry, err := ParseExpiry(raw)
	if err != nil {
		m.log.Debug("unparsable token expiry", slog.String("expires_at", raw))
		return true
	}
	return expiry.UnixMilli()-ExpirySkew.Milliseconds() <= m.now().UTC().UnixMilli()
}

// State reports where the session sits in its lifecycle
func (m *TokenManager) State() State {
	if m.refreshInFlight() {
		return Refreshing
	}
	if m.isInvalid() {
		return Invalid
	}
	if m.AccessToken() == "" {
		return NoCredential
	}
	if m.IsExpired() {
		return Stale
	}
	return Fresh
}

func (m *TokenManager) isInvalid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invalid
}

func (m *TokenManager) setInvalid(invalid bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalid = invalid
}

func (m *TokenManager) currentGeneration() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// markInvalidSince flags the session invalid unless the credential was
// replaced or forgotten after gen was taken.
func (m *TokenManager) markInvalidSince(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation == gen {
		m.invalid = true
	}
}

// Login authenticates against the backend and replaces the cached credential
func (m *TokenManager) Login(ctx context.Context, in LoginRequest) (*AuthResponse, error) {
	resp, err := m.backend.Login(ctx, in)
	if err != nil {
		m.log.Info("login failed", slog.String("email", in.Email), slog.String("error", err.Error()))
		return nil, err
	}
	if err := m.store(resp); err != nil {
		return nil, err
	}
	m.log.Info("logged in", slog.String("email", resp.EmailAddress()))
	return resp, nil
}

// Register creates an account and caches the credential it returns
func (m *TokenManager) Register(ctx context.Context, in RegisterRequest) (*AuthResponse, error) {
	resp, err := m.backend.Register(ctx, in)
	if err != nil {
		m.log.Info("registration failed", slog.String("email", in.Email), slog.String("error", err.Error()))
		return nil, err
	}
	if err := m.store(resp); err != nil {
		return nil, err
	}
	m.log.Info("registered", slog.String("email", resp.EmailAddress()))
	return resp, nil
}

// store replaces the cached credential with a login or registration response
func (m *TokenManager) store(resp *AuthResponse) error {
	if resp.AccessToken == "" {
		return ErrMissingAccessToken
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	if err := m.cache.Clear(); err != nil {
		return err
	}
	if err := m.cache.Set(resp.fields()); err != nil {
		return err
	}
	m.invalid = false
	return nil
}

// Logout notifies the backend and clears all local state. Local state is
// cleared even when the backend call fails. It reports whether the backend
// acknowledged the logout.
func (m *TokenManager) Logout(ctx context.Context) bool {
	token := m.AccessToken()
	refreshToken := m.RefreshToken()

	notified := false
	if token != "" || refreshToken != "" {
		header := http.Header{}
		header.Set("Authorization", bearer(token))
		if err := m.backend.Logout(ctx, header, refreshToken); err != nil {
			m.log.Warn("backend logout failed", slog.String("error", err.Error()))
		} else {
			notified = true
		}
	}

	m.Forget()
	m.log.Info("logged out", slog.Bool("backend_notified", notified))
	return notified
}

// Forget clears the primary cache and the fallback mirror without
// contacting the backend.
// A refresh still in flight will not write its result afterwards.
func (m *TokenManager) Forget() {
	m.mu.Lock()
	m.generation++
	m.invalid = false
	err := m.cache.Clear()
	m.mu.Unlock()

	if err != nil {
		m.log.Warn("failed to clear credential cache", slog.String("error", err.Error()))
	}
	m.fallback.Clear()
}

// SetEmail records the account email reported by the backend. A mismatch
// with the cached email is logged and the cached value is replaced.
func (m *TokenManager) SetEmail(email string) {
	if email == "" {
		return
	}
	if current := m.Email(); current != "" && current != email {
		m.log.Info("backend reported a different email, updating cache",
			slog.String("cached", current),
			slog.String("backend", email))
	}
	if err := m.cache.Set(map[Field]string{FieldEmail: email}); err != nil {
		m.log.Warn("failed to cache email", slog.String("error", err.Error()))
	}
}

// Validate checks with the backend that the session is usable
func (m *TokenManager) Validate(ctx context.Context) bool {
	_, ok := m.ValidateProfile(ctx)
	return ok
}

// ValidateProfile is Validate that also returns the fetched profile
func (m *TokenManager) ValidateProfile(ctx context.Context) (*Profile, bool) {
	profile, err := m.Authenticate(ctx)
	return profile, err == nil
}

// Authenticate fetches the profile with the coordinated header. A stale
// token is refreshed at most once; the refreshed token is used as is even
// if the local clock still considers it stale.
//
// It returns ErrNoCredential when there is no token, ErrSessionExpired
// when the refresh failed, or the backend error when the profile request
// was rejected.
func (m *TokenManager) Authenticate(ctx context.Context) (*Profile, error) {
	header, refreshed := m.authorize(ctx)
	if header.Get("Authorization") == "" {
		metrics.RecordValidation(false)
		if refreshed {
			return nil, ErrSessionExpired
		}
		return nil, ErrNoCredential
	}

	gen := m.currentGeneration()
	profile, err := m.backend.Profile(ctx, header)
	if err != nil {
		if ctx.Err() == nil {
			m.markInvalidSince(gen)
		}
		m.log.Info("session validation failed",
			slog.Int("status", StatusCode(err)),
			slog.String("error", err.Error()))
		metrics.RecordValidation(false)
		return nil, err
	}

	m.SetEmail(profile.Email)
	metrics.RecordValidation(true)
	return profile, nil
}

func (m *TokenManager) logToken(msg string) {
	m.log.Debug(msg, slog.String("token_prefix", logger.TokenPreview(m.AccessToken())))
}

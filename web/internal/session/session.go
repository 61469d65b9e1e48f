package session

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"github.com/devilmonastery/taskboard/internal/client"
)

const (
	// SessionName is the name of the session cookie
	SessionName = "taskboard_session"

	// TimezoneKey is the session key for the browser's timezone
	TimezoneKey = "client_timezone"

	// DefaultMaxAge is how long the browser keeps the session cookie
	DefaultMaxAge = 30 * 24 * 60 * 60

	maxCookieLength = 16 * 1024
)

// Manager wraps gorilla/sessions for our use case
type Manager struct {
	store *sessions.CookieStore
}

// NewManager creates a new session manager
// secretKey should be 32 bytes; the first half signs, the full key encrypts
func NewManager(secretKey []byte, secure bool, maxAge int) *Manager {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	store := sessions.NewCookieStore(secretKey, encryptionKey(secretKey))

	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	// Backend cookies mirrored into the session can be large
	for _, codec := range store.Codecs {
		if sc, ok := codec.(*securecookie.SecureCookie); ok {
			sc.MaxLength(maxCookieLength)
		}
	}

	return &Manager{
		store: store,
	}
}

// encryptionKey returns a valid AES key length prefix of key, or nil to disable encryption
func encryptionKey(key []byte) []byte {
	switch {
	case len(key) >= 32:
		return key[:32]
	case len(key) >= 24:
		return key[:24]
	case len(key) >= 16:
		return key[:16]
	}
	return nil
}

// Session is one browser session bound to the current request. Writes are
// saved immediately so the Set-Cookie header is in place before the
// handler writes a body.
type Session struct {
	mu  sync.Mutex
	raw *sessions.Session
	r   *http.Request
	w   http.ResponseWriter
	log *slog.Logger

	// Tokens manages the credential stored in this session
	Tokens *client.TokenManager

	// API talks to the backend on behalf of this session
	API *client.API

	// Profile is set by RequireAuth once the backend accepted the session
	Profile *client.Profile
}

// get opens the session for r; an undecodable cookie yields a fresh session
func (m *Manager) get(w http.ResponseWriter, r *http.Request, log *slog.Logger) *Session {
	raw, err := m.store.Get(r, SessionName)
	if err != nil {
		log.Debug("discarding unreadable session cookie", slog.String("error", err.Error()))
		raw, _ = m.store.New(r, SessionName)
		raw.IsNew = true
	}
	return &Session{raw: raw, r: r, w: w, log: log}
}

func (s *Session) getString(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, _ := s.raw.Values[key].(string)
	return v
}

// update applies fn to the session values and saves the session
func (s *Session) update(fn func(values map[interface{}]interface{})) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.raw.Values)
	return s.save()
}

// Timezone returns the timezone the browser reported, if any
func (s *Session) Timezone() string {
	return s.getString(TimezoneKey)
}

// SetTimezone remembers the browser's timezone
func (s *Session) SetTimezone(tz string) error {
	return s.update(func(values map[interface{}]interface{}) {
		values[TimezoneKey] = tz
	})
}

// AddFlash queues a one-shot message for the next rendered page
func (s *Session) AddFlash(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw.AddFlash(msg)
	if err := s.save(); err != nil {
		s.log.Warn("failed to save flash", slog.String("error", err.Error()))
	}
}

// Flashes returns and clears the queued messages
func (s *Session) Flashes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw := s.raw.Flashes()
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if msg, ok := f.(string); ok {
			out = append(out, msg)
		}
	}
	if err := s.save(); err != nil {
		s.log.Warn("failed to save session", slog.String("error", err.Error()))
	}
	return out
}

// save writes the session cookie, replacing any earlier copy queued in
// this response. Callers hold mu.
func (s *Session) save() error {
	dropSetCookie(s.w.Header(), SessionName)
	return s.raw.Save(s.r, s.w)
}

func dropSetCookie(h http.Header, name string) {
	prefix := name + "="
	kept := h.Values("Set-Cookie")[:0:0]
	for _, c := range h.Values("Set-Cookie") {
		if !strings.HasPrefix(c, prefix) {
			kept = append(kept, c)
		}
	}
	h.Del("Set-Cookie")
	for _, c := range kept {
		h.Add("Set-Cookie", c)
	}
}

type contextKey struct{}

// NewContext returns a context carrying s
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored by RequireAuth
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok
}
